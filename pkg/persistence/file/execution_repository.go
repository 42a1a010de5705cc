package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/node-drop/nodedrop/pkg/models"
	"github.com/node-drop/nodedrop/pkg/persistence"
)

// ExecutionRepository handles execution-record file operations.
type ExecutionRepository struct {
	root string
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{root: root}
}

func (er *ExecutionRepository) dir() string {
	return filepath.Join(er.root, "executions")
}

func (er *ExecutionRepository) CreateExecution(_ context.Context, execution *models.Execution) error {
	if err := validateID(execution.ID); err != nil {
		return persistence.NewExecutionError("CreateExecution", execution.ID, err)
	}

	if err := os.MkdirAll(er.dir(), 0750); err != nil {
		return persistence.NewExecutionError("CreateExecution", execution.ID, err)
	}

	data, err := json.Marshal(execution)
	if err != nil {
		return persistence.NewExecutionError("CreateExecution", execution.ID, err)
	}

	path := filepath.Join(er.dir(), execution.ID+".json")
	if err := os.WriteFile(path, data, 0600); err != nil {
		return persistence.NewExecutionError("CreateExecution", execution.ID, err)
	}

	return nil
}

func (er *ExecutionRepository) ExecutionByID(_ context.Context, id string) (*models.Execution, error) {
	if err := validateID(id); err != nil {
		return nil, persistence.NewExecutionError("ExecutionByID", id, err)
	}

	data, err := os.ReadFile(filepath.Join(er.dir(), id+".json")) // #nosec G304 -- id is validated above
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewExecutionError("ExecutionByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("ExecutionByID", id, err)
	}

	var execution models.Execution
	if err := json.Unmarshal(data, &execution); err != nil {
		return nil, persistence.NewExecutionError("ExecutionByID", id, err)
	}

	return &execution, nil
}

func (er *ExecutionRepository) UpdateExecutionStatus(ctx context.Context, id string, status models.ExecutionStatus, finishedAt *time.Time) error {
	execution, err := er.ExecutionByID(ctx, id)
	if err != nil {
		return err
	}

	execution.Status = status
	execution.FinishedAt = finishedAt

	data, err := json.Marshal(execution)
	if err != nil {
		return persistence.NewExecutionError("UpdateExecutionStatus", id, err)
	}

	path := filepath.Join(er.dir(), id+".json")
	if err := os.WriteFile(path, data, 0600); err != nil {
		return persistence.NewExecutionError("UpdateExecutionStatus", id, err)
	}

	return nil
}

func (er *ExecutionRepository) ExecutionsByWorkflow(_ context.Context, workflowID string) ([]*models.Execution, error) {
	if _, err := os.Stat(er.dir()); os.IsNotExist(err) {
		return []*models.Execution{}, nil
	}

	entries, err := os.ReadDir(er.dir())
	if err != nil {
		return nil, fmt.Errorf("failed to read executions directory: %w", err)
	}

	var executions []*models.Execution

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(er.dir(), entry.Name())) // #nosec G304 -- path comes from a directory listing
		if err != nil {
			return nil, fmt.Errorf("failed to read execution file %s: %w", entry.Name(), err)
		}

		var execution models.Execution
		if err := json.Unmarshal(data, &execution); err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution file %s: %w", entry.Name(), err)
		}

		if execution.WorkflowID == workflowID {
			executions = append(executions, &execution)
		}
	}

	return executions, nil
}

func (er *ExecutionRepository) DeleteExecution(_ context.Context, id string) error {
	if err := validateID(id); err != nil {
		return persistence.NewExecutionError("DeleteExecution", id, err)
	}

	err := os.Remove(filepath.Join(er.dir(), id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return persistence.NewExecutionError("DeleteExecution", id, persistence.ErrExecutionNotFound)
		}

		return persistence.NewExecutionError("DeleteExecution", id, err)
	}

	return nil
}
