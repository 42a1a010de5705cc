package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/node-drop/nodedrop/pkg/queue"
	queuememory "github.com/node-drop/nodedrop/pkg/queue/memory"
	queueredis "github.com/node-drop/nodedrop/pkg/queue/redis"
)

// NewQueue builds the job queue from a URL, mirroring NewStateStore's
// provider selection.
func NewQueue(url string, logger *slog.Logger) queue.Queue {
	if strings.HasPrefix(url, "memory://") {
		return queuememory.NewQueue()
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		panic(fmt.Errorf("invalid queue url: %w", err))
	}

	return queueredis.NewQueueWithClient(redis.NewClient(opts), logger)
}
