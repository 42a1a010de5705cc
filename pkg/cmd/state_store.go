package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/node-drop/nodedrop/pkg/statestore"
	storememory "github.com/node-drop/nodedrop/pkg/statestore/memory"
	storeredis "github.com/node-drop/nodedrop/pkg/statestore/redis"
)

// NewStateStore builds the execution context store from a URL. A redis://
// URL yields the shared store; "memory://" yields the in-process store for
// development and tests.
func NewStateStore(url string, logger *slog.Logger) statestore.Store {
	if strings.HasPrefix(url, "memory://") {
		return storememory.NewStore()
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		panic(fmt.Errorf("invalid state store url: %w", err))
	}

	return storeredis.NewStoreWithClient(redis.NewClient(opts), logger)
}
