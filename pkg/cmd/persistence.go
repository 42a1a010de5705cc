package cmd

import (
	"github.com/node-drop/nodedrop/pkg/persistence"
	"github.com/node-drop/nodedrop/pkg/persistence/file"
)

// NewPersistence builds the durable record store from a database URL.
// Only the file provider is implemented today; NewPersistence strips the
// file:// scheme itself.
func NewPersistence(databaseURL string) persistence.Persistence {
	return file.NewPersistence(databaseURL)
}
