// Package sqlite opens the SQLite-backed content store for programs that
// embed shelf instead of talking to its HTTP API.
package sqlite

import (
	"github.com/mesh-intelligence/shelf/internal/sqlite"
	"github.com/mesh-intelligence/shelf/pkg/schema"
	"github.com/mesh-intelligence/shelf/pkg/types"
)

// NewStore returns an unattached store over the content schema. Call
// Attach with a Config to open it.
func NewStore() types.Store {
	return sqlite.NewBackend(schema.Lists())
}

// Open returns a store over the content schema attached to dataDir. The
// caller must Detach it.
//
// Example:
//
//	store, err := sqlite.Open(".shelf")
//	if err != nil {
//	    return err
//	}
//	defer store.Detach()
//	posts, err := store.GetTable(schema.Post)
func Open(dataDir string) (types.Store, error) {
	store := NewStore()
	err := store.Attach(types.Config{
		Backend: types.BackendSQLite,
		DataDir: dataDir,
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}
