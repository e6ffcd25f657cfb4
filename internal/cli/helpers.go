package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/mesh-intelligence/shelf/internal/sqlite"
	"github.com/mesh-intelligence/shelf/pkg/schema"
	"github.com/mesh-intelligence/shelf/pkg/types"
)

// attachBackend resolves the data directory, creates a SQLite backend over
// the content schema, and attaches it. The caller must defer
// backend.Detach().
func (a *app) attachBackend() (*sqlite.Backend, error) {
	dataDir, err := a.dataDir()
	if err != nil {
		return nil, systemError("resolve data dir: %w", err)
	}

	cfg := types.Config{
		Backend: a.settings.Backend,
		DataDir: dataDir,
	}
	if err := cfg.Validate(); err != nil {
		return nil, userError("config: %w", err)
	}

	backend := sqlite.NewBackend(schema.Lists())
	if err := backend.Attach(cfg); err != nil {
		return nil, systemError("attach backend: %w", err)
	}
	return backend, nil
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return systemError("encode output: %w", err)
	}
	return nil
}

// output writes v as JSON in JSON mode, otherwise the text line.
func (a *app) output(w io.Writer, v any, format string, args ...any) error {
	if a.flags.jsonMode {
		return printJSON(w, v)
	}
	_, err := fmt.Fprintf(w, format+"\n", args...)
	return err
}
