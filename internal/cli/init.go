package cli

import (
	"os"

	"github.com/spf13/cobra"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize shelf storage",
		Long:  "Create the configuration and data directories, write a default config.yaml,\nthen create the storage schema.",
		Args:  cobra.NoArgs,
		RunE:  a.runInit,
	}
}

func (a *app) runInit(cmd *cobra.Command, args []string) error {
	dataDir, err := a.dataDir()
	if err != nil {
		return systemError("resolve data dir: %w", err)
	}

	if err := os.MkdirAll(a.configDir, 0o755); err != nil {
		return systemError("create config directory: %w", err)
	}
	// Only an explicit --data-dir is recorded; otherwise the default applies.
	configured := ""
	if a.flags.dataDir != "" {
		configured = dataDir
	}
	written, err := writeConfigIfMissing(a.configDir, configured)
	if err != nil {
		return systemError("write config: %w", err)
	}

	backend, err := a.attachBackend()
	if err != nil {
		return err
	}
	if err := backend.Detach(); err != nil {
		return systemError("finalize storage: %w", err)
	}

	result := map[string]any{
		"config_dir":     a.configDir,
		"config_written": written,
		"data_dir":       dataDir,
	}
	return a.output(cmd.OutOrStdout(), result, "Shelf initialized in %s", dataDir)
}
