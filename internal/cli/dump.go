package cli

import (
	"github.com/spf13/cobra"
)

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export <dir>",
		Short: "Export every table to JSONL files",
		Long:  "Write one <table>.jsonl file per table into dir. Password hashes are\nexported as stored.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := a.attachBackend()
			if err != nil {
				return err
			}
			defer backend.Detach()

			if err := backend.Export(commandContext(cmd), args[0]); err != nil {
				return systemError("export: %w", err)
			}
			return a.output(cmd.OutOrStdout(), map[string]string{"dir": args[0]}, "Exported to %s", args[0])
		},
	}
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <dir>",
		Short: "Import JSONL files written by export",
		Long:  "Load <table>.jsonl files from dir, replacing rows with the same id.\nMalformed or inconsistent rows are skipped and counted.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := a.attachBackend()
			if err != nil {
				return err
			}
			defer backend.Detach()

			stats, err := backend.Import(commandContext(cmd), args[0])
			if err != nil {
				return systemError("import: %w", err)
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), stats)
			}
			out := cmd.OutOrStdout()
			for _, s := range stats {
				if s.Missing {
					continue
				}
				if err := a.output(out, nil, "%s: %d loaded, %d skipped", s.FileName, s.Loaded, s.Skipped); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newSessionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage sign-in sessions",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: "Remove expired sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := a.attachBackend()
			if err != nil {
				return err
			}
			defer backend.Detach()

			n, err := backend.PruneSessions(commandContext(cmd))
			if err != nil {
				return systemError("prune sessions: %w", err)
			}
			return a.output(cmd.OutOrStdout(), map[string]int64{"pruned": n}, "Pruned %d expired sessions", n)
		},
	})
	return cmd
}
