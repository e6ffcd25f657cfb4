// Package cli implements the shelf command-line interface.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/shelf/internal/logging"
	"github.com/mesh-intelligence/shelf/internal/paths"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// Version is the release version, set with -ldflags at build time.
var Version = "dev"

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	logLevel  string
	jsonMode  bool
}

// app is the state shared by the commands of one invocation.
type app struct {
	flags     rootFlags
	configDir string
	settings  settings
}

// NewRootCmd creates the top-level "shelf" command with global flags and
// all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "shelf",
		Short: "A small content store with a JSON API and admin pages",
		Long: "Shelf stores users, posts, tags and todos in SQLite, serves them over\n" +
			"a JSON API with session sign-in, and renders read-only admin pages.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.load,
	}

	root.PersistentFlags().StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: $XDG_CONFIG_HOME/shelf)")
	root.PersistentFlags().StringVar(&a.flags.dataDir, "data-dir", "", "data directory (default: $XDG_DATA_HOME/shelf)")
	root.PersistentFlags().StringVar(&a.flags.logLevel, "log-level", "", "log level: debug, info, warn, error (default: info)")
	root.PersistentFlags().BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(a))
	root.AddCommand(newServeCmd(a))
	root.AddCommand(newSchemaCmd(a))
	root.AddCommand(newUserCmd(a))
	root.AddCommand(newExportCmd(a))
	root.AddCommand(newImportCmd(a))
	root.AddCommand(newSessionsCmd(a))

	return root
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := NewRootCmd().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return exitCode(err)
}

// load resolves the config directory, reads config.yaml and configures
// logging before any subcommand runs.
func (a *app) load(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return systemError("resolve config dir: %w", err)
	}
	a.configDir = configDir

	a.settings, err = loadSettings(configDir)
	if err != nil {
		return userError("load config: %w", err)
	}

	level := a.settings.LogLevel
	if a.flags.logLevel != "" {
		level = a.flags.logLevel
	}
	if err := logging.Configure(cmd.ErrOrStderr(), level, !a.flags.jsonMode); err != nil {
		return userError("log level %q: %w", level, err)
	}
	logging.Debug().Str("config_dir", configDir).Msg("loaded configuration")
	return nil
}

// dataDir returns the data directory: --data-dir, then data_dir from
// config.yaml, then SHELF_DATA_DIR, then the platform default.
func (a *app) dataDir() (string, error) {
	return paths.ResolveDataDir(a.flags.dataDir, a.settings.DataDir)
}

// cmdError carries the exit code of a failed command.
type cmdError struct {
	code int
	err  error
}

func (e *cmdError) Error() string { return e.err.Error() }

func (e *cmdError) Unwrap() error { return e.err }

func userError(format string, args ...any) error {
	return &cmdError{code: exitUserError, err: fmt.Errorf(format, args...)}
}

func systemError(format string, args ...any) error {
	return &cmdError{code: exitSysError, err: fmt.Errorf(format, args...)}
}

// exitCode maps a command error to an exit code. Errors not marked as
// system errors, including flag and argument errors from cobra, are user
// errors.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var ce *cmdError
	if errors.As(err, &ce) {
		return ce.code
	}
	return exitUserError
}
