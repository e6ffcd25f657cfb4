package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/shelf/internal/sqlite"
	"github.com/mesh-intelligence/shelf/pkg/schema"
	"github.com/mesh-intelligence/shelf/pkg/types"
)

// Schema output formats.
const (
	formatYAML = "yaml"
	formatJSON = "json"
	formatSQL  = "sql"
)

type schemaDoc struct {
	Lists []*types.List `json:"lists" yaml:"lists"`
}

func newSchemaCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the content schema",
		Long:  "Print the declared lists and fields as YAML or JSON, or the SQLite DDL\nderived from them.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.flags.jsonMode && !cmd.Flags().Changed("format") {
				format = formatJSON
			}
			s := schema.Lists()
			out := cmd.OutOrStdout()

			switch format {
			case formatYAML:
				data, err := yaml.Marshal(schemaDoc{Lists: s.Lists()})
				if err != nil {
					return systemError("marshal schema: %w", err)
				}
				_, err = out.Write(data)
				return err
			case formatJSON:
				return printJSON(out, schemaDoc{Lists: s.Lists()})
			case formatSQL:
				stmts, err := sqlite.SchemaDDL(s)
				if err != nil {
					return systemError("derive DDL: %w", err)
				}
				_, err = fmt.Fprintln(out, strings.Join(stmts, "\n\n"))
				return err
			default:
				return userError("unknown format %q (want %s, %s or %s)", format, formatYAML, formatJSON, formatSQL)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", formatYAML, "output format: yaml, json or sql")
	return cmd
}
