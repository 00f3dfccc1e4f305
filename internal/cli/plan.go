package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lomashregmi/sfdmu/internal/config"
	"github.com/lomashregmi/sfdmu/internal/plan"
	"github.com/lomashregmi/sfdmu/internal/sf"
	"github.com/lomashregmi/sfdmu/internal/sfdx"
)

// PlanOptions holds flags for the plan command.
type PlanOptions struct {
	Path       string
	SourceOrg  string
	TargetOrg  string
	Passphrase string
}

// NewPlanCommand compiles the script in the working directory into a
// migration plan and prints a summary. Record transfer itself is handed to
// the execution engine separately.
func NewPlanCommand(root *RootOptions) *cobra.Command {
	opts := &PlanOptions{}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Compile the migration script into an execution-ready plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(root.Verbose)

			s, err := config.Load(opts.Path)
			if err != nil {
				return err
			}

			client := sf.NewClient(s.APIVersion, logger)
			compiler := plan.NewCompiler(sfdx.NewCLIProvider(logger), client, logger)
			compiler.Passphrase = opts.Passphrase

			m, err := compiler.Compile(cmd.Context(), s, opts.SourceOrg, opts.TargetOrg)
			if err != nil {
				return err
			}
			if err := m.LoadDescribes(cmd.Context(), client); err != nil {
				return err
			}

			printPlan(cmd, m)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.Path, "path", "p", ".", "directory containing export.json")
	cmd.Flags().StringVarP(&opts.SourceOrg, "sourceusername", "s", "", "source org username or alias")
	cmd.Flags().StringVarP(&opts.TargetOrg, "targetusername", "u", "", "target org username or alias")
	cmd.Flags().StringVar(&opts.Passphrase, "passphrase", "", "passphrase for encrypted data files")
	_ = cmd.MarkFlagRequired("sourceusername")
	_ = cmd.MarkFlagRequired("targetusername")

	return cmd
}

func printPlan(cmd *cobra.Command, m *plan.Migration) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s: %s (%s) -> %s (%s)\n",
		m.RunID, m.Source.Name, m.Source.Media, m.Target.Name, m.Target.Media)
	for _, p := range m.Plans.Plans() {
		extra := ""
		if p.IsExtraObject {
			extra = " [extra]"
		}
		fmt.Fprintf(out, "  %-20s %-8s %s%s\n", p.Name, p.Operation, p.Query, extra)
		if p.DeleteOldData {
			fmt.Fprintf(out, "  %-20s %-8s %s\n", "", "delete", p.DeleteQuery)
		}
	}
	for _, w := range m.Report.Warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
	for _, s := range m.Report.Skipped {
		fmt.Fprintf(out, "skipped: %s: %v\n", s.Name, s.Err)
	}
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(consoleWriter).Level(level).With().Timestamp().Logger()
}
