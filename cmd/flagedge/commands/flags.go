package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/flagedge/internal/cli"
	"github.com/TimurManjosov/flagedge/internal/decider"
	"github.com/TimurManjosov/flagedge/internal/decision"
	"github.com/TimurManjosov/flagedge/internal/optimizely"
)

var flagsCmd = &cobra.Command{
	Use:   "flags",
	Short: "List the flags defined in a datafile",
	Long: `List the flags defined in a datafile, with its revision.

Examples:
  flagedge flags --sdk-key abc123
  flagedge flags --datafile ./datafile.json --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		out, err := cli.ParseFormat(orDefault(format, "table"))
		if err != nil {
			return err
		}

		ctx := e.context(cmd)
		body, err := e.source.Fetch(ctx, e.request.SDKKey, decider.DefaultDatafileTTL)
		if err != nil {
			return err
		}
		engine, err := optimizely.NewFactory(e.log, decision.LogLevelError).NewEngine(ctx, body, decision.Options{})
		if err != nil {
			return fmt.Errorf("load datafile: %w", err)
		}
		defer engine.Close()

		return cli.PrintSummary(cmd.OutOrStdout(), engine.Config(), out)
	},
}

var datafileCmd = &cobra.Command{
	Use:   "datafile",
	Short: "Print the raw datafile for an SDK key",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		body, err := e.source.Fetch(e.context(cmd), e.request.SDKKey, 0)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), body)
		return err
	},
}

func init() {
	rootCmd.AddCommand(flagsCmd)
	rootCmd.AddCommand(datafileCmd)
}
