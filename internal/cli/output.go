package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/TimurManjosov/flagedge/internal/decider"
	"github.com/TimurManjosov/flagedge/internal/decision"
)

// OutputFormat specifies the output format for CLI commands
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
	FormatText  OutputFormat = "text"
)

// PrintSummary outputs the flags of a datafile in the specified format
func PrintSummary(w io.Writer, summary decision.ConfigSummary, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(w, summary)
	case FormatYAML:
		return printYAML(w, summary)
	case FormatTable:
		return printSummaryTable(w, summary)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintResult outputs one decision. The text format is exactly the HTTP response body.
func PrintResult(w io.Writer, res decider.Result, format OutputFormat) error {
	switch format {
	case FormatText:
		_, err := fmt.Fprintln(w, res.Message)
		return err
	case FormatJSON:
		return printJSON(w, res.Decision)
	case FormatYAML:
		return printYAML(w, res.Decision)
	case FormatTable:
		table := tablewriter.NewWriter(w)
		table.Header("Flag", "Enabled", "User", "Variation", "Rule")
		if err := table.Append(
			res.Decision.FlagKey,
			fmt.Sprintf("%t", res.Decision.Enabled),
			res.Decision.UserID,
			res.Decision.VariationKey,
			res.Decision.RuleKey,
		); err != nil {
			return err
		}
		return table.Render()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func printJSON(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func printYAML(w io.Writer, data interface{}) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(data)
}

func printSummaryTable(w io.Writer, summary decision.ConfigSummary) error {
	if _, err := fmt.Fprintf(w, "revision %s", summary.Revision); err != nil {
		return err
	}
	if summary.EnvironmentKey != "" {
		fmt.Fprintf(w, " (%s)", summary.EnvironmentKey)
	}
	fmt.Fprintln(w)

	table := tablewriter.NewWriter(w)
	table.Header("#", "Flag")
	for i, key := range summary.FlagKeys {
		if err := table.Append(fmt.Sprintf("%d", i+1), key); err != nil {
			return err
		}
	}
	return table.Render()
}

// ParseFormat validates a --format value.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case FormatTable, FormatJSON, FormatYAML, FormatText:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", s)
	}
}
