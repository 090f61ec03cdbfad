package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/TimurManjosov/flagedge/internal/backend"
	"github.com/TimurManjosov/flagedge/internal/config"
	"github.com/TimurManjosov/flagedge/internal/datafile"
	"github.com/TimurManjosov/flagedge/internal/decider"
	"github.com/TimurManjosov/flagedge/internal/logging"
)

var (
	// Global flags
	sdkKey       string
	datafilePath string
	baseURL      string
	format       string
	verbose      bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "flagedge",
	Short: "Evaluate Optimizely flags from the command line",
	Long: `flagedge runs the same decision pipeline as the server, once, from a terminal.

The datafile is fetched from the CDN for --sdk-key (default: OPTIMIZELY_SDK_KEY), or read
from a local file with --datafile.

Examples:
  flagedge decide --sdk-key abc123
  flagedge decide --flag checkout --datafile ./datafile.json
  flagedge flags --sdk-key abc123 --format yaml
  flagedge datafile --sdk-key abc123 > datafile.json`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&sdkKey, "sdk-key", "", "Optimizely SDK key (default: OPTIMIZELY_SDK_KEY)")
	rootCmd.PersistentFlags().StringVar(&datafilePath, "datafile", "", "Read the datafile from this file instead of the CDN")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Datafile CDN base URL (default: DATAFILE_BASE_URL)")
	rootCmd.PersistentFlags().StringVar(&format, "format", "", "Output format (text, table, json, yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Log pipeline steps to stderr")
}

// fileSource reads the datafile from disk regardless of key.
type fileSource struct {
	path string
}

func (f fileSource) Fetch(_ context.Context, _ string, _ time.Duration) (string, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		return "", fmt.Errorf("read datafile: %w", err)
	}
	return string(b), nil
}

// env bundles what every command needs.
type env struct {
	cfg     *config.Config
	log     zerolog.Logger
	source  decider.DatafileSource
	request config.RequestConfig
}

func setup(cmd *cobra.Command) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	var w io.Writer = io.Discard
	if verbose {
		w = cmd.ErrOrStderr()
	}
	log := logging.New("debug", "console", w)

	rc := cfg.Request()
	if sdkKey != "" {
		rc.SDKKey = sdkKey
	}

	e := &env{cfg: cfg, log: log, request: rc}
	if datafilePath != "" {
		e.source = fileSource{path: datafilePath}
		return e, nil
	}

	base := cfg.DatafileBaseURL
	if baseURL != "" {
		base = baseURL
	}
	fetcher, err := datafile.NewFetcher(backend.Default(cfg.EventTimeout), 1, datafile.WithBaseURL(base))
	if err != nil {
		return nil, err
	}
	e.source = fetcher
	return e, nil
}

func (e *env) context(cmd *cobra.Command) context.Context {
	return e.log.WithContext(cmd.Context())
}
