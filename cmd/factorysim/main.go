// Command factorysim runs the production yard: as a server, headless for a number of ticks, or as
// a replay of a recorded run.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"factorysim.ai/internal/config"
)

type rootOptions struct {
	configPath string
	v          *viper.Viper
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{v: viper.New()}
	root := &cobra.Command{
		Use:           "factorysim",
		Short:         "Production and logistics yard simulation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "path to factorysim.yaml (default: ./factorysim.yaml or ./configs/factorysim.yaml)")
	pf.String("configs", "./configs", "catalog and layout directory")
	pf.String("data", "./data", "runtime data directory")
	pf.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
	pf.String("layout", "", "path to layout.yaml (default: <configs>/layout.yaml)")
	pf.String("log-level", "info", "debug|info|warn|error")
	pf.Bool("log-json", false, "log JSON instead of console output")
	for key, flag := range map[string]string{
		"configs_dir": "configs",
		"data_dir":    "data",
		"tuning_path": "tuning",
		"layout_path": "layout",
		"log_level":   "log-level",
		"log_json":    "log-json",
	} {
		_ = opts.v.BindPFlag(key, pf.Lookup(flag))
	}

	root.AddCommand(newServeCmd(opts), newSimulateCmd(opts), newReplayCmd(opts))
	return root
}

func (o *rootOptions) load() (config.Config, error) {
	return config.LoadWith(o.v, o.configPath)
}

// newLogger writes human-readable output to terminals and JSON everywhere else.
func newLogger(cfg config.Config, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	w := out
	if !cfg.LogJSON && isTerminal(out) {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	st, err := f.Stat()
	if err != nil {
		return false
	}
	return st.Mode()&os.ModeCharDevice != 0
}
