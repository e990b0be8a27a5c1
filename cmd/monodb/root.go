// Package monodb implements monodb's command-line interface: a cobra
// root command with serve, recover, and repl subcommands, following the
// same root/subcommand layout as dittofs's cmd/dittofs/commands. The
// root-level main.go is a thin wrapper that calls Execute.
package monodb

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile     string
	walDir      string
	segmentSize uint32
	serverAddr  string
	logLevel    string
	logFormat   string
)

var rootCmd = &cobra.Command{
	Use:   "monodb",
	Short: "monodb is a write-ahead-logged NSQL store",
	Long: `monodb durably sequences NSQL statements (ASK/TELL/FIND/SHOW/GET)
into an append-only, checksum-verified write-ahead log and replays that
log on recovery. It has no page store: every write lands in the log and
nowhere else.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&walDir, "wal-dir", "", "directory holding WAL segment files")
	rootCmd.PersistentFlags().Uint32Var(&segmentSize, "segment-size", 0, "WAL segment size in bytes")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "", "NSQL socket server address")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text, json")

	rootCmd.AddCommand(serveCmd, recoverCmd, replCmd)
}

// Execute runs the root command. Called by the thin package-main wrapper.
func Execute() error {
	return rootCmd.Execute()
}

// bindFlags overlays any persistent flag the user actually set onto v,
// giving CLI flags the highest precedence in config.Load's layering.
func bindFlags(cmd *cobra.Command, v *viper.Viper) {
	v.BindPFlag("wal.dir", cmd.Flags().Lookup("wal-dir"))
	v.BindPFlag("wal.segment_size", cmd.Flags().Lookup("segment-size"))
	v.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	v.BindPFlag("logging.level", cmd.Flags().Lookup("log-level"))
	v.BindPFlag("logging.format", cmd.Flags().Lookup("log-format"))
}
