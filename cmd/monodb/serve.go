package monodb

import (
	"errors"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"monodb/internal/config"
	"monodb/internal/logging"
	"monodb/processor"
	"monodb/server"
	"monodb/wal"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the WAL and NSQL socket server in the foreground",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	v := viper.New()
	bindFlags(cmd, v)
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}

	log := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	cache, err := wal.NewCache(cfg.WAL.SegmentSize)
	if err != nil {
		return err
	}

	w, err := wal.Init(wal.Config{
		Dir:         cfg.WAL.Dir,
		SegmentSize: cfg.WAL.SegmentSize,
		Logger:      log,
		Cache:       cache,
	})
	if err != nil {
		return err
	}
	defer w.Shutdown()

	proc := processor.New(w, log.WithField("component", "processor"))
	srv := server.New(cfg.Server.Addr, proc, log.WithField("component", "server"))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("[Serve] shutdown signal received")
		srv.Close()
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}
