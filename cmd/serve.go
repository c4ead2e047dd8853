package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/edaloom/internal/logger"
	"github.com/KaramelBytes/edaloom/internal/report"
	"github.com/KaramelBytes/edaloom/internal/server"
	"github.com/KaramelBytes/edaloom/internal/session"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the upload page and report server",
	RunE: func(cmd *cobra.Command, args []string) error {
		opt, err := serverOptions()
		if err != nil {
			return err
		}
		addr := cfg.ListenAddr
		if serveAddr != "" {
			addr = serveAddr
		}
		ttl := time.Duration(cfg.SessionTTLMin) * time.Minute
		gen := &report.HTMLGenerator{Dir: cfg.ReportDir, Title: cfg.ReportTitle, Charts: true}
		srv := server.New(opt, session.NewStore(ttl), gen)

		parent := cmd.Context()
		if parent == nil {
			parent = context.Background()
		}
		ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger.SetTimestamps(true)
		logger.Info("max upload %d MB, max rows %d, session ttl %s", cfg.MaxUploadMB, cfg.MaxRows, ttl)
		if err := srv.Run(ctx, addr); err != nil {
			return err
		}
		logger.Info("server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides listen_addr)")
}

func serverOptions() (server.Options, error) {
	in, err := ingestOptions()
	if err != nil {
		return server.Options{}, err
	}
	opt := server.DefaultOptions()
	opt.Title = cfg.ReportTitle
	opt.MaxUploadBytes = int64(cfg.MaxUploadMB) << 20
	opt.UploadsPerSecond = cfg.UploadsPerSecond
	opt.UploadBurst = cfg.UploadBurst
	opt.PreviewRows = cfg.PreviewRows
	opt.DefaultMode = cfg.ReportMode
	opt.Ingest = in
	opt.Profile = profileOptions(cfg.ReportMode == "minimal")
	if opt.MaxUploadBytes <= 0 {
		return opt, fmt.Errorf("max_upload_mb must be positive")
	}
	return opt, nil
}
