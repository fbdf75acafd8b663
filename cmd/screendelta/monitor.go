package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/junsooki/ScreenDelta/internal/logging"
	"github.com/junsooki/ScreenDelta/internal/telemetry"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Receive and log telemetry from running overlays",
	Args:  cobra.NoArgs,
	RunE:  runMonitor,
}

func init() {
	monitorCmd.Flags().String("listen", ":8090", "address to listen on")
	monitorCmd.Flags().String("path", "/ws", "websocket endpoint path")
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	ctx, err := logging.New(cmd.Context(), viper.GetString("logging.level"), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer logging.Flush(ctx)
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	listen, _ := cmd.Flags().GetString("listen")
	path, _ := cmd.Flags().GetString("path")

	mux := http.NewServeMux()
	mux.Handle(path, telemetry.NewServer(ctx, logReport))
	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf(ctx, "monitor shutdown: %v", err)
		}
	}()

	logger.Infof(ctx, "monitor listening on %s%s", listen, path)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Errorf(ctx, "monitor: %v", err)
		return err
	}
	return nil
}

func logReport(ctx context.Context, clientID string, msg telemetry.Message) {
	switch msg.Type {
	case telemetry.TypeState:
		logger.Infof(ctx, "%s: %s -> %s (%s)", clientID, msg.PrevState, msg.State, msg.Reason)
	case telemetry.TypeCycle:
		if msg.RegionCount == 0 {
			logger.Tracef(ctx, "%s: frame %d unchanged", clientID, msg.Seq)
			return
		}
		logger.Infof(ctx, "%s: frame %d, %d regions, %d changed pixels, detect %.2fms, cycle %.2fms",
			clientID, msg.Seq, msg.RegionCount, msg.ChangedPixels, msg.DetectMs, msg.CycleMs)
	}
}
