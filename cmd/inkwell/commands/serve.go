package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/inkwell-ai/inkwell/internal/approval"
	"github.com/inkwell-ai/inkwell/internal/config"
	"github.com/inkwell-ai/inkwell/internal/document"
	"github.com/inkwell-ai/inkwell/internal/event"
	"github.com/inkwell-ai/inkwell/internal/logging"
	"github.com/inkwell-ai/inkwell/internal/permission"
	"github.com/inkwell-ai/inkwell/internal/server"
	"github.com/inkwell-ai/inkwell/internal/storage"
	"github.com/inkwell-ai/inkwell/internal/usage"
	"github.com/inkwell-ai/inkwell/pkg/types"
)

var (
	servePort      int
	serveDirectory string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the inkwell HTTP server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "server port (overrides config)")
	serveCmd.Flags().StringVarP(&serveDirectory, "directory", "d", "", "project directory for local config")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(serveDirectory)
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}

	logging.Init(logging.Config{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
	})
	log := logging.For("main")

	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	store := storage.New(paths.StoragePath())
	bus := event.NewBus()
	defer bus.Close()

	tracker := usage.NewTracker(store, bus, cfg.Usage.DailyResetHourUTC)
	defer tracker.Close()
	if err := tracker.StartJanitor(ctx); err != nil {
		return err
	}

	engine := permission.NewEngine(store, tracker, bus, cfg.Engine, cfg.Usage)
	approvals := approval.NewManager(store, bus, cfg.Engine.EscalationRejectionThreshold)
	defer approvals.Close()
	documents := document.NewManager(store, bus, cfg.Document)

	stopWatch := config.Watch(ctx, serveDirectory, func(fresh *types.Config) {
		logging.SetLevel(logging.ParseLevel(fresh.Log.Level))
		engine.Reconfigure(fresh.Engine, fresh.Usage)
	})
	defer stopWatch()

	srvCfg := server.DefaultConfig()
	srvCfg.Port = cfg.Server.Port
	srvCfg.EnableCORS = cfg.Server.EnableCORS
	srv := server.New(srvCfg, engine, approvals, documents, tracker, bus)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	log.Info().Int("port", cfg.Server.Port).Msg("inkwell server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	log.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}
