package cli

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"gtec-tasks/internal/bot"
	"gtec-tasks/internal/config"
	"gtec-tasks/internal/export"
	"gtec-tasks/internal/repository"
	"gtec-tasks/internal/service"
	"gtec-tasks/internal/web"
)

func newServeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web front-end, the Telegram bot and scheduled jobs",
		Long: `Run the web front-end, the Telegram bot and the scheduled jobs.

With STORE_BACKEND=memory every browser session gets its own throwaway task
list, and the Telegram bot keeps a separate one shared by all chats. Chat
commands and the scheduled digest never see tasks entered on the web in this
mode. Use the csv, sqlite or postgres backend to share tasks between the web
front-end and the bot.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := app.loadConfig()
			if err != nil {
				return err
			}
			return runServe(ctx, cfg)
		},
	}
}

func runServe(ctx context.Context, cfg config.Config) error {
	if os.Getenv(gin.EnvGinMode) == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	scheduler := service.NewSchedulerService(time.Local)

	var (
		srv   *web.Server
		tasks *service.TaskService
	)
	if cfg.StoreBackend == config.BackendMemory {
		sessions := repository.NewSessions()
		srv = web.NewSessionServer(sessions, cfg.Requesters, cfg.SessionTTL)
		if _, err := scheduler.ScheduleInterval("reap-sessions", cfg.SessionTTL/2, func() {
			if n := sessions.Reap(cfg.SessionTTL); n > 0 {
				log.Printf("[info] reaped %d idle sessions", n)
			}
		}); err != nil {
			return err
		}
		// Chat users share one transient store of their own.
		tasks = service.NewTaskService(repository.NewMemoryStore(), cfg.Requesters)
	} else {
		store, closeStore, err := repository.Open(cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := closeStore(); err != nil {
				log.Printf("close store: %v", err)
			}
		}()
		tasks = service.NewTaskService(store, cfg.Requesters)
		srv = web.NewServer(tasks)

		if cfg.ExportDir != "" {
			if _, err := scheduler.ScheduleDaily("export", cfg.ExportSchedule, func() {
				snapshotExport(tasks, cfg.ExportDir)
			}); err != nil {
				return err
			}
		}
	}

	var telegramBot *bot.Bot
	if cfg.TelegramToken != "" {
		b, err := bot.New(cfg.TelegramToken, tasks, service.NewReportService(tasks))
		if err != nil {
			return err
		}
		telegramBot = b
		if cfg.ReportInterval > 0 {
			if _, err := scheduler.ScheduleInterval("digest", cfg.ReportInterval, func() {
				jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if err := telegramBot.SendDigests(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
					log.Printf("report: %v", err)
				}
			}); err != nil {
				return err
			}
		}
	} else {
		log.Println("[info] TELEGRAM_TOKEN not set, bot disabled")
	}

	scheduler.Start()
	defer scheduler.Stop()

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		log.Printf("[info] web listening on %s (store=%s)", cfg.HTTPAddr, cfg.StoreBackend)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	if telegramBot != nil {
		go func() {
			if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- err
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	log.Println("Shutdown complete.")
	return runErr
}

func snapshotExport(tasks *service.TaskService, dir string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	snapshot, err := tasks.Snapshot(ctx)
	if err != nil {
		log.Printf("export snapshot: %v", err)
		return
	}
	path, err := export.WriteSnapshot(dir, snapshot, time.Now())
	if err != nil {
		log.Printf("export snapshot: %v", err)
		return
	}
	log.Printf("[info] exported %d tasks to %s", len(snapshot), path)
}
