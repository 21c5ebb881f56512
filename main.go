package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dawam/bot"
	"dawam/config"
	"dawam/internal/export"
	"dawam/internal/handlers"
	"dawam/internal/metrics"
	"dawam/internal/models"
	"dawam/internal/photo"
	"dawam/internal/repository"
	"dawam/internal/services"
	"dawam/internal/session"

	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "dawam",
		Short: "Geofenced attendance service",
		// running without a subcommand serves the API
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
		SilenceUsage: true,
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API, background loops and Telegram bot",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe()
			},
		},
		newExportCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), "dawam", version)
			},
		},
	)
	return root
}

func newExportCmd() *cobra.Command {
	var format, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the attendance log as CSV or XLSX",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "" {
				file, err := os.Create(out)
				if err != nil {
					return err
				}
				defer file.Close()
				w = file
			}
			return exportLog(cmd.Context(), openStore(cfg), cfg.Timezone, f, w)
		},
	}
	cmd.Flags().StringVar(&format, "format", "csv", "csv or xlsx")
	cmd.Flags().StringVar(&out, "out", "", "output file (default stdout)")
	return cmd
}

func exportLog(ctx context.Context, store *repository.Store, loc *time.Location, format export.Format, w io.Writer) error {
	records, err := store.Records.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list records: %w", err)
	}
	users, err := store.Users.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}
	if err := export.Write(w, format, export.Rows(records, users, loc)); err != nil {
		return err
	}
	log.Printf("📤 Exported %d records as %s", len(records), format)
	return nil
}

// openStore selects the backing store from config
func openStore(cfg *config.Config) *repository.Store {
	if cfg.Store == "memory" {
		log.Println("Using in-memory store")
		return repository.NewMemoryStore(repository.DefaultSite)
	}
	log.Printf("Using PocketBase at %s", cfg.PocketBaseURL)
	return repository.NewPocketBaseRESTStore(cfg.PocketBaseURL, cfg.PocketBaseToken)
}

func runServe() error {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log.Println("Config loaded successfully")

	// Create application context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Shutdown signal received, initiating graceful shutdown...")
		cancel()
	}()

	// Initialize Telegram Bot
	botReady := true
	if err := bot.Init(cfg.TelegramBotToken, cfg.AuthorizedChatID); err != nil {
		log.Printf("Warning: Failed to init Telegram Bot: %v", err)
		botReady = false
	}

	// Initialize application dependencies
	app, err := initApplication(ctx, cfg, botReady)
	if err != nil {
		return err
	}
	defer app.sessions.CloseAll()

	if botReady {
		bot.SetBackend(bot.Backend{Users: app.users, Attendance: app.attendance, Tasks: app.tasks})
		bot.StartPolling(ctx)
		log.Println("Telegram Bot Initialized")
	}

	go session.Loop{
		Name:      "monitor",
		Interval:  cfg.MonitorPoll,
		Tick:      app.monitor.Refresh,
		Immediate: true,
	}.Run(ctx)

	// Setup HTTP server
	mux := http.NewServeMux()
	app.api.Register(mux)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped gracefully")
	return nil
}

type application struct {
	api        *handlers.API
	sessions   *session.Manager
	monitor    *services.MonitorService
	attendance *services.AttendanceService
	tasks      *services.TaskService
	users      *services.UserService
}

// initApplication initializes all application dependencies
func initApplication(ctx context.Context, cfg *config.Config, botReady bool) (*application, error) {
	store := openStore(cfg)
	clock := services.SystemClock{}

	if err := repository.Seed(ctx, store, clock.Now()); err != nil {
		log.Printf("Warning: failed to seed store: %v", err)
	}

	photos, err := photo.NewStore(cfg.PhotoDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open photo dir: %w", err)
	}

	var botNotifier services.BotNotifier
	if botReady {
		botNotifier = bot.NewNotifier()
	}

	// Initialize services
	notifications := services.NewNotificationService(store.Notifications, store.Users, botNotifier, clock)
	settings := services.NewSettingsService(store.Settings)
	if cfg.SiteFile != "" {
		if err := watchSiteFile(ctx, cfg.SiteFile, settings); err != nil {
			log.Printf("Warning: site file %s not applied: %v", cfg.SiteFile, err)
		}
	}

	attendance := services.NewAttendanceService(
		store.Records,
		store.Tasks,
		store.Statuses,
		settings,
		notifications,
		clock,
		services.AttendanceOptions{
			Cooldown:      cfg.CheckInCooldown,
			WorkStartTime: cfg.WorkStartTime,
			Location:      cfg.Timezone,
		},
	)
	tasks := services.NewTaskService(store.Tasks, store.Users, notifications, clock)
	users := services.NewUserService(store.Users)
	monitor := services.NewMonitorService(attendance, store.Users, store.Statuses, clock)

	sessions := session.NewManager(attendance, notifications, session.Options{
		NotificationPoll: cfg.NotificationPoll,
		Clock:            clock,
	})

	// Initialize handlers
	api := &handlers.API{
		Sessions:   handlers.NewSessionHandler(users, sessions),
		Attendance: handlers.NewAttendanceHandler(attendance, sessions, photos),
		Dashboard:  handlers.NewDashboardHandler(attendance, tasks, notifications, sessions),
		Tasks:      handlers.NewTaskHandler(tasks),
		Admin:      handlers.NewAdminHandler(settings, monitor, store.Records, users, cfg.Timezone),
		Users:      handlers.NewUserHandler(users),
		Directory:  users,
	}

	return &application{
		api:        api,
		sessions:   sessions,
		monitor:    monitor,
		attendance: attendance,
		tasks:      tasks,
		users:      users,
	}, nil
}

// watchSiteFile applies the YAML work site now and on every change
func watchSiteFile(ctx context.Context, path string, settings *services.SettingsService) error {
	apply := func(site models.WorkSite) error {
		_, err := settings.Update(ctx, site)
		return err
	}

	site, err := config.LoadSite(path)
	if err != nil {
		return err
	}
	if err := apply(site); err != nil {
		return err
	}
	log.Printf("📍 Work site loaded from %s: %.5f,%.5f r=%.2fkm", path, site.Latitude, site.Longitude, site.RadiusKm)

	return config.WatchSite(ctx, path, apply)
}
