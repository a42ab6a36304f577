// Package main provides the server entry point.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/musicmind/internal/api/connect"
	"github.com/osa030/musicmind/internal/app/catalog"
	"github.com/osa030/musicmind/internal/app/filter"
	"github.com/osa030/musicmind/internal/app/notification"
	"github.com/osa030/musicmind/internal/app/playback"
	"github.com/osa030/musicmind/internal/infra/audio"
	"github.com/osa030/musicmind/internal/infra/config"
	"github.com/osa030/musicmind/internal/infra/embed"
	"github.com/osa030/musicmind/internal/infra/logger"
	"github.com/osa030/musicmind/internal/infra/musicapi"
	"github.com/osa030/musicmind/internal/infra/spotify"
)

var (
	app        = kingpin.New("musicmind-server", "musicmind playback server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	// list-filters command
	listFiltersCmd = app.Command("list-filters", "List available filters and exit")
)

func init() {
	// start command (default) - no need to store the command
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listFiltersCmd.FullCommand() {
		printFilters()
		return
	}

	// Console logging until the config is known
	if _, err := logger.Init(logConfig(config.LogConfig{Output: "stdout", Level: "info"})); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	closer, err := logger.Init(logConfig(cfg.Log))
	if err != nil {
		zlog.Fatal().Msgf("Failed to initialize logger: %v", err)
	}
	defer closer.Close()

	// Run server (defer ensures shutdown hook is called)
	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		closer.Close()
		os.Exit(1)
	}
}

// logConfig applies the command-line overrides to the configured logger.
func logConfig(c config.LogConfig) logger.Config {
	lc := logger.Config{Output: c.Output, Level: c.Level, File: c.File}
	if *verbose {
		lc.Level = "debug"
	}
	if *logfile != "" {
		lc.Output = "file"
		lc.File = *logfile
	}
	return lc
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	if err := validateFilterConfig(cfg); err != nil {
		return errors.Wrap(err, "invalid filter config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Catalog API client (also records plays and skips)
	apiClient, err := musicapi.New(musicapi.Config{
		BaseURL:   cfg.API.BaseURL,
		UserID:    cfg.API.UserID,
		AuthToken: cfg.API.AuthToken,
		Timeout:   cfg.API.Timeout(),
	})
	if err != nil {
		return errors.Wrap(err, "failed to create catalog API client")
	}

	clients := catalog.Clients{MusicAPI: apiClient}
	if cfg.Spotify.Configured() {
		spotifyClient, err := spotify.New(ctx, spotify.Config{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			RefreshToken: cfg.Spotify.RefreshToken,
			Market:       cfg.Spotify.Market,
		})
		if err != nil {
			return errors.Wrap(err, "failed to create Spotify client")
		}
		clients.Spotify = spotifyClient
	}

	providers, err := catalog.NewProviderChainFromConfig(cfg, clients)
	if err != nil {
		return errors.Wrap(err, "failed to create catalog providers")
	}
	filters, err := filter.NewChainFromConfig(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to create filter chain")
	}
	catalogService := catalog.NewService(providers, filters, cfg.Catalog.CandidateCount)

	// Playback backends
	out, err := audio.NewSpeaker(cfg.Audio.SampleRate, time.Duration(cfg.Audio.BufferMs)*time.Millisecond)
	if err != nil {
		zlog.Warn().Msgf("Native audio disabled, direct audio tracks will fail to load: %v", err)
		out = nil
	}
	native := audio.NewFactory(audio.Config{
		MaxDownloadBytes:   int64(cfg.Audio.MaxDownloadMB) << 20,
		HTTPTimeout:        time.Duration(cfg.Audio.HTTPTimeoutMs) * time.Millisecond,
		TimeUpdateInterval: cfg.Playback.TimeUpdateInterval(),
	}, out)
	bridge := embed.NewBridge(embed.Config{
		ReadyTimeout: cfg.Embed.ReadyTimeout(),
		Origin:       cfg.Embed.Origin,
	})

	controller := playback.NewController(playback.Config{
		InitialVolume: cfg.Playback.Volume(),
		PollInterval:  cfg.Playback.PollInterval(),
		LoadTimeout:   cfg.Playback.LoadTimeout(),
		ReportTimeout: cfg.Playback.ReportTimeout(),
		EventBuffer:   cfg.Playback.EventBuffer,
		SkipLogLimit:  cfg.Playback.SkipLogLimit,
	}, native, bridge, nil, apiClient)

	notifications := notification.NewManager()
	go notifications.Run(ctx, controller)

	// RPC services
	interceptors := connect.WithInterceptors(apiconnect.NewControlAuthInterceptor(cfg.Server.ControlToken))
	playerPath, playerHandler := apiconnect.NewPlayerServiceHandler(
		apiconnect.NewPlayerService(controller, notifications),
		interceptors,
	)
	catalogPath, catalogHandler := apiconnect.NewCatalogServiceHandler(
		apiconnect.NewCatalogService(catalogService, controller),
		interceptors,
	)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Mount(strings.TrimSuffix(playerPath, "/"), playerHandler)
	r.Mount(strings.TrimSuffix(catalogPath, "/"), catalogHandler)
	r.Mount(cfg.Embed.PlayerPath, bridge.Handler())
	r.Get("/healthz", healthHandler(controller, bridge))

	serverAddr := cfg.Server.Addr
	// Create server with h2c (HTTP/2 cleartext) support
	server := &http.Server{
		Addr:    serverAddr,
		Handler: h2c.NewHandler(r, &http2.Server{}),
	}

	// Channel to capture server startup errors
	serverErrCh := make(chan error, 1)
	serverStartedCh := make(chan struct{})

	go func() {
		zlog.Info().Msgf("Starting server: addr=%s player_page=%s", serverAddr, cfg.Embed.PlayerPath)
		close(serverStartedCh)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	// Wait for server to start listening
	<-serverStartedCh
	// Give the server a moment to fully initialize
	time.Sleep(100 * time.Millisecond)

	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		controller.Close()
		return errors.Wrap(err, "server error")
	}

	// Release the bound backend first so streams see the final state
	controller.Close()
	notifications.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Server stopped")

	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")

	return nil
}

type health struct {
	Status        string `json:"status"`
	Phase         string `json:"phase"`
	Backend       string `json:"backend,omitempty"`
	PageConnected bool   `json:"page_connected"`
}

// healthHandler reports liveness with a short playback summary.
func healthHandler(controller *playback.Controller, bridge *embed.Bridge) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := controller.Snapshot()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(health{
			Status:        "ok",
			Phase:         snap.Phase,
			Backend:       snap.Backend,
			PageConnected: bridge.Connected(),
		})
	}
}

// printFilters prints available filters.
func printFilters() {
	fmt.Println("Available Filters:")
	registry := filter.GetRegistered()
	for _, name := range filter.Names() {
		f := registry[name]()
		codes := strings.Join(f.ReturnCodes(), ", ")
		fmt.Printf("  %-30s - %s [codes: %s]\n", f.Name(), f.Description(), codes)
	}
}

// validateFilterConfig validates filter configurations.
func validateFilterConfig(cfg *config.Config) error {
	registry := filter.GetRegistered()

	for filterName, filterCfg := range cfg.Filters {
		if !filterCfg.Enabled {
			continue
		}

		factory, exists := registry[filterName]
		if !exists {
			return errors.Newf("unknown filter %q", filterName)
		}

		f := factory()
		if err := f.ValidateConfig(filterCfg.Settings); err != nil {
			return errors.Wrapf(err, "filter %s", filterName)
		}
	}

	return nil
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// Use sh -c to allow shell features like redirection or pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
