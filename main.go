// Command warmap starts the war map editor.
//
// It supports these commands:
//  1. "serve" (default) – runs the HTTP server exposing REST API, WebSocket, and an /mcp HTTP endpoint
//  2. "mcp" – runs an MCP stdio server and spins up an internal HTTP API if none is available
//  3. "export" – renders a stored map to a PNG file
//  4. "presets" – lists the available map presets
//
// Flags (or WARMAP_* environment variables) control host/port, the preset
// directory, the storage backend, debug logging, and optional ngrok tunneling
// for easy external access during development.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/warmap/api"
	"github.com/wricardo/warmap/game/board"
	"github.com/wricardo/warmap/game/config"
	"github.com/wricardo/warmap/game/persistence"
	"github.com/wricardo/warmap/game/service"
	"github.com/wricardo/warmap/render"
	"github.com/wricardo/warmap/transport/mcp"
	"github.com/wricardo/warmap/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "War Map Editor"
)

// Storage backends accepted by --store
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
	StoreHTTP   = "http"
)

// appConfig is the resolved command line configuration
type appConfig struct {
	Host          string
	Port          int
	PresetDir     string
	DefaultPreset string
	StaticDir     string
	Debug         bool
	LogJSON       bool

	Store         string
	DataDir       string
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	StoreURL      string

	IdleTimeout time.Duration

	Ngrok       bool
	NgrokAuth   string
	NgrokDomain string
}

func (c appConfig) addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func configFromCommand(cmd *cli.Command) appConfig {
	return appConfig{
		Host:          cmd.String("host"),
		Port:          int(cmd.Int("port")),
		PresetDir:     cmd.String("preset-dir"),
		DefaultPreset: cmd.String("default-preset"),
		StaticDir:     cmd.String("static-dir"),
		Debug:         cmd.Bool("debug"),
		LogJSON:       cmd.Bool("log-json"),
		Store:         strings.ToLower(cmd.String("store")),
		DataDir:       cmd.String("data-dir"),
		SQLitePath:    cmd.String("sqlite-path"),
		RedisAddr:     cmd.String("redis-addr"),
		RedisPassword: cmd.String("redis-password"),
		RedisDB:       int(cmd.Int("redis-db")),
		RedisPrefix:   cmd.String("redis-prefix"),
		StoreURL:      cmd.String("store-url"),
		IdleTimeout:   cmd.Duration("idle-timeout"),
		Ngrok:         cmd.Bool("ngrok"),
		NgrokAuth:     cmd.String("ngrok-auth"),
		NgrokDomain:   cmd.String("ngrok-domain"),
	}
}

// newApp builds the command tree
func newApp() *cli.Command {
	return &cli.Command{
		Name:    "warmap",
		Usage:   "Edit alliance war maps in the browser or through MCP",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Value: "localhost", Usage: "HTTP server host", Sources: cli.EnvVars("WARMAP_HOST")},
			&cli.IntFlag{Name: "port", Value: 8080, Usage: "HTTP server port", Sources: cli.EnvVars("WARMAP_PORT", "PORT")},
			&cli.StringFlag{Name: "preset-dir", Value: "configs", Usage: "Directory containing map presets (empty for the built-in preset only)", Sources: cli.EnvVars("WARMAP_PRESET_DIR", "CONFIG_DIR")},
			&cli.StringFlag{Name: "default-preset", Usage: "Preset used when a map is created without one", Sources: cli.EnvVars("WARMAP_DEFAULT_PRESET")},
			&cli.StringFlag{Name: "static-dir", Usage: "Directory with a browser editor to serve at / (optional)", Sources: cli.EnvVars("WARMAP_STATIC_DIR")},
			&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging", Sources: cli.EnvVars("WARMAP_DEBUG")},
			&cli.BoolFlag{Name: "log-json", Usage: "Log as JSON", Sources: cli.EnvVars("WARMAP_LOG_JSON")},
			&cli.StringFlag{Name: "store", Value: StoreFile, Usage: "Storage backend: memory, file, sqlite, redis or http", Sources: cli.EnvVars("WARMAP_STORE")},
			&cli.StringFlag{Name: "data-dir", Value: "maps", Usage: "Directory for the file store", Sources: cli.EnvVars("WARMAP_DATA_DIR")},
			&cli.StringFlag{Name: "sqlite-path", Value: "warmap.db", Usage: "Database file for the sqlite store", Sources: cli.EnvVars("WARMAP_SQLITE_PATH")},
			&cli.StringFlag{Name: "redis-addr", Value: "localhost:6379", Usage: "Redis address for the redis store", Sources: cli.EnvVars("WARMAP_REDIS_ADDR", "REDIS_ADDR")},
			&cli.StringFlag{Name: "redis-password", Usage: "Redis password", Sources: cli.EnvVars("WARMAP_REDIS_PASSWORD", "REDIS_PASSWORD")},
			&cli.IntFlag{Name: "redis-db", Usage: "Redis database number", Sources: cli.EnvVars("WARMAP_REDIS_DB")},
			&cli.StringFlag{Name: "redis-prefix", Value: "warmap:", Usage: "Redis key prefix", Sources: cli.EnvVars("WARMAP_REDIS_PREFIX")},
			&cli.StringFlag{Name: "store-url", Usage: "Endpoint of the remote http store", Sources: cli.EnvVars("WARMAP_STORE_URL")},
			&cli.DurationFlag{Name: "idle-timeout", Value: 24 * time.Hour, Usage: "Unload maps not accessed for this long", Sources: cli.EnvVars("WARMAP_IDLE_TIMEOUT")},
			&cli.BoolFlag{Name: "ngrok", Usage: "Enable ngrok tunnel", Sources: cli.EnvVars("NGROK_ENABLED")},
			&cli.StringFlag{Name: "ngrok-auth", Usage: "Ngrok auth token", Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN")},
			&cli.StringFlag{Name: "ngrok-domain", Usage: "Custom ngrok domain (optional)", Sources: cli.EnvVars("NGROK_DOMAIN")},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			setupLogging(cmd.Bool("debug"), cmd.Bool("log-json"))
			return ctx, nil
		},
		Action: runServe,
		Commands: []*cli.Command{
			{
				Name:    "serve",
				Aliases: []string{"server", "http"},
				Usage:   "Run HTTP server with API, WebSocket, and MCP endpoint",
				Action:  runServe,
			},
			{
				Name:    "mcp",
				Aliases: []string{"stdio-mcp", "mcp-stdio"},
				Usage:   "Run MCP stdio server, reusing a running API or starting an internal one",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "api-url", Value: "http://localhost:8080", Usage: "External API to proxy when reachable", Sources: cli.EnvVars("WARMAP_API_URL")},
				},
				Action: runStdioMCP,
			},
			{
				Name:      "export",
				Usage:     "Render a stored map to PNG",
				ArgsUsage: "<map-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: api.ExportFilename, Usage: "Output file"},
					&cli.IntFlag{Name: "cell", Value: render.DefaultCellSize, Usage: "Cell size in pixels"},
					&cli.BoolFlag{Name: "no-labels", Usage: "Omit city labels"},
					&cli.BoolFlag{Name: "no-grid", Usage: "Omit grid lines"},
				},
				Action: runExport,
			},
			{
				Name:   "presets",
				Usage:  "List map presets",
				Action: runListPresets,
			},
		},
	}
}

// main loads .env and runs the selected command.
func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			logrus.WithError(err).Warn("error loading .env file")
		}
	} else {
		logrus.Info("loaded environment variables from .env file")
	}

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		logrus.WithError(err).Fatal("warmap failed")
	}
}

func setupLogging(debug, jsonFormat bool) {
	if jsonFormat {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if debug {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
}

// services holds everything the commands share
type services struct {
	boards     *board.Manager
	hub        *websocket.Hub
	mapService service.MapService

	closers []func()
}

// Close flushes pending saves and releases the backend
func (s *services) Close() {
	s.boards.Close()
	s.hub.Stop()
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// initializeServices wires the preset manager, storage backend, board manager
// and map service. The websocket hub is running when it returns.
func initializeServices(ctx context.Context, cfg appConfig) (*services, error) {
	presets, err := config.NewManager(cfg.PresetDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create preset manager: %w", err)
	}
	if cfg.DefaultPreset != "" {
		if err := presets.SetDefault(cfg.DefaultPreset); err != nil {
			return nil, fmt.Errorf("failed to set default preset: %w", err)
		}
	}

	backend, closeBackend, err := newBackend(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s store: %w", cfg.Store, err)
	}

	hub := websocket.NewHub()
	go hub.Run()

	boards := board.NewManager(backend,
		board.WithListener(hub.BroadcastState),
		board.WithLogger(logrus.WithField("component", "board")),
	)

	s := &services{
		boards:     boards,
		hub:        hub,
		mapService: service.NewMapService(boards, presets),
	}
	if closeBackend != nil {
		s.closers = append(s.closers, closeBackend)
	}
	return s, nil
}

// newBackend opens the storage backend named by cfg.Store
func newBackend(ctx context.Context, cfg appConfig) (persistence.Backend, func(), error) {
	log := logrus.WithField("store", cfg.Store)

	switch cfg.Store {
	case StoreMemory:
		log.Warn("using in-memory store, maps are lost on restart")
		return persistence.NewMemoryBackend(), nil, nil

	case StoreFile, "":
		backend, err := persistence.NewFileBackend(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		log.WithField("dir", cfg.DataDir).Info("using file store")
		return backend, nil, nil

	case StoreSQLite:
		backend, err := persistence.NewSQLiteBackend(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		log.WithField("path", cfg.SQLitePath).Info("using sqlite store")
		return backend, func() {
			if err := backend.Close(); err != nil {
				log.WithError(err).Warn("failed to close sqlite store")
			}
		}, nil

	case StoreRedis:
		client, err := persistence.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		log.WithField("addr", cfg.RedisAddr).Info("using redis store")
		return persistence.NewRedisBackend(client, cfg.RedisPrefix), func() {
			client.Close()
		}, nil

	case StoreHTTP:
		if cfg.StoreURL == "" {
			return nil, nil, fmt.Errorf("--store-url is required for the http store")
		}
		log.WithField("url", cfg.StoreURL).Info("using remote http store")
		return persistence.NewHTTPBackend(cfg.StoreURL), nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// idleCleanupRoutine periodically unloads maps that have not been accessed
// within maxAge. Unloaded maps stay in the store and reopen on demand.
func idleCleanupRoutine(ctx context.Context, boards *board.Manager, maxAge time.Duration) {
	if maxAge <= 0 {
		return
	}
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := boards.CleanupIdle(maxAge); removed > 0 {
				logrus.WithField("count", removed).Info("unloaded idle maps")
			}
		}
	}
}

// mcpHandler serves MCP JSON-RPC messages over plain HTTP POST
func mcpHandler(client *mcp.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := client.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	}
}

// newRouter combines the API server with the /mcp endpoint
func newRouter(s *services, cfg appConfig, baseURL string) http.Handler {
	apiServer := api.NewServer(s.mapService, s.hub, api.WithStaticDir(cfg.StaticDir))

	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)
	mainRouter.HandleFunc("/mcp", mcpHandler(mcp.NewClient(baseURL)))
	return mainRouter
}

// runServe starts the HTTP server with REST API, WebSocket hub, and an /mcp proxy endpoint.
// If ngrok is enabled, it also provisions a public tunnel.
func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg := configFromCommand(cmd)
	logrus.WithField("version", Version).Infof("starting %s", AppName)

	s, err := initializeServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.boards.LoadStored(ctx); err != nil {
		logrus.WithError(err).Warn("failed to load stored maps")
	}

	addr := cfg.addr()
	mainRouter := newRouter(s, cfg, fmt.Sprintf("http://%s", addr))

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mainRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Setup graceful shutdown context
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	var wg sync.WaitGroup
	serverErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()

		logrus.Infof("HTTP server listening on %s", addr)
		logrus.Infof("REST API: http://%s/api", addr)
		logrus.Infof("WebSocket: ws://%s/ws?map=<map_id>", addr)
		logrus.Infof("MCP endpoint: http://%s/mcp", addr)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	go idleCleanupRoutine(ctx, s.boards, cfg.IdleTimeout)

	if cfg.Ngrok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, cfg, mainRouter)
		}()
	}

	select {
	case sig := <-stop:
		logrus.Infof("received signal: %v, shutting down", sig)
	case err := <-serverErr:
		logrus.WithError(err).Error("HTTP server failed")
		cancel()
		wg.Wait()
		return err
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP server shutdown error")
	}

	wg.Wait()
	logrus.Info("server stopped")
	return nil
}

// runNgrok serves handler through an ngrok tunnel until ctx is cancelled
func runNgrok(ctx context.Context, cfg appConfig, handler http.Handler) {
	if cfg.NgrokAuth == "" {
		logrus.Warn("ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN)")
		return
	}

	logrus.Info("starting ngrok tunnel")

	var tunnel ngrokConfig.Tunnel
	if cfg.NgrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(cfg.NgrokDomain))
		logrus.Infof("using custom ngrok domain: %s", cfg.NgrokDomain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(cfg.NgrokAuth))
	if err != nil {
		logrus.WithError(err).Error("failed to start ngrok tunnel")
		return
	}

	ngrokURL := tun.URL()
	logrus.Infof("ngrok tunnel established: %s", ngrokURL)
	logrus.Infof("  Editor (ngrok): %s/", ngrokURL)
	logrus.Infof("  REST API (ngrok): %s/api", ngrokURL)
	logrus.Infof("  MCP endpoint (ngrok): %s/mcp", ngrokURL)

	// closing the tunnel unblocks http.Serve
	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			logrus.WithError(err).Warn("failed to close ngrok tunnel")
		}
	}()

	if err := http.Serve(tun, handler); err != nil && err != http.ErrServerClosed && ctx.Err() == nil {
		logrus.WithError(err).Warn("ngrok server error")
	}
	logrus.Info("ngrok tunnel closed")
}

// apiReachable reports whether an API server answers at baseURL
func apiReachable(baseURL string) bool {
	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(strings.TrimRight(baseURL, "/") + "/api/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}

// runStdioMCP runs an MCP stdio server. It reuses the API at --api-url when it
// answers; otherwise it starts an internal HTTP API bound to a random loopback
// port and targets that.
func runStdioMCP(ctx context.Context, cmd *cli.Command) error {
	cfg := configFromCommand(cmd)
	externalURL := cmd.String("api-url")

	var baseURL string
	logrus.Infof("checking for external API server at %s", externalURL)

	if externalURL != "" && apiReachable(externalURL) {
		logrus.Infof("external API server found at %s, using it for MCP", externalURL)
		baseURL = externalURL
	} else {
		logrus.Info("no external API server found, starting internal HTTP server")

		s, err := initializeServices(ctx, cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}

		internalAddr := listener.Addr().String()
		baseURL = fmt.Sprintf("http://%s", internalAddr)
		logrus.Infof("starting internal HTTP server on %s for MCP stdio", internalAddr)

		httpServer := &http.Server{
			Handler: api.NewServer(s.mapService, s.hub, api.WithStaticDir(cfg.StaticDir)),
		}
		go func() {
			if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
				logrus.WithError(err).Error("internal HTTP server error")
			}
		}()
		defer httpServer.Close()
	}

	mcpClient := mcp.NewClient(baseURL)
	logrus.Infof("MCP stdio server ready (API at %s)", baseURL)

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

// runExport renders a stored map to a PNG file
func runExport(ctx context.Context, cmd *cli.Command) error {
	mapID := cmd.Args().First()
	if mapID == "" {
		return fmt.Errorf("map id is required")
	}
	cfg := configFromCommand(cmd)

	s, err := initializeServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	opts := render.DefaultOptions()
	opts.CellSize = int(cmd.Int("cell"))
	opts.Labels = !cmd.Bool("no-labels")
	opts.GridLines = !cmd.Bool("no-grid")

	out := cmd.String("out")
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}

	if err := s.mapService.ExportPNG(ctx, mapID, opts, f); err != nil {
		f.Close()
		os.Remove(out)
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}

	logrus.WithFields(logrus.Fields{"map_id": mapID, "file": out}).Info("exported map")
	return nil
}

// runListPresets prints the available presets
func runListPresets(ctx context.Context, cmd *cli.Command) error {
	presets, err := config.NewManager(cmd.String("preset-dir"))
	if err != nil {
		return err
	}

	infos, err := presets.ListPresets()
	if err != nil {
		return err
	}

	w := cmd.Root().Writer
	if w == nil {
		w = os.Stdout
	}
	for _, p := range infos {
		fmt.Fprintf(w, "%-12s %3dx%-3d %s\n", p.PresetID, p.Width, p.Height, p.Name)
	}
	return nil
}
