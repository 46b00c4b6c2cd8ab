// Command volley-relay starts the volleyball match relay server.
//
// It supports two modes:
//  1. "server" (default) – runs the HTTP server exposing the REST API, the WebSocket relay, and an /mcp HTTP endpoint
//  2. "stdio-mcp" – runs an MCP stdio server and spins up an internal relay if none is available
//
// Flags and environment variables control the relay mode (local or cloud),
// host/port, snapshot retention, the scoreboard bridge, logging, and optional
// ngrok tunneling for exposing a courtside relay to remote tablets.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/volley-relay/api"
	"github.com/wricardo/volley-relay/relay/bridge"
	"github.com/wricardo/volley-relay/relay/config"
	"github.com/wricardo/volley-relay/relay/match"
	"github.com/wricardo/volley-relay/relay/service"
	"github.com/wricardo/volley-relay/transport/mcp"
	"github.com/wricardo/volley-relay/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Volleyball Match Relay"
)

// Run modes
const (
	modeServer   = "server"
	modeStdioMCP = "stdio-mcp"
)

// runFunc starts the relay in mode with cfg
type runFunc func(ctx context.Context, cfg *config.Config, mode string) error

// main loads the environment, parses flags, and starts the selected mode.
func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("error loading .env file", "error", err)
	}

	cmd := newCommand(run)
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("relay stopped", "error", err)
		os.Exit(1)
	}
}

// newCommand builds the CLI. Every flag can also be set through the
// environment variable named in its Sources.
func newCommand(start runFunc) *cli.Command {
	action := func(mode string) cli.ActionFunc {
		return func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return start(ctx, cfg, mode)
		}
	}

	return &cli.Command{
		Name:    "volley-relay",
		Usage:   "WebSocket relay between a volleyball scoreboard, referee and bench tablets, and live displays",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "JSON configuration file", Sources: cli.EnvVars("RELAY_CONFIG")},
			&cli.StringFlag{Name: "mode", Usage: "relay mode: local or cloud", Sources: cli.EnvVars("RELAY_MODE")},
			&cli.StringFlag{Name: "host", Usage: "HTTP server host", Sources: cli.EnvVars("HOST")},
			&cli.StringFlag{Name: "port", Usage: "HTTP server port", Sources: cli.EnvVars("PORT")},
			&cli.BoolFlag{Name: "retain-snapshots", Usage: "keep match snapshots after their room empties (default: on in cloud mode)", Sources: cli.EnvVars("RETAIN_SNAPSHOTS")},
			&cli.BoolFlag{Name: "bridge", Usage: "forward lookups the relay cannot answer to the scoreboard (default: on)", Sources: cli.EnvVars("BRIDGE_ENABLED")},
			&cli.DurationFlag{Name: "bridge-timeout", Usage: "how long to wait for the scoreboard", Sources: cli.EnvVars("BRIDGE_TIMEOUT")},
			&cli.DurationFlag{Name: "reap-interval", Usage: "interval of the stale connection sweep", Sources: cli.EnvVars("REAP_INTERVAL")},
			&cli.StringSliceFlag{Name: "allowed-origins", Usage: "browser origins allowed by CORS and the WebSocket upgrade", Sources: cli.EnvVars("ALLOWED_ORIGINS")},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error", Sources: cli.EnvVars("LOG_LEVEL")},
			&cli.BoolFlag{Name: "ngrok", Usage: "enable ngrok tunnel", Sources: cli.EnvVars("NGROK_ENABLED")},
			&cli.StringFlag{Name: "ngrok-auth", Usage: "ngrok auth token", Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN")},
			&cli.StringFlag{Name: "ngrok-domain", Usage: "custom ngrok domain (optional)", Sources: cli.EnvVars("NGROK_DOMAIN")},
		},
		Action: action(modeServer),
		Commands: []*cli.Command{
			{
				Name:    modeServer,
				Aliases: []string{"http"},
				Usage:   "Run HTTP server with REST API, WebSocket relay, and MCP endpoint (default)",
				Action:  action(modeServer),
			},
			{
				Name:    modeStdioMCP,
				Aliases: []string{"mcp-stdio", "mcp"},
				Usage:   "Run MCP stdio server, starting an internal relay if none is running",
				Action:  action(modeStdioMCP),
			},
		},
	}
}

// loadConfig layers defaults, the optional config file, and flags
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg := config.Default()

	if path := cmd.String("config"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	if cmd.IsSet("mode") {
		cfg.Mode = cmd.String("mode")
	}
	if cmd.IsSet("host") {
		cfg.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Port = cmd.String("port")
	}
	if cmd.IsSet("retain-snapshots") {
		retain := cmd.Bool("retain-snapshots")
		cfg.RetainSnapshots = &retain
	}
	if cmd.IsSet("bridge") {
		cfg.BridgeEnabled = cmd.Bool("bridge")
	}
	if cmd.IsSet("bridge-timeout") {
		cfg.BridgeTimeout = config.Duration(cmd.Duration("bridge-timeout"))
	}
	if cmd.IsSet("reap-interval") {
		cfg.ReapInterval = config.Duration(cmd.Duration("reap-interval"))
	}
	if cmd.IsSet("allowed-origins") {
		cfg.AllowedOrigins = cmd.StringSlice("allowed-origins")
	}
	if cmd.IsSet("log-level") {
		cfg.LogLevel = cmd.String("log-level")
	}
	if cmd.IsSet("ngrok") {
		cfg.Ngrok.Enabled = cmd.Bool("ngrok")
	}
	if cmd.IsSet("ngrok-auth") {
		cfg.Ngrok.AuthToken = cmd.String("ngrok-auth")
	}
	if cmd.IsSet("ngrok-domain") {
		cfg.Ngrok.Domain = cmd.String("ngrok-domain")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogging installs the default slog logger writing to w
func setupLogging(level string, w io.Writer) {
	lvl, _ := config.ParseLevel(level)
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})))
}

func run(ctx context.Context, cfg *config.Config, mode string) error {
	switch mode {
	case modeStdioMCP:
		// stdout carries the MCP protocol
		setupLogging(cfg.LogLevel, os.Stderr)
		slog.Info("starting", "app", AppName, "version", Version, "mode", mode)
		return runStdioMCPWithInternalServer(ctx, cfg)
	default:
		setupLogging(cfg.LogLevel, os.Stdout)
		slog.Info("starting", "app", AppName, "version", Version, "mode", mode, "relayMode", cfg.Mode)
		return runHTTPServer(ctx, cfg)
	}
}

// relay is one wired instance of the relay core and its HTTP surface
type relay struct {
	store   *match.Store
	hub     *websocket.Hub
	bridge  *bridge.Bridge
	service service.MatchService
	api     *api.Server
}

// newRelay wires store, hub, bridge, service and REST API from cfg
func newRelay(cfg *config.Config) *relay {
	store := match.NewStore()
	hub := websocket.NewHub(store, websocket.Options{
		RetainSnapshots:   cfg.Retain(),
		MaxMessageSize:    cfg.MaxMessageSize,
		TrustForwardedFor: cfg.TrustForwardedFor(),
		CheckOrigin:       api.OriginChecker(cfg.AllowedOrigins),
	})
	b := bridge.New(hub, time.Duration(cfg.BridgeTimeout))

	var correlator service.Correlator
	if cfg.BridgeEnabled {
		hub.SetResolver(b)
		correlator = b
	}

	svc := service.NewMatchService(store, hub, correlator, service.Options{
		Mode:            cfg.Mode,
		RetainSnapshots: cfg.Retain(),
	})

	return &relay{
		store:   store,
		hub:     hub,
		bridge:  b,
		service: svc,
		api:     api.NewServer(svc, hub, cfg.AllowedOrigins),
	}
}

// mountMCP serves the MCP tools over HTTP at /mcp, proxying to baseURL
func (r *relay) mountMCP(baseURL string) {
	mcpClient := mcp.NewClient(baseURL)

	r.api.Mount("/mcp", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(req.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer req.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(req.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	}))
}

// startMaintenance schedules the stale connection sweep and a periodic
// stats line
func (r *relay) startMaintenance(reapInterval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(reapInterval),
		gocron.NewTask(func() {
			if reaped := r.hub.Reap(); reaped > 0 {
				slog.Info("reaped stale connections", "count", reaped)
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule reaper: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(5*time.Minute),
		gocron.NewTask(func() {
			stats := r.hub.Stats()
			slog.Info("relay stats",
				"connections", stats.Connections,
				"rooms", stats.Rooms,
				"matches", r.store.Count(),
				"pendingRequests", r.bridge.Pending())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule stats: %w", err)
	}

	sched.Start()
	return sched, nil
}

// loopbackURL returns the URL local tools use to reach a server bound to addr
func loopbackURL(host, port string) string {
	switch host {
	case "", "0.0.0.0", "::", "[::]":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// runHTTPServer starts the HTTP server with REST API, WebSocket relay, and an /mcp proxy endpoint.
// If ngrok is enabled, it also provisions a public tunnel.
func runHTTPServer(ctx context.Context, cfg *config.Config) error {
	r := newRelay(cfg)

	// Setup graceful shutdown context
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	hubCtx, stopHub := context.WithCancel(context.Background())
	var hubDone sync.WaitGroup
	hubDone.Add(1)
	go func() {
		defer hubDone.Done()
		r.hub.Run(hubCtx)
	}()

	sched, err := r.startMaintenance(time.Duration(cfg.ReapInterval))
	if err != nil {
		stopHub()
		return err
	}

	addr := cfg.Addr()
	baseURL := loopbackURL(cfg.Host, cfg.Port)
	r.mountMCP(baseURL)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           r.api,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)

	// Start regular HTTP server
	wg.Add(1)
	go func() {
		defer wg.Done()

		slog.Info("HTTP server listening", "addr", addr)
		slog.Info("endpoints", "rest", baseURL+"/api", "websocket", strings.Replace(baseURL, "http", "ws", 1)+"/ws", "mcp", baseURL+"/mcp")

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	// Start ngrok tunnel if enabled
	if cfg.Ngrok.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, cfg.Ngrok, r.api)
		}()
	}

	// Wait for shutdown signal
	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case runErr = <-serveErr:
		stop()
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	if err := sched.Shutdown(); err != nil {
		slog.Error("scheduler shutdown error", "error", err)
	}

	// Closes every WebSocket
	stopHub()
	hubDone.Wait()

	// Wait for all goroutines to finish
	wg.Wait()
	slog.Info("server stopped")
	return runErr
}

// runNgrok serves handler through an ngrok tunnel until ctx is done
func runNgrok(ctx context.Context, opts config.Ngrok, handler http.Handler) {
	if opts.AuthToken == "" {
		slog.Warn("ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN)")
		return
	}

	slog.Info("starting ngrok tunnel")

	// Configure ngrok endpoint
	var tunnel ngrokConfig.Tunnel
	if opts.Domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(opts.Domain))
		slog.Info("using custom ngrok domain", "domain", opts.Domain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx,
		tunnel,
		ngrok.WithAuthtoken(opts.AuthToken),
	)
	if err != nil {
		slog.Error("failed to start ngrok tunnel", "error", err)
		return
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			slog.Error("failed to close ngrok tunnel", "error", err)
		}
	}()

	ngrokURL := tun.URL()
	slog.Info("ngrok tunnel established", "url", ngrokURL)
	slog.Info("ngrok endpoints", "rest", ngrokURL+"/api", "websocket", strings.Replace(ngrokURL, "http", "ws", 1)+"/ws", "mcp", ngrokURL+"/mcp")

	// Serve HTTP through ngrok tunnel
	if err := http.Serve(tun, handler); err != nil && err != http.ErrServerClosed && ctx.Err() == nil {
		slog.Error("ngrok server error", "error", err)
	}
	slog.Info("ngrok tunnel closed")
}

// runStdioMCPWithInternalServer runs an MCP stdio server.
// It reuses a relay already listening on the configured port; if none is
// found, it starts an internal relay bound to a random loopback port and
// targets that.
func runStdioMCPWithInternalServer(ctx context.Context, cfg *config.Config) error {
	externalURL := loopbackURL(cfg.Host, cfg.Port)
	slog.Info("checking for running relay", "url", externalURL)

	baseURL := externalURL
	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(externalURL + "/health")
	healthy := false
	if err == nil {
		healthy = resp.StatusCode < 500
		resp.Body.Close()
	}
	if healthy {
		slog.Info("relay found, using it for MCP", "url", externalURL)
	} else {
		slog.Info("no relay found, starting internal relay")

		internal, err := startInternalRelay(ctx, cfg)
		if err != nil {
			return err
		}
		defer internal.shutdown()

		baseURL = internal.url
		slog.Info("internal relay listening", "url", baseURL)
	}

	mcpClient := mcp.NewClient(baseURL)
	slog.Info("MCP stdio server ready", "api", baseURL)

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

// internalRelay is a relay served on a loopback port for stdio-mcp mode
type internalRelay struct {
	*relay
	url      string
	sched    gocron.Scheduler
	shutdown func()
}

// startInternalRelay runs a relay with its maintenance jobs on a random
// loopback port until shutdown is called or ctx is done
func startInternalRelay(ctx context.Context, cfg *config.Config) (*internalRelay, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to get available port: %w", err)
	}

	r := newRelay(cfg)
	hubCtx, stopHub := context.WithCancel(ctx)
	go r.hub.Run(hubCtx)

	sched, err := r.startMaintenance(time.Duration(cfg.ReapInterval))
	if err != nil {
		stopHub()
		listener.Close()
		return nil, err
	}

	httpServer := &http.Server{Handler: r.api, ReadHeaderTimeout: 15 * time.Second}
	go func() {
		if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			slog.Error("internal HTTP server error", "error", err)
		}
	}()

	return &internalRelay{
		relay: r,
		url:   "http://" + listener.Addr().String(),
		sched: sched,
		shutdown: func() {
			httpServer.Close()
			if err := sched.Shutdown(); err != nil {
				slog.Error("scheduler shutdown error", "error", err)
			}
			stopHub()
		},
	}, nil
}
