package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"owp.world/internal/admin"
	"owp.world/internal/assistant/mcp"
	"owp.world/internal/discovery"
	"owp.world/internal/registry"
	"owp.world/internal/storage"
	"owp.world/internal/transport/game"
	"owp.world/internal/transport/ws"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "create-world":
			createWorldCmd(os.Args[2:])
			return
		case "run":
			runCmd(os.Args[2:])
			return
		case "admin":
			adminCmd(os.Args[2:])
			return
		}
	}
	fmt.Fprintln(os.Stderr, "usage: server <create-world|run|admin> [flags]")
	os.Exit(2)
}

func createWorldCmd(args []string) {
	fs := flag.NewFlagSet("create-world", flag.ExitOnError)
	configPath := fs.String("config", "./configs/server.yaml", "server config path (optional)")
	dataDir := fs.String("data", "", "runtime data directory (overrides config)")
	name := fs.String("name", "", "world name")
	gamePort := fs.Uint("game_port", 7777, "game port")
	_ = fs.Parse(args)

	if strings.TrimSpace(*name) == "" {
		fmt.Fprintln(os.Stderr, "missing -name")
		os.Exit(2)
	}

	store := openStore(*configPath, *dataDir)
	manifest, err := store.CreateWorld(*name, uint16(*gamePort))
	if err != nil {
		fmt.Fprintln(os.Stderr, "create world:", err)
		os.Exit(1)
	}
	b, _ := json.MarshalIndent(manifest, "", "  ")
	fmt.Println(string(b))
}

func runCmd(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "./configs/server.yaml", "server config path (optional)")
	dataDir := fs.String("data", "", "runtime data directory (overrides config)")
	worldIDStr := fs.String("world", "", "world id to serve")
	listen := fs.String("listen", "", "listen address (default: 0.0.0.0:<world game_port>)")
	wsListen := fs.String("ws_listen", "", "websocket listen address (empty to disable)")
	_ = fs.Parse(args)

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	worldID, err := uuid.Parse(strings.TrimSpace(*worldIDStr))
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid -world:", err)
		os.Exit(2)
	}

	store := openStore(*configPath, *dataDir)
	manifest, err := storage.ReadManifest(store.WorldDir(worldID))
	if err != nil {
		logger.Fatalf("world not found: %v", err)
	}

	addr := strings.TrimSpace(*listen)
	if addr == "" {
		addr = fmt.Sprintf("0.0.0.0:%d", manifest.Ports.GamePort)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if wsAddr := strings.TrimSpace(*wsListen); wsAddr != "" {
		wsSrv := ws.NewServer(store, worldID, logger)
		mux := http.NewServeMux()
		mux.Handle("/v1/ws", wsSrv.Handler())
		httpSrv := &http.Server{Addr: wsAddr, Handler: mux}
		go func() {
			logger.Printf("ws endpoint listening on ws://%s/v1/ws", wsAddr)
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Printf("ws listen: %v", err)
			}
		}()
		go func() {
			<-ctx.Done()
			_ = httpSrv.Close()
		}()
	}

	if err := game.NewServer(store, worldID, logger).Serve(ctx, addr); err != nil {
		logger.Fatalf("serve: %v", err)
	}
}

func adminCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	configPath := fs.String("config", "./configs/server.yaml", "server config path (optional)")
	dataDir := fs.String("data", "", "runtime data directory (overrides config)")
	listen := fs.String("listen", "", "admin listen address (overrides config)")
	token := fs.String("token", "", "bearer token (default: load or create <data>/admin-token)")
	noAuth := fs.Bool("no_auth", false, "disable auth entirely (not recommended)")
	rpcURL := fs.String("rpc_url", "", "registry RPC url (or OWP_RPC_URL)")
	programID := fs.String("program_id", "", "registry program id (or OWP_PROGRAM_ID)")
	_ = fs.Parse(args)

	logger := log.New(os.Stdout, "[admin] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *listen != "" {
		cfg.AdminListen = *listen
	}
	if *rpcURL != "" {
		cfg.RPCURL = *rpcURL
	}
	if *programID != "" {
		cfg.ProgramID = *programID
	}
	if cfg.RPCURL == "" {
		cfg.RPCURL = strings.TrimSpace(os.Getenv("OWP_RPC_URL"))
	}
	if cfg.ProgramID == "" {
		cfg.ProgramID = strings.TrimSpace(os.Getenv("OWP_PROGRAM_ID"))
	}

	store, err := storage.New(cfg.DataDir)
	if err != nil {
		logger.Fatalf("open store: %v", err)
	}

	authToken := strings.TrimSpace(*token)
	if *noAuth {
		authToken = ""
		logger.Printf("auth disabled")
	} else if authToken == "" {
		authToken, err = store.LoadOrCreateAdminToken()
		if err != nil {
			logger.Fatalf("load admin token: %v", err)
		}
		logger.Printf("admin token at %s", store.AdminTokenPath())
	}

	d := admin.Discovery{}
	if cfg.RPCURL != "" && cfg.ProgramID != "" {
		pid, err := registry.ParsePubkey(cfg.ProgramID)
		if err != nil {
			logger.Fatalf("invalid program id: %v", err)
		}
		cache, err := discovery.OpenCache(filepath.Join(cfg.DataDir, "registry", "directory.db"))
		if err != nil {
			logger.Fatalf("open directory cache: %v", err)
		}
		defer cache.Close()
		d = admin.Discovery{
			Scanner:   discovery.NewRPCClient(cfg.RPCURL),
			Cache:     cache,
			ProgramID: pid,
		}
		logger.Printf("registry discovery enabled (program=%s)", pid)
	}

	if cfg.MCPListen != "" {
		mcpSrv, err := mcp.NewServer(mcp.Config{
			Store:      store,
			Cache:      d.Cache,
			HMACSecret: cfg.MCPHMACSecret,
		})
		if err != nil {
			logger.Fatalf("mcp server: %v", err)
		}
		go func() {
			logger.Printf("mcp endpoint listening on http://%s/mcp", cfg.MCPListen)
			if err := http.ListenAndServe(cfg.MCPListen, mcpSrv.Handler()); err != nil {
				logger.Fatalf("mcp listen: %v", err)
			}
		}()
	}

	srv := admin.NewServer(store, authToken, d, logger)
	logger.Printf("admin API listening on http://%s", cfg.AdminListen)
	if err := http.ListenAndServe(cfg.AdminListen, srv.Handler()); err != nil {
		logger.Fatalf("listen: %v", err)
	}
}

func openStore(configPath, dataDir string) *storage.Store {
	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	store, err := storage.New(cfg.DataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open store:", err)
		os.Exit(1)
	}
	return store
}
