package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"mcpd/internal/app"
	"mcpd/internal/shared/config"
	"mcpd/internal/shared/logger"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "optional path to the mcpd .ini file")
	addr := flag.String("addr", "", "listen address (overrides the config)")
	mongoURI := flag.String("mongo-uri", "", "MongoDB connection string (overrides the config)")
	dbName := flag.String("db-name", "", "database name (overrides the config)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	cfg := config.Default()
	if err := config.LoadIni(cfg, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Failed to load config file '%s': %v\n", *configPath, err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.ServerConf.Addr = *addr
	}
	if *mongoURI != "" {
		cfg.DatabaseConf.URI = *mongoURI
	}
	if *dbName != "" {
		cfg.DatabaseConf.Name = *dbName
	}
	if *debug {
		cfg.LogConf.Level = "debug"
	}

	if err := logger.Init(cfg.LogConf); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	// Runtime settings live next to the .ini file when one is used.
	settingsPath := "settings.json"
	if *configPath != "" {
		settingsPath = filepath.Join(filepath.Dir(*configPath), "settings.json")
	}

	logger.Info().
		Str("addr", cfg.ServerConf.Addr).
		Str("db_driver", cfg.DatabaseConf.Driver).
		Msg("Starting MCP server")

	appServer, err := app.New(cfg, settingsPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize server")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- appServer.Run()
	}()

	printBanner(cfg.ServerConf.Addr, cfg.ServerConf.MCPPath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	appServer.Stop(ctx)
	logger.Info().Msg("Server stopped")
}

func printBanner(addr, mcpPath string) {
	fmt.Println()
	fmt.Println("✓ MCP Server is ready!")
	fmt.Printf("  WebSocket endpoint: ws://%s%s\n", addr, mcpPath)
	fmt.Printf("  Health check:       http://%s/health\n", addr)
	fmt.Printf("  Status API:         http://%s/api/status\n", addr)
	fmt.Println()
	fmt.Println("Available tools:")
	fmt.Println("  - add, subtract, multiply, divide, power")
	fmt.Println("  - web_search, search_health_check")
	fmt.Println("  - db_create_document, db_get_document, db_update_document, db_delete_document")
	fmt.Println("  - db_query_documents, db_count_documents, db_search_documents, db_health_check")
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop the server")
}
