package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"mcpd/internal/probe"
	"mcpd/internal/shared/config"
	"mcpd/internal/shared/logger"
)

func main() {
	configPath := flag.String("config", "", "optional path to the mcpd .ini file")
	urlFlag := flag.String("url", "", "MCP WebSocket endpoint (overrides the config)")
	timeoutFlag := flag.Int("timeout", -1, "per-response timeout in seconds, 0 waits forever (overrides the config)")
	flag.Parse()

	cfg := config.Default()
	if err := config.LoadIni(cfg, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.LogConf); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}

	url := cfg.ProbeConf.URL
	if *urlFlag != "" {
		url = *urlFlag
	}
	timeout := time.Duration(cfg.ProbeConf.TimeoutSeconds) * time.Second
	if *timeoutFlag >= 0 {
		timeout = time.Duration(*timeoutFlag) * time.Second
	}

	fmt.Println("🧪 MCP WebSocket Test Client")
	fmt.Println(strings.Repeat("=", 30))

	fmt.Println("🔌 Connecting to MCP server...")
	p := probe.New(probe.Config{
		URL:         url,
		ReadTimeout: timeout,
		OnConnect: func() {
			fmt.Println("✅ Connected to WebSocket!")
		},
		OnSend: func(s probe.Step) {
			fmt.Printf("\n📤 %s\n", s.Announce)
		},
		OnResponse: func(r probe.Round) {
			fmt.Printf("📥 Response: %s\n", r.Raw)
		},
	})

	rep := p.Run(context.Background())
	switch {
	case rep.Completed:
		fmt.Println("\n🎉 All tests completed successfully!")
	case rep.Failure != nil && rep.Failure.Kind == probe.KindConnectionRefused:
		fmt.Println("❌ Connection refused. Is the MCP server running?")
	case rep.Failure != nil:
		fmt.Printf("❌ Error: %v\n", rep.Failure.Err)
	}
	// Failures are reported on the console, never as a non-zero exit.
}
