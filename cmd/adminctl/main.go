// Package main is an operator shell for the account backend, reading the same
// configuration as the bot.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/atinyakov/silicabot/internal/backend"
	"github.com/atinyakov/silicabot/internal/config"
	"github.com/atinyakov/silicabot/internal/console"
	"github.com/atinyakov/silicabot/internal/logger"
)

var (
	version   string
	buildDate string
)

// main parses flags, loads configuration and starts the shell.
func main() {
	var (
		configPath string
		baseURL    string
		showVer    bool
	)

	flag.StringVar(&configPath, "config", "config.json", "path to config file")
	flag.StringVar(&baseURL, "url", "", "backend base URL (overrides config)")
	flag.BoolVar(&showVer, "version", false, "show build version and date")
	flag.Parse()

	if showVer {
		fmt.Printf("Silicabot adminctl\nVersion: %s\nBuild Date: %s\n", version, buildDate)
		return
	}

	opts, err := config.Read(configPath)
	if err != nil {
		log.Fatal(err)
	}
	if baseURL != "" {
		opts.BackendURL = baseURL
	}

	l := logger.New()
	if err := l.Init(opts.LogLevel); err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Log.Sync() }()

	if opts.AdminKey == "" {
		l.Log.Warn("ADMIN_KEY is not set, admin commands will be rejected by the backend")
	}
	l.Log.Info("connecting to backend", zap.String("backend_url", opts.BackendURL))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := backend.New(opts.BackendURL, opts.AdminKey, nil, opts.BackendTimeout.Duration)
	console.New(client, os.Stdin, os.Stdout, l.Log).Run(ctx)
}
