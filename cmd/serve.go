package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"chefmate/internal/chat"
	"chefmate/internal/config"
	"chefmate/internal/provider"
	providerfactory "chefmate/internal/provider/factory"
	"chefmate/internal/recipes"
	"chefmate/internal/router"
	"chefmate/internal/server"
	"chefmate/internal/tools"
)

const serveUsage = `Usage:
  chefmate serve [--config <path>] [--port <port>] [--log-level <level>]

Flags:
  --config    string   Path to YAML configuration file (defaults and environment only when empty)
  --port      int      Override server port from configuration
  --log-level string   One of debug, info, warn, error (default info)

Environment:
  SPOONACULAR_API_KEY  Recipe catalog credential (required)
  GOOGLE_API_KEY       Gemini credential
  GROQ_API_KEY         Groq credential
  PORT                 Server port`

func serve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, serveUsage)
	}

	var cfgPath, logLevel string
	var overridePort int
	fs.StringVar(&cfgPath, "config", "", "path to configuration file")
	fs.IntVar(&overridePort, "port", 0, "override server port")
	fs.StringVar(&logLevel, "log-level", "info", "log level")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("parse serve flags: %w", err)
	}

	if err := setupLogging(logLevel); err != nil {
		return err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	if overridePort != 0 {
		if overridePort <= 0 || overridePort > 65535 {
			return fmt.Errorf("port override %d must be a valid TCP port", overridePort)
		}
		cfg.Server.Port = overridePort
	}

	rt, err := buildRouter(cfg)
	if err != nil {
		return err
	}

	catalog, err := recipes.New(recipes.Options{
		APIKey:  cfg.Recipes.APIKey,
		BaseURL: cfg.Recipes.BaseURL,
	}, providerfactory.NewHTTPClient(cfg.Recipes.Timeout))
	if err != nil {
		return err
	}

	toolRegistry, err := tools.NewRecipeRegistry(catalog, tools.Options{
		ResultLimit:       cfg.Recipes.ResultLimit,
		EnforceProvenance: cfg.Chat.EnforceProvenance,
	})
	if err != nil {
		return err
	}

	orchestrator := chat.New(rt, toolRegistry, chat.Options{
		MaxSteps: cfg.Chat.MaxSteps,
		Timeout:  cfg.Server.RequestTimeout,
	})

	srv, err := server.New(cfg, rt, orchestrator)
	if err != nil {
		return err
	}

	return srv.Run(ctx)
}

func buildRouter(cfg config.Config) (*router.Router, error) {
	registry := provider.NewRegistry()
	if err := providerfactory.RegisterConfiguredProviders(cfg, registry); err != nil {
		return nil, err
	}
	return router.New(registry), nil
}

func setupLogging(level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
	return nil
}
