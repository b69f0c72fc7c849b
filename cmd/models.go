package cmd

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"chefmate/internal/config"
)

const modelsUsage = `Usage:
  chefmate models [--config <path>]

Flags:
  --config string   Path to YAML configuration file`

func listModels(args []string) error {
	fs := flag.NewFlagSet("models", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, modelsUsage)
	}

	var cfgPath string
	fs.StringVar(&cfgPath, "config", "", "path to configuration file")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("parse models flags: %w", err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	rt, err := buildRouter(cfg)
	if err != nil {
		return err
	}

	fmt.Printf("default provider: %s\n", rt.DefaultProvider())
	for _, model := range rt.Models() {
		name := model.DisplayName
		if name == "" {
			name = model.ID
		}
		fmt.Printf("  %-28s %-8s %s\n", model.ID, model.Provider, name)
	}
	return nil
}
