package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"runtime"

	"leaffliction/internal/config"
	"leaffliction/internal/logger"
	"leaffliction/internal/shutdown"
)

const usage = `Usage: leaffliction [global flags] <command> [flags] [args]

Commands:
  distribution <dir>                  count images per class
  augment [-dst dir] <file|dir>       augment one image or balance a dataset
  transform -src path -dst dir        write analysis images for leaves
  config init                         write the default configuration

Global flags:
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	global := flag.NewFlagSet("leaffliction", flag.ContinueOnError)
	configPath := global.String("config", "leaffliction.yaml", "Configuration file")
	logLevel := global.String("log-level", "", "Log level override (debug, info, warning, error)")
	workers := global.Int("workers", 0, "Worker count override (default: config, then all CPUs)")
	global.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		global.PrintDefaults()
	}

	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		global.Usage()
		return 2
	}

	command, rest := global.Arg(0), global.Args()[1:]

	if command == "config" {
		return runConfig(*configPath, rest)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "leaffliction: %v\n", err)
		return 1
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *workers > 0 {
		cfg.Processing.Workers = *workers
	}
	if cfg.Processing.Workers <= 0 {
		cfg.Processing.Workers = runtime.NumCPU()
	}

	log, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "leaffliction: %v\n", err)
		return 1
	}

	manager := shutdown.NewManager(context.Background(), log, 0)
	manager.Listen()
	defer func() {
		if err := manager.Shutdown(); err != nil {
			log.Error("Main", err, nil)
		}
	}()

	application, err := newApp(cfg, log, manager)
	if err != nil {
		log.Error("Main", err, nil)
		return 1
	}

	ctx := manager.Context()
	switch command {
	case "distribution":
		err = application.distribution(ctx, rest)
	case "augment":
		err = application.augment(ctx, rest)
	case "transform":
		err = application.transform(ctx, rest)
	default:
		fmt.Fprintf(os.Stderr, "leaffliction: unknown command %q\n\n", command)
		global.Usage()
		return 2
	}

	if err != nil {
		if errors.Is(err, flag.ErrHelp) || errors.Is(err, errUsage) {
			return 2
		}
		log.Error("Main", err, map[string]interface{}{"command": command})
		return 1
	}
	return 0
}

func newLogger(cfg *config.Config) (logger.Logger, error) {
	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	if cfg.Log.Format == "json" {
		return logger.NewZerolog(os.Stderr, level), nil
	}
	return logger.NewConsoleLogger(level), nil
}

func runConfig(path string, args []string) int {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	force := fs.Bool("force", false, "Overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 || fs.Arg(0) != "init" {
		fmt.Fprintln(os.Stderr, "Usage: leaffliction [-config path] config [-force] init")
		return 2
	}

	if _, err := os.Stat(path); err == nil && !*force {
		fmt.Fprintf(os.Stderr, "leaffliction: %s already exists (use -force to overwrite)\n", path)
		return 1
	}

	if err := config.SaveConfig(config.DefaultConfig(), path); err != nil {
		fmt.Fprintf(os.Stderr, "leaffliction: %v\n", err)
		return 1
	}

	fmt.Printf("Wrote default configuration to %s\n", path)
	return 0
}
