package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rickgao/twstock-daily/internal/config"
	"github.com/rickgao/twstock-daily/internal/logging"
	"github.com/rickgao/twstock-daily/internal/runner"
	"github.com/rickgao/twstock-daily/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults apply when empty)")
	modeFlag := flag.String("mode", string(runner.ModeDirect), "outbound mode: direct or proxy")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	mode, err := runner.ParseMode(*modeFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, closer := logging.New(cfg.Log)
	defer closer.Close()

	logger.Info("starting twstock",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
		"mode", string(mode),
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	summary, err := runner.Run(ctx, cfg, mode, logger)
	if err != nil {
		logger.Error("run aborted", "error", err)
		closer.Close()
		os.Exit(1)
	}

	fmt.Printf("attempted=%d succeeded=%d failed=%d skipped=%d\n",
		summary.Attempted, summary.Succeeded, summary.Failed, summary.Skipped)
}
