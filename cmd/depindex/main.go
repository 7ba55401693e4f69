package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"depindex/internal/gateway/app"
	"depindex/internal/gateway/config"
)

const usage = `usage: depindex [serve|publish|reindex] [flags]

  serve     run the HTTP index server (default)
  publish   write names.list and versions.list to the artifact mirror
  reindex   recompute every persisted dependency-list fingerprint
`

func main() {
	cmd, args := "serve", os.Args[1:]
	if len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	cfg, err := config.Load(args)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	switch cmd {
	case "serve":
		serve(cfg)
	case "publish":
		runOnce(cfg, func(ctx context.Context, a *app.App) error {
			reports, err := a.Publish(ctx)
			for _, r := range reports {
				state := "written"
				if r.Skipped {
					state = "unchanged"
				}
				fmt.Printf("%s\t%s\t%s\n", r.Path, r.Fingerprint, state)
			}
			return err
		})
	case "reindex":
		runOnce(cfg, func(ctx context.Context, a *app.App) error {
			n, err := a.Reindex(ctx)
			log.Printf("reindexed %d packages", n)
			return err
		})
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func serve(cfg *config.Config) {
	a, err := app.New(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize app: %v", err)
	}

	go func() {
		if err := a.Start(); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting")
}

func runOnce(cfg *config.Config, fn func(context.Context, *app.App) error) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize app: %v", err)
	}
	defer a.Close()

	if err := fn(ctx, a); err != nil {
		log.Printf("Command failed: %v", err)
		stop()
		_ = a.Close()
		os.Exit(1)
	}
}
