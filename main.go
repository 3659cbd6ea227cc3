package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"churnform/app"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Serve(ctx, *configPath); err != nil {
		log.Fatalf("churnform: %v", err)
	}
}
