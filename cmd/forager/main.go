package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	logger := log.New(os.Stderr, "", log.LstdFlags)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := newApp()
	if err := app.Run(ctx, os.Args); err != nil {
		if errors.Is(err, errReported) {
			stop()
			os.Exit(1)
		}
		logger.Fatal(err)
	}
}
