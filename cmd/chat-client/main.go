package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Ap1297/Random-Chat-Application/internal/client"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	var (
		serverURL = flag.String("url", getenv("CHAT_URL", "ws://127.0.0.1:8080/chat"), "chat server url (ws, wss, http or https)")
		name      = flag.String("name", getenv("CHAT_NAME", ""), "display name shown to partners")
		colours   = flag.Bool("colours", true, "colourize output")
		status    = flag.Bool("status", false, "print server status and exit")
		verbose   = flag.Bool("v", false, "log connection details to stderr")
	)
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *status {
		statusURL, err := client.StatusURL(*serverURL)
		if err != nil {
			slog.Error("bad url", "err", err)
			os.Exit(1)
		}
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		st, err := client.FetchStatus(ctx, nil, statusURL)
		if err != nil {
			slog.Error("fetch status failed", "url", statusURL, "err", err)
			os.Exit(1)
		}
		client.RenderStatus(os.Stdout, st)
		return
	}

	url, err := client.NormalizeWSURL(*serverURL)
	if err != nil {
		slog.Error("bad url", "err", err)
		os.Exit(1)
	}
	c := &client.Client{
		URL:     url,
		Name:    *name,
		In:      os.Stdin,
		Out:     os.Stdout,
		Colours: *colours,
	}
	if err := c.Run(ctx); err != nil {
		slog.Error("chat client stopped", "err", err)
		os.Exit(1)
	}
}

func getenv(k, fallback string) string {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	return v
}
