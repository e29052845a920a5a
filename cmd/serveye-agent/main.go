package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HariBote1110/serveye/internal/agent"
	"github.com/HariBote1110/serveye/internal/monitor"
)

var AppVersion string

func main() {
	InitConfig()

	slog.Info("Serveye Agent", "version", AppVersion)

	if config.Server.URL == "" || config.Server.Token == "" {
		slog.Error("server.url and server.token are required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mon := monitor.New(
		time.Duration(config.Monitor.SampleIntervalSeconds)*time.Second,
		config.Monitor.HistorySize,
	)
	go mon.Run(ctx)

	client := agent.NewClient(agent.Config{
		ServerURL:             config.Server.URL,
		Token:                 config.Server.Token,
		HeartbeatInterval:     time.Duration(config.Server.HeartbeatIntervalSeconds) * time.Second,
		InitialReconnectDelay: time.Duration(config.Server.InitialReconnectDelaySeconds) * time.Second,
		MaxReconnectDelay:     time.Duration(config.Server.MaxReconnectDelaySeconds) * time.Second,
	}, mon)
	client.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig)
		client.Stop()
	case <-client.Done():
		if err := client.Err(); err != nil {
			slog.Error("Client stopped", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("Shutdown complete")
}
