package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/campuschat/chatlink/internal/api"
	"github.com/campuschat/chatlink/internal/infrastructure/config"
	"github.com/campuschat/chatlink/internal/infrastructure/logging"
	"github.com/campuschat/chatlink/internal/infrastructure/monitoring"
	"github.com/campuschat/chatlink/internal/session"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	backendURL := flag.String("backend", "", "Backend base URL (overrides config)")
	email := flag.String("email", "", "Login email")
	password := flag.String("password", "", "Login password")
	oneshot := flag.String("ask", "", "Ask one question over HTTP and exit")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if *backendURL != "" {
		cfg.Backend.BaseURL = *backendURL
	}

	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		logger = logging.NewDefault()
	}
	defer logger.Sync()

	metrics := monitoring.NewMetrics()
	if cfg.Metrics.Enabled && cfg.Metrics.Addr != "" {
		go func() {
			logger.Info("Metrics listener starting", zap.String("addr", cfg.Metrics.Addr))
			if err := http.ListenAndServe(cfg.Metrics.Addr, metrics.Handler()); err != nil {
				logger.Warn("Metrics listener stopped", zap.Error(err))
			}
		}()
	}

	apiClient := api.NewClient(cfg.Backend, logger, metrics)
	coordinator := session.NewCoordinator(cfg, apiClient, logger, metrics)
	defer coordinator.Cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nDisconnecting...")
		coordinator.Cleanup()
		cancel()
		os.Exit(0)
	}()

	user, err := apiClient.Login(ctx, *email, *password)
	if err != nil {
		logger.Fatal("Login failed", zap.Error(err))
	}
	logger.Info("Logged in", zap.String("user_id", user.UserID), zap.String("name", user.Name))

	if *oneshot != "" {
		// Synchronous path, no streaming connection needed.
		response, err := apiClient.Chat(ctx, *oneshot, user.UserID)
		if err != nil {
			logger.Fatal("Query failed", zap.Error(err))
		}
		fmt.Printf("assistant: %s\n", response)
		return
	}

	sessionID, err := coordinator.CreateSession(ctx, user.UserID)
	if err != nil {
		logger.Fatal("Could not establish a session", zap.Error(err))
	}
	fmt.Printf("Connected. Session %s. Type a question, or Ctrl-C to quit.\n", sessionID)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}

		response, err := coordinator.SendMessage(ctx, query, user.UserID)
		if err != nil {
			// Keep the conversation alive: surface failures as an assistant
			// turn instead of aborting.
			fmt.Printf("assistant: [something went wrong: %v]\n", err)
			continue
		}
		fmt.Printf("assistant: %s\n", response)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}
