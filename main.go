package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/mykhaliev/voicebench/client"
	"github.com/mykhaliev/voicebench/engine"
	"github.com/mykhaliev/voicebench/logger"
	"github.com/mykhaliev/voicebench/model"
	"github.com/mykhaliev/voicebench/report"
	"github.com/mykhaliev/voicebench/version"
)

const (
	AppName = "voicebench"

	apiKeyEnv     = "CEKURA_API_KEY"
	webhookURLEnv = "SLACK_WEBHOOK_URL"
)

func main() {
	configPath := flag.String("f", "config/agents.yaml", "Path to the agents configuration file (YAML)")
	logPath := flag.String("l", "", "Path to the log file (if not set, logs to stdout)")
	verbose := flag.Bool("verbose", false, "Enable verbose logging")
	wait := flag.Bool("wait", false, "On fetch, poll each result until the remote run completes")
	showVersion := flag.Bool("v", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] trigger|fetch|discover\n\n", AppName)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("Version: %s\nCommit: %s\nBuildDate: %s\n",
			version.Version, version.Commit, version.BuildDate)
		return
	}

	mode := flag.Arg(0)
	if mode != "trigger" && mode != "fetch" && mode != "discover" {
		fmt.Fprintf(os.Stderr, "Error: mode must be one of trigger, fetch, discover\n\n")
		flag.Usage()
		os.Exit(1)
	}

	logWriter, logFile, err := logger.SetupLogWriter(*logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to setup logging: %v\n", err)
		os.Exit(1)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger.SetupLogger(logWriter, *verbose)

	// Optional; env vars may come from the environment directly.
	if err := godotenv.Load(); err == nil {
		logger.Logger.Debug("Loaded environment from .env")
	}

	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		logger.Logger.Error("Required environment variable not set", "name", apiKeyEnv)
		os.Exit(1)
	}

	cfg, err := model.ParseConfig(*configPath)
	if err != nil {
		logger.Logger.Error("Failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	logger.Logger.Info("Starting application",
		"app", AppName,
		"mode", mode,
		"config", *configPath,
		"agents", len(cfg.Agents),
		"verbose", *verbose)

	apiClient := client.New(apiKey, client.WithBaseURL(cfg.Settings.BaseURL))

	var sender *report.Sender
	if mode == "fetch" {
		webhookURL := os.Getenv(webhookURLEnv)
		if webhookURL == "" {
			logger.Logger.Error("Required environment variable not set", "name", webhookURLEnv)
			os.Exit(1)
		}
		sender = report.NewSender(webhookURL)
	}

	orch := engine.New(cfg, apiClient, sender)
	orch.WaitForCompletion = *wait

	ctx := context.Background()

	switch mode {
	case "trigger":
		outcomes, err := orch.Trigger(ctx)
		if err != nil {
			logger.Logger.Error("Trigger failed", "error", err)
			os.Exit(1)
		}
		for _, out := range outcomes {
			if out.Err == nil {
				fmt.Printf("Agent %d: Result ID %d\n", out.Agent.AgentID, out.ResultID)
			}
		}
	case "fetch":
		if err := orch.Fetch(ctx); err != nil {
			logger.Logger.Error("Fetch failed", "error", err)
			os.Exit(1)
		}
	case "discover":
		if err := orch.Discover(ctx); err != nil {
			logger.Logger.Error("Discovery failed", "error", err)
			os.Exit(1)
		}
	}
}
