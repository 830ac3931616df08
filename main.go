package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/wurong98/feature-hft-exchange/backend"
	"github.com/wurong98/feature-hft-exchange/config"
	"github.com/wurong98/feature-hft-exchange/logger"
	"github.com/wurong98/feature-hft-exchange/recorder"
	"github.com/wurong98/feature-hft-exchange/render"
	"github.com/wurong98/feature-hft-exchange/session"
	"github.com/wurong98/feature-hft-exchange/ticker"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	strategyKey := flag.String("strategy", "", "API key of a strategy to select at startup")

	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Tradedeck.Name,
		"version": cfg.Tradedeck.Version,
	}).Info("starting tradedeck")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.CloudWatch.Enabled {
		logger.InitCloudWatch(
			cfg.Metrics.CloudWatch.Region,
			cfg.Metrics.CloudWatch.Namespace,
			cfg.Metrics.CloudWatch.DashboardName,
		)
	}

	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	client := backend.NewClient(cfg)
	ticks := ticker.NewStore(cfg.Ticker.Capacity)
	sess := session.New(cfg, client, ticks)

	if err := sess.Start(ctx); err != nil {
		log.WithError(err).Error("failed to start session")
		os.Exit(1)
	}

	if *strategyKey != "" {
		sess.Select(*strategyKey)
	}

	var rec *recorder.Recorder
	if cfg.Recorder.Enabled {
		rec, err = recorder.New(cfg, sess)
		if err != nil {
			log.WithError(err).Error("failed to create recorder")
			os.Exit(1)
		}
		if err := rec.Start(ctx); err != nil {
			log.WithError(err).Error("failed to start recorder")
			os.Exit(1)
		}
	} else {
		log.WithComponent("main").Info("recorder disabled; skipping archival")
	}

	render.New(sess, cfg.Poll.LeaderboardInterval).Start(ctx)

	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	log.Info("starting graceful shutdown")
	cancel()

	if rec != nil {
		log.Info("stopping recorder")
		rec.Stop()
	}

	log.Info("stopping session")
	sess.Stop()

	log.Info("shutdown completed")
}
