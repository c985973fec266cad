package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"skinarb/cache"
	"skinarb/config"
	"skinarb/logger"
	"skinarb/reader/buff"
	"skinarb/reader/csmarket"
	"skinarb/scanner"
	"skinarb/server"
)

func main() {
	// The scan envelope is consumed by a frontend that expects bare JSON
	// numbers for all money fields.
	decimal.MarshalJSONWithoutQuotes = true

	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
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
		"service": cfg.SkinArb.Name,
		"version": cfg.SkinArb.Version,
		"fx":      cfg.Scanner.Fx.String(),
	}).Info("starting skinarb")

	if cfg.Metrics.CloudWatch.Enabled {
		logger.InitCloudWatch(cfg.Metrics.CloudWatch.Region, cfg.Metrics.CloudWatch.Namespace)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listingCache := cache.NewListingCache(cfg.Cache.ListingTTL(), nil)
	priceCache := cache.NewPriceTableCache(cfg.Cache.PriceTableTTL(), nil)

	buffClient := buff.NewClient(cfg.Source.Buff)
	csmarketClient := csmarket.NewClient(cfg.Source.Csmarket)

	scan := scanner.New(cfg, buffClient, csmarketClient, listingCache, priceCache)
	srv := server.New(cfg.Server, scan)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")
		cancel()
	}()

	if err := srv.Run(ctx); err != nil {
		log.WithError(err).Error("http server failed")
		os.Exit(1)
	}

	log.Info("skinarb stopped")
}
