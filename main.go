package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/lakshendra02/SwipeInvoiceApp/cmd"
	"github.com/lakshendra02/SwipeInvoiceApp/internal/config"
	"github.com/lakshendra02/SwipeInvoiceApp/internal/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		// Commands report the configuration error themselves
		if err := logger.Setup(logger.DefaultConfig()); err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
	} else {
		if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
	}

	log := logger.WithComponent("main")
	log.Debug().Msg("Starting swipe-invoice")

	cmd.Execute()

	os.Exit(0)
}
