package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/BartekS5/sparkify/internal/cli"
	"github.com/BartekS5/sparkify/pkg/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logger.Infof("No .env file found, using system environment variables")
	}

	rootCmd := cli.NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
