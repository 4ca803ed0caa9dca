package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// Pick up SECRET_KEY and PORT from a local .env when present
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
