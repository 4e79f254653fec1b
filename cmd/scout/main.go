package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/rustyeddy/scout/cmd/scout/cmd"
)

func main() {
	// Broker credentials and overrides may live in a local .env.
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
