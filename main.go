package main

import (
	"github.com/joho/godotenv"

	"github.com/redclouds/erp-assistant/cmd"
)

func main() {
	// Optional .env for local development; absence is fine.
	_ = godotenv.Load()

	cmd.Execute()
}
