package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/kobopay/kobopay/internal/migrations"
)

func main() {
	_ = godotenv.Load()

	command := flag.String("command", "up", "goose command to run (up, down, status)")
	flag.Parse()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL must be set")
		os.Exit(1)
	}

	if err := migrations.Run(context.Background(), dsn, *command); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("migrations %s complete\n", *command)
}
