package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"phasegrid/adapters/api"
	"phasegrid/adapters/postgres"
	"phasegrid/internal/config"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if cfg.Database.URL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required for the API server")
		os.Exit(1)
	}

	db, err := postgres.Connect(cfg.Database.URL)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer db.Close()

	server := api.NewServer(postgres.NewResultRepository(db))
	if err := server.ListenAndServe(cfg.Server.Port); err != nil {
		log.Fatal("server failed:", err)
	}
}
