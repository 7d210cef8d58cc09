package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/violin-academy/academy-back/internal/config"
	"github.com/violin-academy/academy-back/internal/db"
	"github.com/violin-academy/academy-back/internal/logger"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New(cfg.Env)

	store, err := db.Connect(context.Background(), cfg.DBUrl, log, db.Options{})
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	defer store.Close()

	sqlDB, err := store.SQL()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	cli := commandLine{profiles: store, sqlDB: sqlDB, out: os.Stdout}
	if err := cli.run(os.Args); err != nil {
		if !errors.Is(err, errHelp) {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		store.Close()
		os.Exit(1)
	}
}
