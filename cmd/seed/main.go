// Command seed drops the warbler tables and reloads them from CSV files.
package main

import (
	"context"
	"flag"

	"warbler/internal/config"
	"warbler/internal/db"
	"warbler/internal/logging"
	"warbler/internal/seed"
)

func main() {
	dir := flag.String("dir", "generator", "directory holding users.csv, messages.csv and follows.csv")
	flag.Parse()

	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogstashAddr)

	gdb, err := db.Connect(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to the database")
	}

	sum, err := seed.Run(context.Background(), gdb, *dir, log)
	if err != nil {
		log.WithError(err).Fatal("Seeding failed")
	}
	log.WithField("users", sum.Users).WithField("messages", sum.Messages).WithField("follows", sum.Follows).Info("Database seeded")
}
