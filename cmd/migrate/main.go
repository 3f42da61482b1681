package main

import (
	"flag"
	"fmt"
	"os"

	"stockroom/internal/config"
	"stockroom/internal/database"
	"stockroom/internal/logger"

	"go.uber.org/zap"
)

const usage = `usage: migrate <command>

commands:
  up       apply all pending migrations
  down     roll back the most recent migration
  status   print the migration status`

func main() {
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load()
	log, err := logger.New(cfg.Server.Env, cfg.Server.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	db, err := database.New(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	switch cmd := flag.Arg(0); cmd {
	case "up":
		err = database.RunMigrations(db.DB(), log)
	case "down":
		err = database.RollbackMigration(db.DB(), log)
	case "status":
		err = database.GetMigrationStatus(db.DB())
	default:
		log.Error("Unknown command", zap.String("command", cmd))
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal("Migration command failed", zap.Error(err))
	}
}
