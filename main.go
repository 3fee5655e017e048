package main

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/wfunc/partyroom/config"
	"github.com/wfunc/partyroom/game"
	"github.com/wfunc/partyroom/logger"
	"github.com/wfunc/partyroom/monitor"
	"github.com/wfunc/partyroom/persistence"
	"github.com/wfunc/partyroom/room"
	"github.com/wfunc/partyroom/server"
)

func main() {
	// Initialize logger
	logger.Init()

	// Local overrides, ignored when no .env file exists
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize the document store
	db, err := openStore(cfg)
	if err != nil {
		logger.Log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Log.Infof("Document store ready (driver=%s)", cfg.Database.Driver)

	// nil picks the locked math/rand source; a bare *rand.Rand is not safe
	// under concurrent handlers.
	rooms := room.NewStore(db, nil, cfg.Room.MaxPlayers, cfg.Room.IDLength)
	games := game.NewService(db, game.DefaultRegistry(), nil, cfg.Room.MaxPlayers)

	mon := monitor.NewMonitor("partyroom")
	if cfg.Server.MetricsAddress != "" {
		mon.StartServer(cfg.Server.MetricsAddress)
	}

	srv := server.NewServer(cfg.Server.HTTPAddress, cfg.Server.RPCAddress, cfg.Server.BaseURL, db, rooms, games, mon)

	logger.Log.Infof("Starting party room server on %s", cfg.Server.HTTPAddress)
	if err := srv.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}

func openStore(cfg *config.Config) (persistence.DocStore, error) {
	switch cfg.Database.Driver {
	case "", "memory":
		return persistence.NewMemory(), nil
	case "postgres":
		return persistence.NewPostgres(
			cfg.Database.Postgres.Host,
			cfg.Database.Postgres.Port,
			cfg.Database.Postgres.User,
			cfg.Database.Postgres.Password,
			cfg.Database.Postgres.DBName,
		)
	case "gorm":
		return persistence.NewGormPostgres(
			cfg.Database.Postgres.Host,
			cfg.Database.Postgres.Port,
			cfg.Database.Postgres.User,
			cfg.Database.Postgres.Password,
			cfg.Database.Postgres.DBName,
		)
	case "mongo":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return persistence.NewMongo(ctx, cfg.Database.Mongo.URI, cfg.Database.Mongo.Database)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}
