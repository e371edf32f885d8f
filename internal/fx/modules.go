package fx

import (
	"mmr-engine/internal/config"
	"mmr-engine/internal/database"
	"mmr-engine/internal/logger"
	"mmr-engine/internal/repository"
	"mmr-engine/internal/server"
	"mmr-engine/internal/service"

	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	// repos
	fx.Provide(repository.NewSourceRepository),
	fx.Provide(repository.NewSnapshotRepository),
	// svc
	fx.Provide(service.NewLoader),
	// server
	fx.Provide(server.NewRatingServer),
)
