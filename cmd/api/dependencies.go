// Package api wires the application together: database, repositories,
// services, handlers and the router.
package api

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/obrastack/conciliador/internal/domain/recon/engine"
	reconhandler "github.com/obrastack/conciliador/internal/domain/recon/handler"
	reconrepo "github.com/obrastack/conciliador/internal/domain/recon/repository"
	reconservice "github.com/obrastack/conciliador/internal/domain/recon/service"
	sthandler "github.com/obrastack/conciliador/internal/domain/statement/handler"
	strepo "github.com/obrastack/conciliador/internal/domain/statement/repository"
	stservice "github.com/obrastack/conciliador/internal/domain/statement/service"
	"github.com/obrastack/conciliador/pkg/config"
	"github.com/obrastack/conciliador/pkg/db"
)

// Dependencies holds every wired component of the application.
type Dependencies struct {
	Config *config.Config
	Logger *slog.Logger
	DB     *db.DB

	StatementRepo strepo.StatementRepository
	ReconRepo     reconrepo.ReconRepository

	ImportService *stservice.ImportService
	ReconService  *reconservice.ReconService

	StatementHandler *sthandler.StatementHandler
	ReconHandler     *reconhandler.ReconHandler
}

// InitDependencies connects to the database, runs migrations and builds the
// full dependency graph.
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{Config: cfg, Logger: logger}

	database, err := db.New(ctx, db.Config{
		DSN:             cfg.Database.DSN(),
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	deps.DB = database

	if err := database.RunMigrations(); err != nil {
		database.Close()
		return nil, err
	}

	deps.StatementRepo = strepo.NewPostgresStatementRepository(database.Pool)
	deps.ReconRepo = reconrepo.NewPostgresReconRepository(database.Pool)

	deps.ReconService = reconservice.NewReconService(deps.ReconRepo, engine.New(deps.ReconRepo), logger)
	deps.ImportService = stservice.NewImportService(deps.StatementRepo, nil, deps.ReconService, logger)

	deps.StatementHandler = sthandler.NewStatementHandler(deps.ImportService, logger)
	deps.ReconHandler = reconhandler.NewReconHandler(deps.ReconService, logger)

	return deps, nil
}

// Cleanup releases held resources.
func (d *Dependencies) Cleanup() {
	if d.DB != nil {
		d.DB.Close()
	}
}
