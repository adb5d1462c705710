// Package service exposes the reconciliation operations: suggestion listing,
// manual linking, unlink, ignore, entity search and the automatic batch pass.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/obrastack/conciliador/internal/domain/common"
	"github.com/obrastack/conciliador/internal/domain/recon/engine"
	"github.com/obrastack/conciliador/internal/domain/recon/repository"
	strepo "github.com/obrastack/conciliador/internal/domain/statement/repository"
	"github.com/obrastack/conciliador/pkg/observability"
)

const (
	searchMinRunes     = 2
	searchLimitPerType = 10
)

// ReconService coordinates the matching engine and the link writes.
type ReconService struct {
	repo   repository.ReconRepository
	engine *engine.Engine
	logger *slog.Logger
}

// NewReconService creates the reconciliation service.
func NewReconService(repo repository.ReconRepository, eng *engine.Engine, logger *slog.Logger) *ReconService {
	return &ReconService{repo: repo, engine: eng, logger: logger}
}

// Suggestions returns the ranked candidates for one transaction.
func (s *ReconService) Suggestions(ctx context.Context, tenantID, txID uuid.UUID) ([]engine.Suggestion, error) {
	tx, err := s.repo.GetTransaction(ctx, tenantID, txID)
	if err != nil {
		return nil, err
	}
	return s.engine.Suggestions(ctx, tx)
}

// Match links a transaction to the entity the user picked. Manual matches
// overwrite whatever state the row is in.
func (s *ReconService) Match(ctx context.Context, tenantID, txID uuid.UUID, entityType repository.EntityType, entityID uuid.UUID, entityName string) error {
	if !repository.ValidEntityType(entityType) {
		return fmt.Errorf("%w: invalid entity type %q", common.ErrBadRequest, entityType)
	}
	if entityName == "" {
		return fmt.Errorf("%w: entity name is required", common.ErrBadRequest)
	}

	updated, err := s.repo.MarkMatched(ctx, tenantID, txID, repository.MatchLink{
		Status:     strepo.StatusManualMatched,
		EntityType: entityType,
		EntityID:   entityID,
		EntityName: entityName,
	}, false)
	if err != nil {
		return err
	}
	if !updated {
		return fmt.Errorf("transaction %s: %w", txID, common.ErrNotFound)
	}

	observability.ManualMatchesTotal.Inc()
	s.logger.Info("transaction matched manually",
		"transaction_id", txID, "entity_type", entityType, "entity_id", entityID)
	return nil
}

// Unlink returns a transaction to PENDING and clears its link.
func (s *ReconService) Unlink(ctx context.Context, tenantID, txID uuid.UUID) error {
	return s.clear(ctx, tenantID, txID, strepo.StatusPending)
}

// Ignore marks a transaction as not worth reconciling, bank fees for
// example. The link fields are cleared; ignoring is not a match.
func (s *ReconService) Ignore(ctx context.Context, tenantID, txID uuid.UUID) error {
	return s.clear(ctx, tenantID, txID, strepo.StatusIgnored)
}

func (s *ReconService) clear(ctx context.Context, tenantID, txID uuid.UUID, status strepo.ReconciliationStatus) error {
	updated, err := s.repo.ClearMatch(ctx, tenantID, txID, status)
	if err != nil {
		return err
	}
	if !updated {
		return fmt.Errorf("transaction %s: %w", txID, common.ErrNotFound)
	}
	s.logger.Info("transaction status reset", "transaction_id", txID, "status", status)
	return nil
}

// AutoReconcileBatch runs the automatic pass over one batch's PENDING
// transactions and returns how many were linked.
func (s *ReconService) AutoReconcileBatch(ctx context.Context, tenantID, batchID uuid.UUID) (int, error) {
	return s.autoReconcile(ctx, tenantID, &batchID)
}

// RerunAutoReconcile runs the automatic pass over every PENDING imported
// transaction of the tenant.
func (s *ReconService) RerunAutoReconcile(ctx context.Context, tenantID uuid.UUID) (int, error) {
	return s.autoReconcile(ctx, tenantID, nil)
}

// autoReconcile loads the candidate entities once and walks the pending
// rows in order, committing the first acceptable candidate per row. The
// guarded write skips rows a user reconciled while the pass ran.
func (s *ReconService) autoReconcile(ctx context.Context, tenantID uuid.UUID, batchID *uuid.UUID) (int, error) {
	pending, err := s.repo.ListPending(ctx, tenantID, batchID)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	entities, err := s.repo.ActiveEntities(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	if entities == nil {
		entities = []repository.Entity{}
	}

	matched := 0
	for _, tx := range pending {
		suggestion, err := s.engine.AutoMatch(ctx, tx, entities)
		if err != nil {
			return matched, err
		}
		if suggestion == nil {
			continue
		}

		entityID, err := uuid.Parse(suggestion.EntityID)
		if err != nil {
			return matched, fmt.Errorf("failed to parse suggested entity id: %w", err)
		}

		updated, err := s.repo.MarkMatched(ctx, tenantID, tx.ID, repository.MatchLink{
			Status:     strepo.StatusAutoMatched,
			EntityType: suggestion.EntityType,
			EntityID:   entityID,
			EntityName: suggestion.EntityName,
		}, true)
		if err != nil {
			return matched, err
		}
		if updated {
			matched++
			observability.AutoMatchesTotal.WithLabelValues(strategyLabel(suggestion.Confidence)).Inc()
		}
	}

	s.logger.Info("automatic reconciliation finished",
		"tenant_id", tenantID, "pending", len(pending), "matched", matched)
	return matched, nil
}

func strategyLabel(confidence int) string {
	switch confidence {
	case engine.ConfidenceDocument:
		return "document"
	case engine.ConfidenceName:
		return "name"
	}
	return "other"
}

// SearchEntities finds linkable suppliers and contractors by name or
// document fragment. Terms under two characters return nothing.
func (s *ReconService) SearchEntities(ctx context.Context, tenantID uuid.UUID, term string) ([]repository.Entity, error) {
	term = strings.TrimSpace(term)
	if utf8.RuneCountInString(term) < searchMinRunes {
		return nil, nil
	}
	return s.repo.SearchEntities(ctx, tenantID, term, searchLimitPerType)
}
