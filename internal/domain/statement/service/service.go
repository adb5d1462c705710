// Package service orchestrates statement imports: decode, parse, dedupe and
// record, in that order, with nothing written until every validation passed.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/obrastack/conciliador/internal/domain/common"
	"github.com/obrastack/conciliador/internal/domain/statement/parser"
	"github.com/obrastack/conciliador/internal/domain/statement/repository"
	"github.com/obrastack/conciliador/pkg/observability"
)

// Categories assigned to imported rows; a reviewer refines them later.
const (
	categoryImportedIncome  = "Receita Importada"
	categoryImportedExpense = "Despesa Importada"
)

const autoReconcileTimeout = time.Minute

// ByteSource supplies the raw statement bytes. Handlers wrap the uploaded
// file; tests supply fixed content.
type ByteSource interface {
	Bytes(ctx context.Context) ([]byte, error)
}

// BytesSource is a fixed-content ByteSource.
type BytesSource []byte

// Bytes returns the fixed content.
func (b BytesSource) Bytes(context.Context) ([]byte, error) { return b, nil }

// Reconciler runs the automatic matching pass over a batch. Wired to the
// reconciliation service; optional.
type Reconciler interface {
	AutoReconcileBatch(ctx context.Context, tenantID, batchID uuid.UUID) (int, error)
}

// ImportInput identifies one statement upload.
type ImportInput struct {
	TenantID      uuid.UUID
	UserID        uuid.UUID
	BankAccountID uuid.UUID
	FileName      string
	Source        ByteSource
	// AutoReconcile triggers a fire-and-forget automatic matching pass once
	// the batch is persisted.
	AutoReconcile bool
}

// ImportResult summarizes one completed import.
type ImportResult struct {
	BatchID        uuid.UUID
	TotalRecords   int
	ImportedCount  int
	DuplicateCount int
	PeriodStart    *time.Time
	PeriodEnd      *time.Time
}

// ImportService runs the statement import pipeline.
type ImportService struct {
	repo       repository.StatementRepository
	parsers    parser.Registry
	reconciler Reconciler
	logger     *slog.Logger
}

// NewImportService creates the import service. A nil registry gets the
// default format set; reconciler may be nil when automatic matching is not
// wanted after imports.
func NewImportService(repo repository.StatementRepository, parsers parser.Registry, reconciler Reconciler, logger *slog.Logger) *ImportService {
	if parsers == nil {
		parsers = parser.DefaultRegistry()
	}
	return &ImportService{
		repo:       repo,
		parsers:    parsers,
		reconciler: reconciler,
		logger:     logger,
	}
}

// Import validates, parses and atomically records one statement upload.
// Every inserted transaction starts PENDING.
func (s *ImportService) Import(ctx context.Context, in ImportInput) (*ImportResult, error) {
	p, ok := s.parsers.Lookup(in.FileName)
	if !ok {
		observability.ImportsTotal.WithLabelValues("unknown", "rejected").Inc()
		return nil, fmt.Errorf("%w: %s", common.ErrUnsupportedFileType, in.FileName)
	}
	fileType := fileTypeOf(in.FileName)

	exists, err := s.repo.BankAccountExists(ctx, in.TenantID, in.BankAccountID)
	if err != nil {
		return nil, err
	}
	if !exists {
		observability.ImportsTotal.WithLabelValues(fileType, "rejected").Inc()
		return nil, common.ErrBankAccountNotFound
	}

	data, err := in.Source.Bytes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read statement: %w", err)
	}

	parsed, err := p.Parse(data)
	if err != nil {
		observability.ImportsTotal.WithLabelValues(fileType, "rejected").Inc()
		return nil, err
	}
	if len(parsed) == 0 {
		observability.ImportsTotal.WithLabelValues(fileType, "empty").Inc()
		return nil, common.ErrEmptyStatement
	}

	duplicates, err := s.findDuplicates(ctx, in.BankAccountID, parsed)
	if err != nil {
		return nil, err
	}

	batch, txs := buildBatch(in, fileType, parsed, duplicates)
	if err := s.repo.CreateBatch(ctx, batch, txs); err != nil {
		observability.ImportsTotal.WithLabelValues(fileType, "failed").Inc()
		return nil, err
	}

	observability.ImportsTotal.WithLabelValues(fileType, "ok").Inc()
	observability.TransactionsImported.Add(float64(batch.ImportedCount))
	observability.TransactionsDuplicate.Add(float64(batch.DuplicateCount))

	s.logger.Info("statement imported",
		"batch_id", batch.ID,
		"file", in.FileName,
		"total", batch.TotalRecords,
		"imported", batch.ImportedCount,
		"duplicates", batch.DuplicateCount,
	)

	if in.AutoReconcile && s.reconciler != nil {
		go s.reconcileInBackground(in.TenantID, batch.ID)
	}

	return &ImportResult{
		BatchID:        batch.ID,
		TotalRecords:   batch.TotalRecords,
		ImportedCount:  batch.ImportedCount,
		DuplicateCount: batch.DuplicateCount,
		PeriodStart:    batch.PeriodStart,
		PeriodEnd:      batch.PeriodEnd,
	}, nil
}

// reconcileInBackground runs the post-import automatic pass detached from
// the request. Losing a race against a concurrent manual match is fine; the
// store-level guard skips those rows.
func (s *ImportService) reconcileInBackground(tenantID, batchID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), autoReconcileTimeout)
	defer cancel()

	matched, err := s.reconciler.AutoReconcileBatch(ctx, tenantID, batchID)
	if err != nil {
		s.logger.Warn("post-import auto reconciliation failed", "batch_id", batchID, "error", err)
		return
	}
	s.logger.Info("post-import auto reconciliation finished", "batch_id", batchID, "matched", matched)
}

// findDuplicates resolves which parsed entries are already stored for the
// account. Only provider-issued ids participate; spreadsheet rows have no
// reliable natural key and are never deduplicated.
func (s *ImportService) findDuplicates(ctx context.Context, accountID uuid.UUID, parsed []parser.ParsedTransaction) (map[string]struct{}, error) {
	var ids []string
	for _, t := range parsed {
		if t.ExternalID != "" {
			ids = append(ids, t.ExternalID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return s.repo.ExistingExternalIDs(ctx, accountID, ids)
}

func buildBatch(in ImportInput, fileType string, parsed []parser.ParsedTransaction, duplicates map[string]struct{}) (*repository.ImportBatch, []*repository.FinancialTransaction) {
	var periodStart, periodEnd *time.Time
	for i := range parsed {
		d := parsed[i].Date
		if periodStart == nil || d.Before(*periodStart) {
			periodStart = &parsed[i].Date
		}
		if periodEnd == nil || d.After(*periodEnd) {
			periodEnd = &parsed[i].Date
		}
	}

	accountID := in.BankAccountID
	var txs []*repository.FinancialTransaction
	for _, pt := range parsed {
		if pt.ExternalID != "" {
			if _, dup := duplicates[pt.ExternalID]; dup {
				continue
			}
		}

		category := categoryImportedIncome
		if pt.Type == parser.TypeExpense {
			category = categoryImportedExpense
		}

		var externalID *string
		if pt.ExternalID != "" {
			id := pt.ExternalID
			externalID = &id
		}

		txs = append(txs, &repository.FinancialTransaction{
			TenantID:             in.TenantID,
			BankAccountID:        &accountID,
			Type:                 string(pt.Type),
			Category:             category,
			Amount:               pt.Amount.Abs(),
			Date:                 pt.Date,
			Description:          pt.Description,
			RawDescription:       pt.Description,
			ExternalID:           externalID,
			ReconciliationStatus: repository.StatusPending,
		})
	}

	batch := &repository.ImportBatch{
		TenantID:       in.TenantID,
		BankAccountID:  in.BankAccountID,
		FileName:       in.FileName,
		FileType:       fileType,
		TotalRecords:   len(parsed),
		ImportedCount:  len(txs),
		DuplicateCount: len(parsed) - len(txs),
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
		CreatedBy:      in.UserID,
	}
	return batch, txs
}

// ListBatches returns the tenant's import history, newest first.
func (s *ImportService) ListBatches(ctx context.Context, tenantID uuid.UUID) ([]*repository.ImportBatch, error) {
	return s.repo.ListBatches(ctx, tenantID)
}

// ListBatchTransactions lists a batch's transactions under the given filter.
func (s *ImportService) ListBatchTransactions(ctx context.Context, tenantID, batchID uuid.UUID, filter repository.ListFilter) ([]*repository.FinancialTransaction, error) {
	if filter == "" {
		filter = repository.FilterAll
	}
	if !repository.ValidFilter(filter) {
		return nil, fmt.Errorf("%w: invalid filter %q", common.ErrBadRequest, filter)
	}
	if _, err := s.repo.GetBatch(ctx, tenantID, batchID); err != nil {
		return nil, err
	}
	return s.repo.ListBatchTransactions(ctx, tenantID, batchID, filter)
}

// DeleteBatch removes a batch and, through the schema, every transaction it
// produced.
func (s *ImportService) DeleteBatch(ctx context.Context, tenantID, batchID uuid.UUID) error {
	deleted, err := s.repo.DeleteBatch(ctx, tenantID, batchID)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("import batch %s: %w", batchID, common.ErrNotFound)
	}
	s.logger.Info("import batch deleted", "batch_id", batchID)
	return nil
}

func fileTypeOf(fileName string) string {
	idx := strings.LastIndex(fileName, ".")
	if idx < 0 {
		return "unknown"
	}
	return strings.ToLower(fileName[idx+1:])
}
