// Package repository provides data access for statement imports.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReconciliationStatus is the reconciliation state of an imported transaction.
//
//	PENDING -> MANUAL_MATCHED | AUTO_MATCHED | IGNORED
//	MANUAL_MATCHED | AUTO_MATCHED | IGNORED -> PENDING (unlink)
type ReconciliationStatus string

const (
	StatusPending       ReconciliationStatus = "PENDING"
	StatusAutoMatched   ReconciliationStatus = "AUTO_MATCHED"
	StatusManualMatched ReconciliationStatus = "MANUAL_MATCHED"
	StatusIgnored       ReconciliationStatus = "IGNORED"
)

// ListFilter narrows transaction listings. MATCHED covers both manual and
// automatic matches.
type ListFilter string

const (
	FilterAll     ListFilter = "ALL"
	FilterPending ListFilter = "PENDING"
	FilterMatched ListFilter = "MATCHED"
	FilterIgnored ListFilter = "IGNORED"
)

// ValidFilter reports whether f is a recognized listing filter.
func ValidFilter(f ListFilter) bool {
	switch f {
	case FilterAll, FilterPending, FilterMatched, FilterIgnored:
		return true
	}
	return false
}

// ImportBatch records one statement upload. Immutable after creation;
// deleting it cascades to the transactions it produced.
type ImportBatch struct {
	ID             uuid.UUID  `db:"id"`
	TenantID       uuid.UUID  `db:"tenant_id"`
	BankAccountID  uuid.UUID  `db:"bank_account_id"`
	FileName       string     `db:"file_name"`
	FileType       string     `db:"file_type"`
	TotalRecords   int        `db:"total_records"`
	ImportedCount  int        `db:"imported_count"`
	DuplicateCount int        `db:"duplicate_count"`
	PeriodStart    *time.Time `db:"period_start"`
	PeriodEnd      *time.Time `db:"period_end"`
	CreatedBy      uuid.UUID  `db:"created_by"`
	CreatedAt      time.Time  `db:"created_at"`
}

// FinancialTransaction is the reconciliation unit. Amount holds the absolute
// value; the sign is implied by Type. RawDescription keeps the provider text
// untouched so matching still works after a user edits Description.
type FinancialTransaction struct {
	ID                   uuid.UUID            `db:"id"`
	TenantID             uuid.UUID            `db:"tenant_id"`
	BankAccountID        *uuid.UUID           `db:"bank_account_id"`
	ProjectID            *uuid.UUID           `db:"project_id"`
	Type                 string               `db:"type"` // INCOME | EXPENSE
	Category             string               `db:"category"`
	Amount               decimal.Decimal      `db:"amount"`
	Date                 time.Time            `db:"date"`
	Description          string               `db:"description"`
	RawDescription       string               `db:"raw_description"`
	ExternalID           *string              `db:"external_id"`
	ImportBatchID        *uuid.UUID           `db:"import_batch_id"`
	ReconciliationStatus ReconciliationStatus `db:"reconciliation_status"`
	LinkedEntityType     *string              `db:"linked_entity_type"`
	LinkedEntityID       *uuid.UUID           `db:"linked_entity_id"`
	LinkedEntityName     *string              `db:"linked_entity_name"`
	CreatedAt            time.Time            `db:"created_at"`
}

// StatementRepository defines data access for the import pipeline.
type StatementRepository interface {
	// BankAccountExists checks existence and tenant ownership in one query.
	BankAccountExists(ctx context.Context, tenantID, accountID uuid.UUID) (bool, error)

	// ExistingExternalIDs returns which of the candidate provider ids are
	// already stored for the account.
	ExistingExternalIDs(ctx context.Context, accountID uuid.UUID, externalIDs []string) (map[string]struct{}, error)

	// CreateBatch persists the batch row and its transactions atomically.
	CreateBatch(ctx context.Context, batch *ImportBatch, txs []*FinancialTransaction) error

	GetBatch(ctx context.Context, tenantID, batchID uuid.UUID) (*ImportBatch, error)
	ListBatches(ctx context.Context, tenantID uuid.UUID) ([]*ImportBatch, error)

	// DeleteBatch removes the batch; the schema cascades to its transactions.
	DeleteBatch(ctx context.Context, tenantID, batchID uuid.UUID) (bool, error)

	ListBatchTransactions(ctx context.Context, tenantID, batchID uuid.UUID, filter ListFilter) ([]*FinancialTransaction, error)
}
