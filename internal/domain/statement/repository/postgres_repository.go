package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/obrastack/conciliador/internal/domain/common"
)

// PGXPool is the pgx surface the repository needs; satisfied by
// *pgxpool.Pool and by pgxmock in tests.
type PGXPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStatementRepository implements StatementRepository using PostgreSQL.
type PostgresStatementRepository struct {
	pool PGXPool
}

// NewPostgresStatementRepository creates a PostgreSQL-backed statement repository.
func NewPostgresStatementRepository(pool PGXPool) *PostgresStatementRepository {
	return &PostgresStatementRepository{pool: pool}
}

const bankAccountExistsQuery = `
	SELECT EXISTS (SELECT 1 FROM bank_accounts WHERE id = $1 AND tenant_id = $2)
`

func (r *PostgresStatementRepository) BankAccountExists(ctx context.Context, tenantID, accountID uuid.UUID) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, bankAccountExistsQuery, accountID, tenantID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check bank account: %w", err)
	}
	return exists, nil
}

const existingExternalIDsQuery = `
	SELECT external_id FROM financial_transactions
	WHERE bank_account_id = $1 AND external_id = ANY($2)
`

func (r *PostgresStatementRepository) ExistingExternalIDs(ctx context.Context, accountID uuid.UUID, externalIDs []string) (map[string]struct{}, error) {
	if len(externalIDs) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx, existingExternalIDsQuery, accountID, externalIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query existing external ids: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan external id: %w", err)
		}
		existing[id] = struct{}{}
	}
	return existing, rows.Err()
}

const insertBatchQuery = `
	INSERT INTO import_batches (
		id, tenant_id, bank_account_id, file_name, file_type,
		total_records, imported_count, duplicate_count,
		period_start, period_end, created_by
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`

var transactionColumns = []string{
	"id", "tenant_id", "bank_account_id", "project_id", "type", "category",
	"amount", "date", "description", "raw_description", "external_id",
	"import_batch_id", "reconciliation_status",
}

// CreateBatch writes the batch row and bulk-copies the transactions inside
// one database transaction; a failure anywhere leaves nothing behind.
func (r *PostgresStatementRepository) CreateBatch(ctx context.Context, batch *ImportBatch, txs []*FinancialTransaction) error {
	dbtx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin import transaction: %w", err)
	}
	defer func() { _ = dbtx.Rollback(ctx) }()

	if batch.ID == uuid.Nil {
		batch.ID = uuid.New()
	}

	_, err = dbtx.Exec(ctx, insertBatchQuery,
		batch.ID, batch.TenantID, batch.BankAccountID, batch.FileName, batch.FileType,
		batch.TotalRecords, batch.ImportedCount, batch.DuplicateCount,
		batch.PeriodStart, batch.PeriodEnd, batch.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to insert import batch: %w", err)
	}

	if len(txs) > 0 {
		_, err = dbtx.CopyFrom(ctx,
			pgx.Identifier{"financial_transactions"},
			transactionColumns,
			pgx.CopyFromSlice(len(txs), func(i int) ([]any, error) {
				t := txs[i]
				if t.ID == uuid.Nil {
					t.ID = uuid.New()
				}
				return []any{
					t.ID, t.TenantID, t.BankAccountID, t.ProjectID, t.Type, t.Category,
					t.Amount, t.Date, t.Description, t.RawDescription, t.ExternalID,
					batch.ID, string(t.ReconciliationStatus),
				}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("failed to bulk insert transactions: %w", err)
		}
	}

	if err := dbtx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit import: %w", err)
	}
	return nil
}

const getBatchQuery = `
	SELECT id, tenant_id, bank_account_id, file_name, file_type,
	       total_records, imported_count, duplicate_count,
	       period_start, period_end, created_by, created_at
	FROM import_batches
	WHERE id = $1 AND tenant_id = $2
`

func (r *PostgresStatementRepository) GetBatch(ctx context.Context, tenantID, batchID uuid.UUID) (*ImportBatch, error) {
	var b ImportBatch
	err := r.pool.QueryRow(ctx, getBatchQuery, batchID, tenantID).Scan(
		&b.ID, &b.TenantID, &b.BankAccountID, &b.FileName, &b.FileType,
		&b.TotalRecords, &b.ImportedCount, &b.DuplicateCount,
		&b.PeriodStart, &b.PeriodEnd, &b.CreatedBy, &b.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("import batch %s: %w", batchID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get import batch: %w", err)
	}
	return &b, nil
}

const listBatchesQuery = `
	SELECT id, tenant_id, bank_account_id, file_name, file_type,
	       total_records, imported_count, duplicate_count,
	       period_start, period_end, created_by, created_at
	FROM import_batches
	WHERE tenant_id = $1
	ORDER BY created_at DESC
`

func (r *PostgresStatementRepository) ListBatches(ctx context.Context, tenantID uuid.UUID) ([]*ImportBatch, error) {
	rows, err := r.pool.Query(ctx, listBatchesQuery, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list import batches: %w", err)
	}
	defer rows.Close()

	var batches []*ImportBatch
	for rows.Next() {
		var b ImportBatch
		err := rows.Scan(
			&b.ID, &b.TenantID, &b.BankAccountID, &b.FileName, &b.FileType,
			&b.TotalRecords, &b.ImportedCount, &b.DuplicateCount,
			&b.PeriodStart, &b.PeriodEnd, &b.CreatedBy, &b.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan import batch: %w", err)
		}
		batches = append(batches, &b)
	}
	return batches, rows.Err()
}

const deleteBatchQuery = `
	DELETE FROM import_batches WHERE id = $1 AND tenant_id = $2
`

func (r *PostgresStatementRepository) DeleteBatch(ctx context.Context, tenantID, batchID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, deleteBatchQuery, batchID, tenantID)
	if err != nil {
		return false, fmt.Errorf("failed to delete import batch: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

const listBatchTransactionsQuery = `
	SELECT id, tenant_id, bank_account_id, project_id, type, category,
	       amount, date, description, raw_description, external_id,
	       import_batch_id, reconciliation_status,
	       linked_entity_type, linked_entity_id, linked_entity_name, created_at
	FROM financial_transactions
	WHERE tenant_id = $1 AND import_batch_id = $2
`

func (r *PostgresStatementRepository) ListBatchTransactions(ctx context.Context, tenantID, batchID uuid.UUID, filter ListFilter) ([]*FinancialTransaction, error) {
	query := listBatchTransactionsQuery
	switch filter {
	case FilterPending:
		query += ` AND reconciliation_status = 'PENDING'`
	case FilterMatched:
		query += ` AND reconciliation_status IN ('AUTO_MATCHED', 'MANUAL_MATCHED')`
	case FilterIgnored:
		query += ` AND reconciliation_status = 'IGNORED'`
	}
	query += ` ORDER BY date, created_at`

	rows, err := r.pool.Query(ctx, query, tenantID, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list batch transactions: %w", err)
	}
	defer rows.Close()

	var txs []*FinancialTransaction
	for rows.Next() {
		tx, err := ScanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// ScanTransaction scans the canonical financial_transactions column list.
// Shared with the reconciliation repository, which selects the same columns.
func ScanTransaction(row pgx.Row) (*FinancialTransaction, error) {
	var t FinancialTransaction
	err := row.Scan(
		&t.ID, &t.TenantID, &t.BankAccountID, &t.ProjectID, &t.Type, &t.Category,
		&t.Amount, &t.Date, &t.Description, &t.RawDescription, &t.ExternalID,
		&t.ImportBatchID, &t.ReconciliationStatus,
		&t.LinkedEntityType, &t.LinkedEntityID, &t.LinkedEntityName, &t.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan financial transaction: %w", err)
	}
	return &t, nil
}
