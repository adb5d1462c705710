package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/obrastack/conciliador/internal/domain/common"
	strepo "github.com/obrastack/conciliador/internal/domain/statement/repository"
)

// PostgresReconRepository implements ReconRepository using PostgreSQL.
type PostgresReconRepository struct {
	pool strepo.PGXPool
}

// NewPostgresReconRepository creates a PostgreSQL-backed reconciliation repository.
func NewPostgresReconRepository(pool strepo.PGXPool) *PostgresReconRepository {
	return &PostgresReconRepository{pool: pool}
}

const getTransactionQuery = `
	SELECT id, tenant_id, bank_account_id, project_id, type, category,
	       amount, date, description, raw_description, external_id,
	       import_batch_id, reconciliation_status,
	       linked_entity_type, linked_entity_id, linked_entity_name, created_at
	FROM financial_transactions
	WHERE id = $1 AND tenant_id = $2
`

func (r *PostgresReconRepository) GetTransaction(ctx context.Context, tenantID, txID uuid.UUID) (*strepo.FinancialTransaction, error) {
	tx, err := strepo.ScanTransaction(r.pool.QueryRow(ctx, getTransactionQuery, txID, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", txID, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return tx, nil
}

const suppliersByDocumentQuery = `
	SELECT id, name, document FROM suppliers
	WHERE tenant_id = $1 AND active
	  AND (document LIKE '%' || $2 || '%' OR document LIKE '%' || $3 || '%')
	ORDER BY name
`

const contractorsByDocumentQuery = `
	SELECT id, name, document FROM contractors
	WHERE tenant_id = $1 AND active
	  AND (document LIKE '%' || $2 || '%' OR document LIKE '%' || $3 || '%')
	ORDER BY name
`

// EntitiesByDocument queries suppliers before contractors so suppliers come
// out first in the result; callers depend on that order.
func (r *PostgresReconRepository) EntitiesByDocument(ctx context.Context, tenantID uuid.UUID, raw, digits string) ([]Entity, error) {
	suppliers, err := r.queryEntities(ctx, suppliersByDocumentQuery, EntitySupplier, tenantID, raw, digits)
	if err != nil {
		return nil, err
	}
	contractors, err := r.queryEntities(ctx, contractorsByDocumentQuery, EntityContractor, tenantID, raw, digits)
	if err != nil {
		return nil, err
	}
	return append(suppliers, contractors...), nil
}

const purchaseOrdersByAmountQuery = `
	SELECT po.id, po.number, COALESCE(s.name, ''), COALESCE(p.name, ''),
	       po.total_amount, po.order_date, po.status
	FROM purchase_orders po
	LEFT JOIN suppliers s ON s.id = po.supplier_id
	LEFT JOIN projects p ON p.id = po.project_id
	WHERE po.tenant_id = $1 AND po.total_amount = $2
	  AND po.order_date BETWEEN $3 AND $4
	  AND po.status IN ('APPROVED', 'ORDERED', 'DELIVERED')
	ORDER BY po.order_date
`

func (r *PostgresReconRepository) PurchaseOrdersByAmountAndDate(ctx context.Context, tenantID uuid.UUID, amount decimal.Decimal, from, to time.Time) ([]PurchaseOrder, error) {
	rows, err := r.pool.Query(ctx, purchaseOrdersByAmountQuery, tenantID, amount, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchase orders: %w", err)
	}
	defer rows.Close()

	var orders []PurchaseOrder
	for rows.Next() {
		var po PurchaseOrder
		err := rows.Scan(&po.ID, &po.Number, &po.SupplierName, &po.ProjectName,
			&po.TotalAmount, &po.OrderDate, &po.Status)
		if err != nil {
			return nil, fmt.Errorf("failed to scan purchase order: %w", err)
		}
		orders = append(orders, po)
	}
	return orders, rows.Err()
}

const activeSuppliersQuery = `
	SELECT id, name, document FROM suppliers
	WHERE tenant_id = $1 AND active
	ORDER BY name
`

const activeContractorsQuery = `
	SELECT id, name, document FROM contractors
	WHERE tenant_id = $1 AND active
	ORDER BY name
`

// ActiveEntities returns suppliers before contractors; the automatic name
// strategy takes the first hit, so the order decides ties.
func (r *PostgresReconRepository) ActiveEntities(ctx context.Context, tenantID uuid.UUID) ([]Entity, error) {
	suppliers, err := r.queryEntities(ctx, activeSuppliersQuery, EntitySupplier, tenantID)
	if err != nil {
		return nil, err
	}
	contractors, err := r.queryEntities(ctx, activeContractorsQuery, EntityContractor, tenantID)
	if err != nil {
		return nil, err
	}
	return append(suppliers, contractors...), nil
}

const searchSuppliersQuery = `
	SELECT id, name, document FROM suppliers
	WHERE tenant_id = $1 AND active
	  AND (name ILIKE '%' || $2 || '%' OR document LIKE '%' || $2 || '%')
	ORDER BY name
	LIMIT $3
`

const searchContractorsQuery = `
	SELECT id, name, document FROM contractors
	WHERE tenant_id = $1 AND active
	  AND (name ILIKE '%' || $2 || '%' OR document LIKE '%' || $2 || '%')
	ORDER BY name
	LIMIT $3
`

func (r *PostgresReconRepository) SearchEntities(ctx context.Context, tenantID uuid.UUID, term string, limit int) ([]Entity, error) {
	suppliers, err := r.queryEntities(ctx, searchSuppliersQuery, EntitySupplier, tenantID, term, limit)
	if err != nil {
		return nil, err
	}
	contractors, err := r.queryEntities(ctx, searchContractorsQuery, EntityContractor, tenantID, term, limit)
	if err != nil {
		return nil, err
	}
	return append(suppliers, contractors...), nil
}

func (r *PostgresReconRepository) queryEntities(ctx context.Context, query string, typ EntityType, args ...any) ([]Entity, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s entities: %w", typ, err)
	}
	defer rows.Close()

	var entities []Entity
	for rows.Next() {
		e := Entity{Type: typ}
		if err := rows.Scan(&e.ID, &e.Name, &e.Document); err != nil {
			return nil, fmt.Errorf("failed to scan %s entity: %w", typ, err)
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

const listPendingQuery = `
	SELECT id, tenant_id, bank_account_id, project_id, type, category,
	       amount, date, description, raw_description, external_id,
	       import_batch_id, reconciliation_status,
	       linked_entity_type, linked_entity_id, linked_entity_name, created_at
	FROM financial_transactions
	WHERE tenant_id = $1 AND reconciliation_status = 'PENDING'
	  AND import_batch_id IS NOT NULL
`

func (r *PostgresReconRepository) ListPending(ctx context.Context, tenantID uuid.UUID, batchID *uuid.UUID) ([]*strepo.FinancialTransaction, error) {
	query := listPendingQuery
	args := []any{tenantID}
	if batchID != nil {
		query += ` AND import_batch_id = $2`
		args = append(args, *batchID)
	}
	query += ` ORDER BY date, created_at`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending transactions: %w", err)
	}
	defer rows.Close()

	var txs []*strepo.FinancialTransaction
	for rows.Next() {
		tx, err := strepo.ScanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

const markMatchedQuery = `
	UPDATE financial_transactions
	SET reconciliation_status = $3,
	    linked_entity_type = $4,
	    linked_entity_id = $5,
	    linked_entity_name = $6
	WHERE id = $1 AND tenant_id = $2 AND import_batch_id IS NOT NULL
`

func (r *PostgresReconRepository) MarkMatched(ctx context.Context, tenantID, txID uuid.UUID, link MatchLink, onlyIfPending bool) (bool, error) {
	query := markMatchedQuery
	if onlyIfPending {
		query += ` AND reconciliation_status = 'PENDING'`
	}

	tag, err := r.pool.Exec(ctx, query,
		txID, tenantID,
		string(link.Status), string(link.EntityType), link.EntityID, link.EntityName,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark transaction matched: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

const clearMatchQuery = `
	UPDATE financial_transactions
	SET reconciliation_status = $3,
	    linked_entity_type = NULL,
	    linked_entity_id = NULL,
	    linked_entity_name = NULL
	WHERE id = $1 AND tenant_id = $2 AND import_batch_id IS NOT NULL
`

func (r *PostgresReconRepository) ClearMatch(ctx context.Context, tenantID, txID uuid.UUID, status strepo.ReconciliationStatus) (bool, error) {
	tag, err := r.pool.Exec(ctx, clearMatchQuery, txID, tenantID, string(status))
	if err != nil {
		return false, fmt.Errorf("failed to clear transaction match: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
