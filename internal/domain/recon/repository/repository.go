// Package repository provides data access for reconciliation: candidate
// entities, purchase orders and the transaction link writes.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	strepo "github.com/obrastack/conciliador/internal/domain/statement/repository"
)

// EntityType identifies what an imported transaction can be linked to.
type EntityType string

const (
	EntitySupplier      EntityType = "SUPPLIER"
	EntityContractor    EntityType = "CONTRACTOR"
	EntityPurchaseOrder EntityType = "PURCHASE_ORDER"
)

// ValidEntityType reports whether t is a linkable entity type.
func ValidEntityType(t EntityType) bool {
	switch t {
	case EntitySupplier, EntityContractor, EntityPurchaseOrder:
		return true
	}
	return false
}

// Entity is a matching candidate: a supplier or contractor with its
// registered document number.
type Entity struct {
	Type     EntityType `db:"type"`
	ID       uuid.UUID  `db:"id"`
	Name     string     `db:"name"`
	Document string     `db:"document"`
}

// PurchaseOrder is a procurement record used for value and date proximity
// matching.
type PurchaseOrder struct {
	ID           uuid.UUID       `db:"id"`
	Number       string          `db:"number"`
	SupplierName string          `db:"supplier_name"`
	ProjectName  string          `db:"project_name"`
	TotalAmount  decimal.Decimal `db:"total_amount"`
	OrderDate    time.Time       `db:"order_date"`
	Status       string          `db:"status"`
}

// MatchLink is what gets written onto a transaction when it is linked.
type MatchLink struct {
	Status     strepo.ReconciliationStatus
	EntityType EntityType
	EntityID   uuid.UUID
	EntityName string
}

// ReconRepository defines data access for the matching engine and the
// manual reconciliation operations.
type ReconRepository interface {
	// GetTransaction loads one imported transaction scoped to the tenant.
	GetTransaction(ctx context.Context, tenantID, txID uuid.UUID) (*strepo.FinancialTransaction, error)

	// EntitiesByDocument finds active suppliers and contractors whose
	// document contains either candidate form, suppliers first.
	EntitiesByDocument(ctx context.Context, tenantID uuid.UUID, raw, digits string) ([]Entity, error)

	// PurchaseOrdersByAmountAndDate finds open purchase orders with the
	// exact total inside the date window.
	PurchaseOrdersByAmountAndDate(ctx context.Context, tenantID uuid.UUID, amount decimal.Decimal, from, to time.Time) ([]PurchaseOrder, error)

	// ActiveEntities lists every active supplier and contractor, suppliers
	// first. Loaded once per batch run.
	ActiveEntities(ctx context.Context, tenantID uuid.UUID) ([]Entity, error)

	// SearchEntities finds active entities whose name or document contains
	// the term, at most limit per type.
	SearchEntities(ctx context.Context, tenantID uuid.UUID, term string, limit int) ([]Entity, error)

	// ListPending returns PENDING imported transactions, optionally scoped
	// to one batch.
	ListPending(ctx context.Context, tenantID uuid.UUID, batchID *uuid.UUID) ([]*strepo.FinancialTransaction, error)

	// MarkMatched writes the link in one statement. With onlyIfPending the
	// write is guarded on the row still being PENDING; the return reports
	// whether a row changed.
	MarkMatched(ctx context.Context, tenantID, txID uuid.UUID, link MatchLink, onlyIfPending bool) (bool, error)

	// ClearMatch resets the link fields and sets the given status,
	// PENDING for unlink or IGNORED for ignore.
	ClearMatch(ctx context.Context, tenantID, txID uuid.UUID, status strepo.ReconciliationStatus) (bool, error)
}
