// Package engine implements the matching strategies that link imported bank
// transactions to suppliers, contractors and purchase orders.
package engine

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/obrastack/conciliador/internal/domain/recon/repository"
	strepo "github.com/obrastack/conciliador/internal/domain/statement/repository"
)

// Confidence per strategy. A document hit is near certain, an exact value
// inside the date window is strong, a name token overlap is a hint.
const (
	ConfidenceDocument  = 90
	ConfidenceProximity = 70
	ConfidenceName      = 50
)

const proximityWindowDays = 3

// cnpjRe matches a CNPJ in formatted or bare form, e.g.
// 12.345.678/0001-90 or 12345678000190.
var cnpjRe = regexp.MustCompile(`\d{2}\.?\d{3}\.?\d{3}/?\d{4}-?\d{2}`)

var nonDigitRe = regexp.MustCompile(`\D`)

// Suggestion is one candidate link with its confidence and a human-readable
// reason shown in the review screen.
type Suggestion struct {
	EntityType repository.EntityType `json:"entity_type"`
	EntityID   string                `json:"entity_id"`
	EntityName string                `json:"entity_name"`
	Confidence int                   `json:"confidence"`
	Reason     string                `json:"reason"`
}

// Engine runs the matching strategies against the reconciliation repository.
type Engine struct {
	repo repository.ReconRepository
}

// New creates a matching engine.
func New(repo repository.ReconRepository) *Engine {
	return &Engine{repo: repo}
}

// Suggestions runs every strategy for one transaction and returns the merged
// candidates ordered by confidence. A candidate produced by more than one
// strategy appears once, at its highest confidence.
func (e *Engine) Suggestions(ctx context.Context, tx *strepo.FinancialTransaction) ([]Suggestion, error) {
	var out []Suggestion
	seen := make(map[string]struct{})

	byDoc, err := e.matchByDocument(ctx, tx)
	if err != nil {
		return nil, err
	}
	out = appendNew(out, seen, byDoc)

	byPO, err := e.matchByProximity(ctx, tx)
	if err != nil {
		return nil, err
	}
	out = appendNew(out, seen, byPO)

	entities, err := e.repo.ActiveEntities(ctx, tx.TenantID)
	if err != nil {
		return nil, err
	}
	out = appendNew(out, seen, matchByName(tx, entities))

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out, nil
}

// AutoMatch picks the single candidate an unattended run may commit: the
// first document hit, else the first name hit. Value proximity is never
// committed automatically because several orders can share an amount.
// entities may be preloaded by batch runs; when nil they are fetched.
func (e *Engine) AutoMatch(ctx context.Context, tx *strepo.FinancialTransaction, entities []repository.Entity) (*Suggestion, error) {
	byDoc, err := e.matchByDocument(ctx, tx)
	if err != nil {
		return nil, err
	}
	if len(byDoc) > 0 {
		return &byDoc[0], nil
	}

	if entities == nil {
		entities, err = e.repo.ActiveEntities(ctx, tx.TenantID)
		if err != nil {
			return nil, err
		}
	}
	byName := matchByName(tx, entities)
	if len(byName) > 0 {
		return &byName[0], nil
	}
	return nil, nil
}

func appendNew(out []Suggestion, seen map[string]struct{}, batch []Suggestion) []Suggestion {
	for _, s := range batch {
		key := string(s.EntityType) + "/" + s.EntityID
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}

// matchByDocument scans the raw description for CNPJ numbers and looks them
// up against registered suppliers and contractors, in either formatted or
// bare form.
func (e *Engine) matchByDocument(ctx context.Context, tx *strepo.FinancialTransaction) ([]Suggestion, error) {
	var out []Suggestion
	for _, raw := range cnpjRe.FindAllString(tx.RawDescription, -1) {
		digits := nonDigitRe.ReplaceAllString(raw, "")
		entities, err := e.repo.EntitiesByDocument(ctx, tx.TenantID, raw, digits)
		if err != nil {
			return nil, err
		}
		for _, ent := range entities {
			out = append(out, Suggestion{
				EntityType: ent.Type,
				EntityID:   ent.ID.String(),
				EntityName: ent.Name,
				Confidence: ConfidenceDocument,
				Reason:     fmt.Sprintf("CNPJ %s encontrado na descrição", raw),
			})
		}
	}
	return out, nil
}

// matchByProximity finds open purchase orders with the exact transaction
// value dated within the window. Expenses only; incoming money never pays a
// purchase order.
func (e *Engine) matchByProximity(ctx context.Context, tx *strepo.FinancialTransaction) ([]Suggestion, error) {
	if tx.Type != "EXPENSE" {
		return nil, nil
	}

	from := tx.Date.AddDate(0, 0, -proximityWindowDays)
	to := tx.Date.AddDate(0, 0, proximityWindowDays)
	orders, err := e.repo.PurchaseOrdersByAmountAndDate(ctx, tx.TenantID, tx.Amount, from, to)
	if err != nil {
		return nil, err
	}

	var out []Suggestion
	for _, po := range orders {
		out = append(out, Suggestion{
			EntityType: repository.EntityPurchaseOrder,
			EntityID:   po.ID.String(),
			EntityName: fmt.Sprintf("Pedido %s - %s", po.Number, po.SupplierName),
			Confidence: ConfidenceProximity,
			Reason:     fmt.Sprintf("Valor exato do pedido %s (%s) em %s", po.Number, po.ProjectName, po.OrderDate.Format("02/01/2006")),
		})
	}
	return out, nil
}

// matchByName compares entity name tokens against the transaction
// description.
func matchByName(tx *strepo.FinancialTransaction, entities []repository.Entity) []Suggestion {
	desc := strings.ToUpper(tx.RawDescription)

	var out []Suggestion
	for _, ent := range entities {
		if !nameMatches(desc, ent.Name) {
			continue
		}
		out = append(out, Suggestion{
			EntityType: ent.Type,
			EntityID:   ent.ID.String(),
			EntityName: ent.Name,
			Confidence: ConfidenceName,
			Reason:     fmt.Sprintf("Nome %q semelhante à descrição", ent.Name),
		})
	}
	return out
}

// nameMatches requires two qualifying name tokens in the description, or the
// single qualifying token when the name has only one and it is long enough
// to be distinctive. Tokens of up to three runes (LTDA-style suffixes, "DE",
// "DA") never qualify.
func nameMatches(upperDesc, name string) bool {
	var qualifying []string
	for _, tok := range strings.Fields(strings.ToUpper(name)) {
		if utf8.RuneCountInString(tok) > 3 {
			qualifying = append(qualifying, tok)
		}
	}

	hits := 0
	for _, tok := range qualifying {
		if strings.Contains(upperDesc, tok) {
			hits++
		}
	}

	if hits >= 2 {
		return true
	}
	if len(qualifying) == 1 && hits == 1 && utf8.RuneCountInString(qualifying[0]) > 5 {
		return true
	}
	return false
}
