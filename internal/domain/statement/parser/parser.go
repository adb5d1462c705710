// Package parser turns raw bank statement files into normalized transactions.
// One parser per format, selected by file extension through a registry so a
// new format never touches the import pipeline.
package parser

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a statement line by the sign of its amount.
type TransactionType string

const (
	TypeIncome  TransactionType = "INCOME"
	TypeExpense TransactionType = "EXPENSE"
)

// ParsedTransaction is the canonical record every format parser produces.
// Amount is signed; positive means money in. ExternalID is the provider
// issued identifier (OFX FITID) and stays empty for spreadsheet formats.
type ParsedTransaction struct {
	Date        time.Time
	Amount      decimal.Decimal
	Type        TransactionType
	Description string
	ExternalID  string
}

// Parser converts one statement format into parsed transactions.
type Parser interface {
	Parse(data []byte) ([]ParsedTransaction, error)
}

// Registry maps a lowercase file extension (dot included) to its parser.
type Registry map[string]Parser

// DefaultRegistry wires the formats Brazilian banks actually export.
func DefaultRegistry() Registry {
	xlsx := NewXLSXParser()
	return Registry{
		".ofx":  NewOFXParser(),
		".csv":  NewCSVParser(),
		".xls":  xlsx,
		".xlsx": xlsx,
	}
}

// Lookup returns the parser registered for the file's extension.
func (r Registry) Lookup(fileName string) (Parser, bool) {
	idx := strings.LastIndex(fileName, ".")
	if idx < 0 {
		return nil, false
	}
	p, ok := r[strings.ToLower(fileName[idx:])]
	return p, ok
}

func typeOf(amount decimal.Decimal) TransactionType {
	if amount.IsNegative() {
		return TypeExpense
	}
	return TypeIncome
}
