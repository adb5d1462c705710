package parser

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/obrastack/conciliador/internal/domain/common"
)

func TestCSVParser_SemicolonStatement(t *testing.T) {
	data := "Data;Valor;Descricao\n" +
		"01/01/2026;-150,00;Pagamento XYZ\n" +
		"02/01/2026;500,00;Recebimento ABC\n" +
		"bad-row;not-a-number;Noise\n"

	txs, err := NewCSVParser().Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions (noise row skipped), got %d", len(txs))
	}

	if txs[0].Type != TypeExpense || !txs[0].Amount.Equal(decimal.RequireFromString("-150.00")) {
		t.Errorf("unexpected first row: %+v", txs[0])
	}
	if txs[0].Description != "Pagamento XYZ" {
		t.Errorf("unexpected description: %q", txs[0].Description)
	}
	if !txs[0].Date.Equal(time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected date: %s", txs[0].Date)
	}
	if txs[1].Type != TypeIncome || !txs[1].Amount.Equal(decimal.RequireFromString("500.00")) {
		t.Errorf("unexpected second row: %+v", txs[1])
	}
	if txs[0].ExternalID != "" || txs[1].ExternalID != "" {
		t.Error("CSV rows must not carry external ids")
	}
}

func TestCSVParser_SemicolonHeaderNeverSplitOnComma(t *testing.T) {
	// The amount uses a comma decimal; splitting on comma would corrupt it.
	data := "Data;Valor;Historico\n05/03/2026;1.234,56;Deposito\n"

	txs, err := NewCSVParser().Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(txs))
	}
	if !txs[0].Amount.Equal(decimal.RequireFromString("1234.56")) {
		t.Fatalf("comma-decimal amount corrupted: %s", txs[0].Amount)
	}
}

func TestCSVParser_TabDelimiter(t *testing.T) {
	data := "Date\tAmount\tMemo\n10/02/2026\t-42.50\tCompra material\n"

	txs, err := NewCSVParser().Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(txs) != 1 || !txs[0].Amount.Equal(decimal.RequireFromString("-42.50")) {
		t.Fatalf("tab-delimited parse failed: %+v", txs)
	}
}

func TestCSVParser_QuotedDelimiterIsLiteral(t *testing.T) {
	data := "Data,Valor,Descricao\n" +
		`03/01/2026,-75.10,"Cimento, areia e brita"` + "\n"

	txs, err := NewCSVParser().Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(txs))
	}
	if txs[0].Description != "Cimento, areia e brita" {
		t.Fatalf("quoted comma mangled: %q", txs[0].Description)
	}
}

func TestCSVParser_MissingAmountColumn(t *testing.T) {
	data := "Data;Saldo;Descricao\n01/01/2026;10;foo\n"

	_, err := NewCSVParser().Parse([]byte(data))
	if !errors.Is(err, common.ErrColumnsNotFound) {
		t.Fatalf("expected ErrColumnsNotFound, got %v", err)
	}
}

func TestCSVParser_EmptyFile(t *testing.T) {
	txs, err := NewCSVParser().Parse([]byte(""))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(txs) != 0 {
		t.Fatalf("expected no transactions, got %d", len(txs))
	}
}

func TestRegistry_Lookup(t *testing.T) {
	reg := DefaultRegistry()

	for _, name := range []string{"extrato.ofx", "EXTRATO.OFX", "jan.csv", "planilha.xlsx", "antiga.xls"} {
		if _, ok := reg.Lookup(name); !ok {
			t.Errorf("expected parser for %s", name)
		}
	}
	for _, name := range []string{"extrato.pdf", "semextensao", "extrato.txt"} {
		if _, ok := reg.Lookup(name); ok {
			t.Errorf("did not expect parser for %s", name)
		}
	}
}
