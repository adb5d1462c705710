package parser

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

const wellFormedOFX = `OFXHEADER:100
DATA:OFXSGML
<OFX>
<BANKMSGSRSV1>
<STMTTRNRS>
<STMTRS>
<BANKTRANLIST>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20260105120000
<TRNAMT>-150.00
<FITID>2026010501
<MEMO>PAG BOLETO CONSTRUFER LTDA
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20260107
<TRNAMT>2500,00
<FITID>2026010702
<NAME>TED RECEBIDA CLIENTE
</STMTTRN>
</BANKTRANLIST>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

func TestOFXParser_WellFormed(t *testing.T) {
	txs, err := NewOFXParser().Parse([]byte(wellFormedOFX))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txs))
	}

	first := txs[0]
	if !first.Date.Equal(time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected date: %s", first.Date)
	}
	if !first.Amount.Equal(decimal.RequireFromString("-150.00")) {
		t.Errorf("unexpected amount: %s", first.Amount)
	}
	if first.Type != TypeExpense {
		t.Errorf("expected EXPENSE, got %s", first.Type)
	}
	if first.Description != "PAG BOLETO CONSTRUFER LTDA" {
		t.Errorf("unexpected description: %q", first.Description)
	}
	if first.ExternalID != "2026010501" {
		t.Errorf("unexpected external id: %q", first.ExternalID)
	}

	second := txs[1]
	if second.Type != TypeIncome {
		t.Errorf("expected INCOME, got %s", second.Type)
	}
	if !second.Amount.Equal(decimal.RequireFromString("2500.00")) {
		t.Errorf("comma decimal not parsed: %s", second.Amount)
	}
	if second.Description != "TED RECEBIDA CLIENTE" {
		t.Errorf("NAME fallback not applied: %q", second.Description)
	}
}

func TestOFXParser_UnclosedTagsFallback(t *testing.T) {
	unclosed := strings.ReplaceAll(wellFormedOFX, "</STMTTRN>\n", "")

	txs, err := NewOFXParser().Parse([]byte(unclosed))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("fallback splitter expected 2 transactions, got %d", len(txs))
	}
	if txs[0].ExternalID != "2026010501" || txs[1].ExternalID != "2026010702" {
		t.Fatalf("fallback lost fields: %+v", txs)
	}
}

func TestOFXParser_NoiseBlockDropped(t *testing.T) {
	noisy := `<OFX><BANKTRANLIST>
<STMTTRN>
<TRNTYPE>OTHER
<MEMO>SALDO ANTERIOR
</STMTTRN>
<STMTTRN>
<DTPOSTED>20260110
<TRNAMT>100.00
<FITID>abc
<MEMO>DEPOSITO
</STMTTRN>
</BANKTRANLIST></OFX>`

	txs, err := NewOFXParser().Parse([]byte(noisy))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("expected noise block to be dropped, got %d transactions", len(txs))
	}
	if txs[0].Description != "DEPOSITO" {
		t.Fatalf("wrong block survived: %+v", txs[0])
	}
}

func TestOFXParser_TRNTYPEDescriptionFallback(t *testing.T) {
	minimal := `<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20260110
<TRNAMT>-10.00
</STMTTRN>`

	txs, err := NewOFXParser().Parse([]byte(minimal))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(txs) != 1 || txs[0].Description != "DEBIT" {
		t.Fatalf("expected TRNTYPE fallback description, got %+v", txs)
	}
}

func TestOFXParser_EmptyInput(t *testing.T) {
	txs, err := NewOFXParser().Parse([]byte("not an ofx file at all"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(txs) != 0 {
		t.Fatalf("expected no transactions, got %d", len(txs))
	}
}
