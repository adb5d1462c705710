package parser

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/obrastack/conciliador/internal/domain/common"
	"github.com/obrastack/conciliador/internal/domain/statement/normalizer"
)

// XLSXParser applies the CSV column rules to the first worksheet. Cells are
// read raw so typed date and number cells keep their underlying serial
// representation and bypass the Brazilian string parsers.
type XLSXParser struct{}

// NewXLSXParser constructs the spreadsheet statement parser.
func NewXLSXParser() *XLSXParser { return &XLSXParser{} }

// Excel date serials beyond this are not dates a bank statement contains.
const maxDateSerial = 300000

func (p *XLSXParser) Parse(data []byte) ([]ParsedTransaction, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data), excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable workbook: %v", common.ErrEmptyStatement, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", common.ErrEmptyStatement)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty worksheet", common.ErrEmptyStatement)
	}

	header := rows[0]
	dateCol := findColumn(header, dateHeaders)
	amountCol := findColumn(header, amountHeaders)
	descCol := findColumn(header, descHeaders)
	if dateCol < 0 || amountCol < 0 {
		return nil, fmt.Errorf("%w in worksheet %q", common.ErrColumnsNotFound, sheets[0])
	}

	var txs []ParsedTransaction
	for _, row := range rows[1:] {
		tx, ok := buildSheetRow(row, dateCol, amountCol, descCol)
		if !ok {
			continue
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

func buildSheetRow(fields []string, dateCol, amountCol, descCol int) (ParsedTransaction, bool) {
	if dateCol >= len(fields) || amountCol >= len(fields) {
		return ParsedTransaction{}, false
	}

	date, ok := sheetDate(fields[dateCol])
	if !ok {
		return ParsedTransaction{}, false
	}
	amount, ok := sheetAmount(fields[amountCol])
	if !ok {
		return ParsedTransaction{}, false
	}

	var desc string
	if descCol >= 0 && descCol < len(fields) {
		desc = normalizer.CleanDescription(fields[descCol])
	}

	return ParsedTransaction{
		Date:        date,
		Amount:      amount,
		Type:        typeOf(amount),
		Description: desc,
	}, true
}

// sheetDate accepts a typed date cell (Excel serial) or statement text.
func sheetDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if serial, err := strconv.ParseFloat(raw, 64); err == nil && serial > 0 && serial < maxDateSerial {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	t, err := normalizer.ParseDate(raw)
	return t, err == nil
}

// sheetAmount takes typed numeric cells as-is and falls back to the
// Brazilian number rules for text cells.
func sheetAmount(raw string) (decimal.Decimal, bool) {
	raw = strings.TrimSpace(raw)
	if d, err := decimal.NewFromString(raw); err == nil {
		return d, true
	}
	d, err := normalizer.ParseAmount(raw)
	return d, err == nil
}
