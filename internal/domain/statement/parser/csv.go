package parser

import (
	"fmt"
	"strings"

	"github.com/obrastack/conciliador/internal/domain/common"
	"github.com/obrastack/conciliador/internal/domain/statement/decoder"
	"github.com/obrastack/conciliador/internal/domain/statement/normalizer"
)

// CSVParser handles the semicolon/tab/comma delimited exports Brazilian
// banks produce, matching header columns by synonym and tolerating noise
// rows (headers, footers, balance lines) inside the data.
type CSVParser struct{}

// NewCSVParser constructs the CSV statement parser.
func NewCSVParser() *CSVParser { return &CSVParser{} }

// Ordered synonym lists per logical column. The first candidate found as a
// case-insensitive substring of any header cell wins.
var (
	dateHeaders   = []string{"data", "date", "dt"}
	amountHeaders = []string{"valor", "amount", "value", "vlr", "quantia"}
	descHeaders   = []string{"descricao", "descrição", "historico", "histórico", "memo", "detalhe", "observacao", "observação"}
)

// Parse decodes the text, detects the delimiter from the header line and
// converts every parseable row. Rows with an unparseable date or amount are
// skipped silently; an undetectable date or amount column is a hard error.
func (p *CSVParser) Parse(data []byte) ([]ParsedTransaction, error) {
	lines := splitLines(decoder.Decode(data))
	if len(lines) == 0 {
		return nil, nil
	}

	header := lines[0]
	delim := detectDelimiter(header)
	cells := splitQuoted(header, delim)

	dateCol := findColumn(cells, dateHeaders)
	amountCol := findColumn(cells, amountHeaders)
	descCol := findColumn(cells, descHeaders)
	if dateCol < 0 || amountCol < 0 {
		return nil, fmt.Errorf("%w in header %q", common.ErrColumnsNotFound, header)
	}

	var txs []ParsedTransaction
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		tx, ok := buildRow(splitQuoted(line, delim), dateCol, amountCol, descCol)
		if !ok {
			continue
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// detectDelimiter prefers semicolon, then tab, defaulting to comma.
// Brazilian exports overwhelmingly use semicolon.
func detectDelimiter(header string) rune {
	switch {
	case strings.ContainsRune(header, ';'):
		return ';'
	case strings.ContainsRune(header, '\t'):
		return '\t'
	default:
		return ','
	}
}

func findColumn(cells []string, candidates []string) int {
	for _, cand := range candidates {
		for i, cell := range cells {
			if strings.Contains(strings.ToLower(strings.TrimSpace(cell)), cand) {
				return i
			}
		}
	}
	return -1
}

// splitQuoted splits on delim with quotes acting as a toggle; a delimiter
// inside quotes is literal. Bank exports carry stray quotes that must not
// abort the row, so this stays deliberately lenient.
func splitQuoted(line string, delim rune) []string {
	var (
		fields   []string
		cur      strings.Builder
		inQuotes bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == delim && !inQuotes:
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	return append(fields, cur.String())
}

func buildRow(fields []string, dateCol, amountCol, descCol int) (ParsedTransaction, bool) {
	if dateCol >= len(fields) || amountCol >= len(fields) {
		return ParsedTransaction{}, false
	}

	date, err := normalizer.ParseDate(fields[dateCol])
	if err != nil {
		return ParsedTransaction{}, false
	}
	amount, err := normalizer.ParseAmount(fields[amountCol])
	if err != nil {
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

func splitLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
