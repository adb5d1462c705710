package parser

import (
	"regexp"
	"strings"
	"time"

	"github.com/obrastack/conciliador/internal/domain/statement/decoder"
	"github.com/obrastack/conciliador/internal/domain/statement/normalizer"
)

// OFXParser reads the OFX 1.x SGML variant exported by Brazilian banks.
// Those files are not well-formed XML: tags may never be closed and field
// values often terminate at the next newline.
type OFXParser struct{}

// NewOFXParser constructs the OFX statement parser.
func NewOFXParser() *OFXParser { return &OFXParser{} }

var stmtBlockRe = regexp.MustCompile(`(?is)<STMTTRN>(.*?)</STMTTRN>`)

// Field values appear either as <TAG>value</TAG> or as <TAG>value followed
// by a newline and the next tag.
var ofxFieldRe = func() map[string]*regexp.Regexp {
	tags := []string{"DTPOSTED", "TRNAMT", "FITID", "MEMO", "NAME", "TRNTYPE"}
	m := make(map[string]*regexp.Regexp, len(tags))
	for _, tag := range tags {
		m[tag] = regexp.MustCompile(`(?i)<` + tag + `>\s*([^<\r\n]*)`)
	}
	return m
}()

// Parse extracts every STMTTRN block. When the export omits closing tags the
// primary scan finds nothing and the fallback splitter takes over; that
// fallback runs whenever the primary scan is empty, not only for files that
// look malformed up front.
func (p *OFXParser) Parse(data []byte) ([]ParsedTransaction, error) {
	text := decoder.Decode(data)

	var blocks []string
	for _, m := range stmtBlockRe.FindAllStringSubmatch(text, -1) {
		blocks = append(blocks, m[1])
	}
	if len(blocks) == 0 {
		blocks = splitUnclosedBlocks(text)
	}

	var txs []ParsedTransaction
	for _, block := range blocks {
		tx, ok := parseSTMTTRN(block)
		if !ok {
			// Statements routinely carry non-transaction noise; a block
			// without a usable date or amount is dropped, not an error.
			continue
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// splitUnclosedBlocks recovers transactions from exports that never close
// their STMTTRN tags: split on every opening tag and truncate each fragment
// at the next closing tag of the block or of the surrounding list.
func splitUnclosedBlocks(text string) []string {
	parts := splitFold(text, "<STMTTRN>")
	if len(parts) < 2 {
		return nil
	}
	stops := []string{"</STMTTRN>", "</BANKTRANLIST>", "</OFX>"}
	blocks := make([]string, 0, len(parts)-1)
	for _, part := range parts[1:] {
		for _, stop := range stops {
			if idx := indexFold(part, stop); idx >= 0 {
				part = part[:idx]
			}
		}
		blocks = append(blocks, part)
	}
	return blocks
}

func parseSTMTTRN(block string) (ParsedTransaction, bool) {
	dateRaw := ofxField(block, "DTPOSTED")
	amountRaw := ofxField(block, "TRNAMT")
	if dateRaw == "" || amountRaw == "" {
		return ParsedTransaction{}, false
	}

	date, err := parseOFXDate(dateRaw)
	if err != nil {
		return ParsedTransaction{}, false
	}
	amount, err := normalizer.ParseAmount(amountRaw)
	if err != nil {
		return ParsedTransaction{}, false
	}

	desc := ofxField(block, "MEMO")
	if desc == "" {
		desc = ofxField(block, "NAME")
	}
	if desc == "" {
		desc = ofxField(block, "TRNTYPE")
	}

	return ParsedTransaction{
		Date:        date,
		Amount:      amount,
		Type:        typeOf(amount),
		Description: normalizer.CleanDescription(desc),
		ExternalID:  ofxField(block, "FITID"),
	}, true
}

func ofxField(block, tag string) string {
	m := ofxFieldRe[tag].FindStringSubmatch(block)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// parseOFXDate handles DTPOSTED values of the form YYYYMMDD with an optional
// HHMMSS (and timezone suffix) that is discarded; only the calendar date
// matters downstream.
func parseOFXDate(raw string) (time.Time, error) {
	digits := raw
	for i, r := range raw {
		if r < '0' || r > '9' {
			digits = raw[:i]
			break
		}
	}
	if len(digits) < 8 {
		return time.Time{}, normalizer.ErrInvalidDate
	}
	return time.ParseInLocation("20060102", digits[:8], time.UTC)
}

func indexFold(s, sub string) int {
	return strings.Index(strings.ToUpper(s), strings.ToUpper(sub))
}

func splitFold(s, sep string) []string {
	upper := strings.ToUpper(s)
	usep := strings.ToUpper(sep)
	var parts []string
	for {
		idx := strings.Index(upper, usep)
		if idx < 0 {
			return append(parts, s)
		}
		parts = append(parts, s[:idx])
		s = s[idx+len(sep):]
		upper = upper[idx+len(usep):]
	}
}
