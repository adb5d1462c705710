package decoder

import (
	"strings"
	"testing"
)

func TestDecode_UTF8Passthrough(t *testing.T) {
	in := "Data;Valor;Descrição\n01/02/2026;-10,00;Pagamento"
	got := Decode([]byte(in))
	if got != in {
		t.Fatalf("expected passthrough, got %q", got)
	}
}

func TestDecode_Windows1252Fallback(t *testing.T) {
	// "Descrição" encoded as Windows-1252: ç=0xE7, ã=0xE3.
	in := []byte{'D', 'e', 's', 'c', 'r', 'i', 0xE7, 0xE3, 'o', ';', 'S', 'a', 'l', 'd', 'o'}
	got := Decode(in)
	if !strings.Contains(got, "Descrição") {
		t.Fatalf("expected latin-1 fallback to recover accents, got %q", got)
	}
	if strings.ContainsRune(got, '�') {
		t.Fatalf("decoded text still contains replacement characters: %q", got)
	}
}

func TestDecode_BinaryGarbageStillReturnsText(t *testing.T) {
	in := []byte{0x00, 0xFF, 0xFE, 0x80}
	if got := Decode(in); got == "" {
		t.Fatal("decode must always produce some string")
	}
}
