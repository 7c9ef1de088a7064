package textfix

import "testing"

func TestFixDecodesLiteralEscapes(t *testing.T) {
	in := `A\xc3\xa7\xc3\xa3o de cobran\xc3\xa7a`
	want := "Ação de cobrança"
	if got := Fix(in); got != want {
		t.Fatalf("Fix() = %q, want %q", got, want)
	}
	if got := Fix(Fix(in)); got != want {
		t.Fatalf("Fix() not idempotent: %q", got)
	}
}

func TestFixRepairsMojibake(t *testing.T) {
	cases := map[string]string{
		"AÃ§Ã£o indenizatÃ³ria":  "Ação indenizatória",
		"responsabilidade civil": "responsabilidade civil",
		"SÃO PAULO":              "SÃO PAULO",
		"prestaÃ§Ã£o de serviÃ§o": "prestação de serviço",
	}
	for in, want := range cases {
		if got := Fix(in); got != want {
			t.Fatalf("Fix(%q) = %q, want %q", in, got, want)
		}
		if got := Fix(Fix(in)); got != want {
			t.Fatalf("Fix(Fix(%q)) = %q, want %q", in, got, want)
		}
	}
}

func TestFixLatin1EscapeFallback(t *testing.T) {
	if got := Fix(`ju\xedzo`); got != "juízo" {
		t.Fatalf("Fix() = %q", got)
	}
}

func TestDecodeBytesFallsBackToLatin1(t *testing.T) {
	if got := DecodeBytes([]byte{'a', 0xe7, 0xe3, 'o'}); got != "ação" {
		t.Fatalf("DecodeBytes() = %q", got)
	}
	if got := DecodeBytes([]byte("\xef\xbb\xbfolá")); got != "olá" {
		t.Fatalf("DecodeBytes() with BOM = %q", got)
	}
}
