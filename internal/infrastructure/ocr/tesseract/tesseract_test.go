package tesseract

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestArgs(t *testing.T) {
	got := strings.Join(New("").args(), " ")
	if got != "stdin stdout -l por+eng --psm 6 --dpi 300" {
		t.Fatalf("unexpected args %q", got)
	}
}

func TestRecognizeRunsBinary(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake")
	}
	script := filepath.Join(t.TempDir(), "tesseract")
	body := "#!/bin/sh\ncat >/dev/null\necho '  Procuração ad judicia  '\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	got, err := New(script).Recognize(context.Background(), []byte("png"))
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if got != "Procuração ad judicia" {
		t.Fatalf("unexpected text %q", got)
	}
}
