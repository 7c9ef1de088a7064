package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Attribute keys whose values never reach the log sink. Case documents carry
// party identifiers, and provider keys travel through config.
var redactedKeys = map[string]bool{
	"api_key":       true,
	"authorization": true,
	"cpf":           true,
	"cpf_cnpj":      true,
	"rg":            true,
	"password":      true,
	"secret":        true,
}

const redacted = "[redacted]"

func NewJSONLogger(service, level string) *slog.Logger {
	return NewJSONLoggerTo(os.Stdout, service, level)
}

// NewJSONLoggerTo writes to w. The CLI passes stderr so command output stays clean.
func NewJSONLoggerTo(w io.Writer, service, level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       parseLevel(level),
		ReplaceAttr: redact,
	})).With("service", service)
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if redactedKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, redacted)
	}
	return a
}

// parseLevel accepts slog's names with offsets ("debug", "info+2") plus the
// "warning" alias; anything else falls back to info.
func parseLevel(level string) slog.Level {
	text := strings.TrimSpace(level)
	if strings.EqualFold(text, "warning") {
		return slog.LevelWarn
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(text)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
