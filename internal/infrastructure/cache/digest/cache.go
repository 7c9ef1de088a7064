package digest

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/probe365/advocacia-ia-sub000/internal/core/domain"
)

// Cache stores summaries and FIRAC records under a case cache directory,
// keyed by document-set digest and focus hash.
type Cache struct {
	dir    string
	logger *slog.Logger
}

func New(dir string, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{dir: dir, logger: logger.With("component", "digest_cache")}
}

func (c *Cache) summaryPath(digest, focusHash string) string {
	return filepath.Join(c.dir, fmt.Sprintf("summary_%s_%s.txt", digest, focusHash))
}

func (c *Cache) firacPath(digest, focusHash, ext string) string {
	return filepath.Join(c.dir, fmt.Sprintf("firac_%s_%s.%s", digest, focusHash, ext))
}

func (c *Cache) ReadSummary(digest, focusHash string) (string, bool) {
	raw, ok := c.read(c.summaryPath(digest, focusHash))
	if !ok || strings.TrimSpace(raw) == "" {
		return "", false
	}
	return raw, true
}

func (c *Cache) WriteSummary(digest, focusHash, summary string) error {
	return c.write(c.summaryPath(digest, focusHash), []byte(summary))
}

// ReadFIRACJSON returns a cached record only when every field is filled.
// Anything else counts as a miss.
func (c *Cache) ReadFIRACJSON(digest, focusHash string) (domain.FIRAC, bool) {
	path := c.firacPath(digest, focusHash, "json")
	raw, ok := c.read(path)
	if !ok {
		return domain.FIRAC{}, false
	}
	var record domain.FIRAC
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		c.invalid(path, err)
		return domain.FIRAC{}, false
	}
	if missing := record.Missing(); len(missing) > 0 {
		c.invalid(path, &domain.FieldMissingError{Fields: missing})
		return domain.FIRAC{}, false
	}
	return record, true
}

func (c *Cache) WriteFIRACJSON(digest, focusHash string, record domain.FIRAC) error {
	raw, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode firac: %w", err)
	}
	return c.write(c.firacPath(digest, focusHash, "json"), raw)
}

func (c *Cache) ReadFIRACRaw(digest, focusHash string) (string, bool) {
	raw, ok := c.read(c.firacPath(digest, focusHash, "txt"))
	if !ok || strings.TrimSpace(raw) == "" {
		return "", false
	}
	return raw, true
}

func (c *Cache) WriteFIRACRaw(digest, focusHash, raw string) error {
	return c.write(c.firacPath(digest, focusHash, "txt"), []byte(raw))
}

// Purge removes every summary and FIRAC entry. The digest only sees source
// names and chunk counts, so a re-uploaded file with new content can hash
// like the old one; callers purge whenever the document set changes.
func (c *Cache) Purge() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("list cache dir: %w", err)
	}
	var errs []error
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !(strings.HasPrefix(name, "summary_") || strings.HasPrefix(name, "firac_")) {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Cache) read(path string) (string, bool) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("cache_read_failed", "path", path, "error", err)
		}
		return "", false
	}
	return string(raw), true
}

func (c *Cache) invalid(path string, err error) {
	c.logger.Warn("cache_invalid", "path", path, "error", domain.WrapError(domain.ErrCacheInvalid, "read firac cache", err))
}

func (c *Cache) write(path string, data []byte) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(c.dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create cache temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}
