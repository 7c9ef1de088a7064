package mediatools

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Tools wraps the system binaries used for page rendering and audio
// extraction: pdftoppm (poppler-utils), ffmpeg and ffprobe.
type Tools struct {
	pdftoppmPath string
	ffmpegPath   string
	ffprobePath  string
	workDir      string
	timeout      time.Duration
}

type Config struct {
	PdftoppmPath string
	FFmpegPath   string
	FFprobePath  string
	WorkDir      string
	Timeout      time.Duration
}

func New(cfg Config) *Tools {
	t := &Tools{
		pdftoppmPath: cfg.PdftoppmPath,
		ffmpegPath:   cfg.FFmpegPath,
		ffprobePath:  cfg.FFprobePath,
		workDir:      cfg.WorkDir,
		timeout:      cfg.Timeout,
	}
	if t.pdftoppmPath == "" {
		t.pdftoppmPath = "pdftoppm"
	}
	if t.ffmpegPath == "" {
		t.ffmpegPath = "ffmpeg"
	}
	if t.ffprobePath == "" {
		t.ffprobePath = "ffprobe"
	}
	if t.timeout <= 0 {
		t.timeout = 10 * time.Minute
	}
	return t
}

// RenderPage rasterizes one 1-based page of a PDF to PNG bytes.
func (t *Tools) RenderPage(ctx context.Context, pdfPath string, page, dpi int) ([]byte, error) {
	if page <= 0 {
		return nil, fmt.Errorf("page must be positive")
	}
	if dpi <= 0 {
		dpi = 300
	}
	outDir, err := os.MkdirTemp(t.workDir, "pages-*")
	if err != nil {
		return nil, fmt.Errorf("create render dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	prefix := filepath.Join(outDir, "page")
	args := []string{
		"-r", strconv.Itoa(dpi),
		"-png",
		"-f", strconv.Itoa(page),
		"-l", strconv.Itoa(page),
		pdfPath, prefix,
	}
	out, err := exec.CommandContext(ctx, t.pdftoppmPath, args...).CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w; out=%s", err, strings.TrimSpace(string(out)))
	}

	matches, _ := filepath.Glob(filepath.Join(outDir, "page*.png"))
	if len(matches) == 0 {
		return nil, fmt.Errorf("no images produced by pdftoppm; out=%s", strings.TrimSpace(string(out)))
	}
	img, err := os.ReadFile(matches[0])
	if err != nil {
		return nil, fmt.Errorf("read rendered page: %w", err)
	}
	return img, nil
}

// HasAudio reports whether the container has at least one audio stream.
func (t *Tools) HasAudio(ctx context.Context, videoPath string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	args := []string{
		"-v", "error",
		"-select_streams", "a",
		"-show_entries", "stream=index",
		"-of", "csv=p=0",
		videoPath,
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.ffprobePath, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return false, fmt.Errorf("ffprobe failed: %w; out=%s", err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(string(out)) != "", nil
}

// ExtractAudio writes a mono 16 kHz wave file with the input's audio track.
func (t *Tools) ExtractAudio(ctx context.Context, inputPath, wavPath string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	args := []string{
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-f", "wav", wavPath,
	}
	out, err := exec.CommandContext(ctx, t.ffmpegPath, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg extract audio failed: %w; out=%s", err, strings.TrimSpace(string(out)))
	}
	if _, err := os.Stat(wavPath); err != nil {
		return fmt.Errorf("audio output missing at %s", wavPath)
	}
	return nil
}

// WriteTempFile stores data in a new temp file whose name ends with suffix.
// The returned cleanup removes it and is safe to call more than once.
func WriteTempFile(dir, suffix string, data []byte) (string, func(), error) {
	if suffix != "" && !strings.HasPrefix(suffix, ".") {
		suffix = "." + suffix
	}
	f, err := os.CreateTemp(dir, "upload-*"+suffix)
	if err != nil {
		return "", func() {}, fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()
	cleanup := func() { _ = os.Remove(path) }
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		cleanup()
		return "", func() {}, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", func() {}, fmt.Errorf("close temp file: %w", err)
	}
	return path, cleanup, nil
}

// TempPath reserves a path for a tool to write into.
func TempPath(dir, suffix string) (string, func(), error) {
	return WriteTempFile(dir, suffix, nil)
}
