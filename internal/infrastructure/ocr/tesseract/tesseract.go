package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const (
	DefaultLanguages = "por+eng"
	// DefaultPSM assumes a single uniform block of text.
	DefaultPSM = 6
)

type Client struct {
	binary    string
	languages string
	psm       int
	timeout   time.Duration
}

func New(binary string) *Client {
	if binary == "" {
		binary = "tesseract"
	}
	return &Client{
		binary:    binary,
		languages: DefaultLanguages,
		psm:       DefaultPSM,
		timeout:   2 * time.Minute,
	}
}

func (c *Client) args() []string {
	return []string{
		"stdin", "stdout",
		"-l", c.languages,
		"--psm", fmt.Sprint(c.psm),
		"--dpi", "300",
	}
}

// Recognize pipes an encoded image through tesseract and returns its text.
func (c *Client) Recognize(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.binary, c.args()...)
	cmd.Stdin = bytes.NewReader(image)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract failed: %w; out=%s", err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}
