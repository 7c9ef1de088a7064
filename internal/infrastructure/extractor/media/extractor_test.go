package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type sttFake struct {
	paths []string
	err   error
}

func (f *sttFake) Transcribe(_ context.Context, path string) (string, error) {
	f.paths = append(f.paths, path)
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	if f.err != nil {
		return "", f.err
	}
	return " audiência de conciliação ", nil
}

type tracksFake struct {
	hasAudio  bool
	extracted []string
}

func (f *tracksFake) HasAudio(context.Context, string) (bool, error) {
	return f.hasAudio, nil
}

func (f *tracksFake) ExtractAudio(_ context.Context, in, wav string) error {
	f.extracted = append(f.extracted, in)
	return os.WriteFile(wav, []byte("RIFF"), 0o644)
}

func TestAudioExtractTranscribesAndCleansUp(t *testing.T) {
	dir := t.TempDir()
	stt := &sttFake{}
	e := NewAudioExtractor(stt, &tracksFake{}, dir, nil)

	got := e.Extract(context.Background(), []byte("RIFF...."), "WAV")
	if got != "audiência de conciliação" {
		t.Fatalf("unexpected transcript %q", got)
	}
	if len(stt.paths) != 1 || filepath.Ext(stt.paths[0]) != ".wav" {
		t.Fatalf("unexpected transcribed paths: %v", stt.paths)
	}
	assertEmptyDir(t, dir)
}

func TestAudioExtractConvertsUnsupportedContainer(t *testing.T) {
	dir := t.TempDir()
	stt := &sttFake{}
	tracks := &tracksFake{}
	e := NewAudioExtractor(stt, tracks, dir, nil)

	if got := e.Extract(context.Background(), []byte("m4a"), ".m4a"); got == "" {
		t.Fatalf("expected transcript")
	}
	if len(tracks.extracted) != 1 || filepath.Ext(tracks.extracted[0]) != ".m4a" {
		t.Fatalf("expected conversion of m4a input, got %v", tracks.extracted)
	}
	assertEmptyDir(t, dir)
}

func TestAudioExtractFailureReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	e := NewAudioExtractor(&sttFake{err: errors.New("quota")}, nil, dir, nil)
	if got := e.Extract(context.Background(), []byte("x"), ".mp3"); got != "" {
		t.Fatalf("expected empty transcript, got %q", got)
	}
	assertEmptyDir(t, dir)
}

func TestVideoWithoutAudioReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	stt := &sttFake{}
	tracks := &tracksFake{hasAudio: false}
	e := NewVideoExtractor(NewAudioExtractor(stt, tracks, dir, nil), tracks, dir, nil)

	if got := e.Extract(context.Background(), []byte("mp4"), ".mp4"); got != "" {
		t.Fatalf("expected empty text, got %q", got)
	}
	if len(stt.paths) != 0 {
		t.Fatalf("speech provider should not be called")
	}
	assertEmptyDir(t, dir)
}

func TestVideoTranscribesAudioTrack(t *testing.T) {
	dir := t.TempDir()
	stt := &sttFake{}
	tracks := &tracksFake{hasAudio: true}
	e := NewVideoExtractor(NewAudioExtractor(stt, tracks, dir, nil), tracks, dir, nil)

	if got := e.Extract(context.Background(), []byte("mp4"), ".mp4"); got != "audiência de conciliação" {
		t.Fatalf("unexpected transcript %q", got)
	}
	if len(stt.paths) != 1 || filepath.Ext(stt.paths[0]) != ".wav" {
		t.Fatalf("expected wav transcription, got %v", stt.paths)
	}
	assertEmptyDir(t, dir)
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected temp files removed, found %d entries", len(entries))
	}
}
