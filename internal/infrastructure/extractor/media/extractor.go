package media

import (
	"context"
	"log/slog"
	"strings"

	"github.com/probe365/advocacia-ia-sub000/internal/core/ports"
	"github.com/probe365/advocacia-ia-sub000/internal/infrastructure/mediatools"
)

// nativeAudio lists containers the speech provider accepts without
// conversion.
var nativeAudio = map[string]bool{
	".wav":  true,
	".flac": true,
	".mp3":  true,
	".ogg":  true,
	".opus": true,
}

// AudioExtractor transcribes audio uploads through the speech collaborator.
type AudioExtractor struct {
	stt     ports.SpeechToText
	tracks  ports.AudioTrackExtractor
	workDir string
	logger  *slog.Logger
}

func NewAudioExtractor(stt ports.SpeechToText, tracks ports.AudioTrackExtractor, workDir string, logger *slog.Logger) *AudioExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &AudioExtractor{
		stt:     stt,
		tracks:  tracks,
		workDir: workDir,
		logger:  logger.With("component", "extractor", "media", "audio"),
	}
}

func (e *AudioExtractor) Extract(ctx context.Context, data []byte, suffix string) string {
	if len(data) == 0 {
		return ""
	}
	if e.stt == nil {
		e.logger.Warn("extract_failed", "error", "speech provider not configured")
		return ""
	}
	suffix = normalizeSuffix(suffix)

	path, cleanup, err := mediatools.WriteTempFile(e.workDir, suffix, data)
	if err != nil {
		e.logger.Warn("extract_failed", "stage", "temp_file", "error", err)
		return ""
	}
	defer cleanup()

	if !nativeAudio[suffix] && e.tracks != nil {
		wav, cleanupWav, err := mediatools.TempPath(e.workDir, ".wav")
		if err != nil {
			e.logger.Warn("extract_failed", "stage", "temp_file", "error", err)
			return ""
		}
		defer cleanupWav()
		if err := e.tracks.ExtractAudio(ctx, path, wav); err != nil {
			e.logger.Warn("extract_failed", "stage", "convert", "suffix", suffix, "error", err)
			return ""
		}
		path = wav
	}
	return e.transcribe(ctx, path)
}

func (e *AudioExtractor) transcribe(ctx context.Context, path string) string {
	text, err := e.stt.Transcribe(ctx, path)
	if err != nil {
		e.logger.Warn("extract_failed", "stage", "transcribe", "error", err)
		return ""
	}
	return strings.TrimSpace(text)
}

// VideoExtractor transcribes the audio track of a video upload.
type VideoExtractor struct {
	audio   *AudioExtractor
	tracks  ports.AudioTrackExtractor
	workDir string
	logger  *slog.Logger
}

func NewVideoExtractor(audio *AudioExtractor, tracks ports.AudioTrackExtractor, workDir string, logger *slog.Logger) *VideoExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &VideoExtractor{
		audio:   audio,
		tracks:  tracks,
		workDir: workDir,
		logger:  logger.With("component", "extractor", "media", "video"),
	}
}

func (e *VideoExtractor) Extract(ctx context.Context, data []byte, suffix string) string {
	if len(data) == 0 || e.tracks == nil || e.audio == nil || e.audio.stt == nil {
		return ""
	}
	path, cleanup, err := mediatools.WriteTempFile(e.workDir, normalizeSuffix(suffix), data)
	if err != nil {
		e.logger.Warn("extract_failed", "stage", "temp_file", "error", err)
		return ""
	}
	defer cleanup()

	hasAudio, err := e.tracks.HasAudio(ctx, path)
	if err != nil {
		e.logger.Warn("extract_failed", "stage", "probe", "error", err)
		return ""
	}
	if !hasAudio {
		e.logger.Info("video_without_audio")
		return ""
	}

	wav, cleanupWav, err := mediatools.TempPath(e.workDir, ".wav")
	if err != nil {
		e.logger.Warn("extract_failed", "stage", "temp_file", "error", err)
		return ""
	}
	defer cleanupWav()

	if err := e.tracks.ExtractAudio(ctx, path, wav); err != nil {
		e.logger.Warn("extract_failed", "stage", "extract_audio", "error", err)
		return ""
	}
	return e.audio.transcribe(ctx, wav)
}

func normalizeSuffix(suffix string) string {
	suffix = strings.ToLower(strings.TrimSpace(suffix))
	if suffix != "" && !strings.HasPrefix(suffix, ".") {
		suffix = "." + suffix
	}
	return suffix
}
