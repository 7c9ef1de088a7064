package gcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/probe365/advocacia-ia-sub000/internal/infrastructure/resilience"
)

type recognizeFunc func(ctx context.Context, req *speechpb.LongRunningRecognizeRequest) (*speechpb.LongRunningRecognizeResponse, error)

// SpeechToText transcribes audio files with Cloud Speech long-running
// recognition.
type SpeechToText struct {
	recognize recognizeFunc
	close     func() error
	language  string
	executor  *resilience.Executor
}

func NewSpeechToText(ctx context.Context, language string, executor *resilience.Executor) (*SpeechToText, error) {
	client, err := speech.NewClient(ctx, ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	if language == "" {
		language = "pt-BR"
	}
	return &SpeechToText{
		recognize: func(ctx context.Context, req *speechpb.LongRunningRecognizeRequest) (*speechpb.LongRunningRecognizeResponse, error) {
			op, err := client.LongRunningRecognize(ctx, req)
			if err != nil {
				return nil, err
			}
			return op.Wait(ctx)
		},
		close:    client.Close,
		language: language,
		executor: executor,
	}, nil
}

func (s *SpeechToText) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

func (s *SpeechToText) Transcribe(ctx context.Context, path string) (string, error) {
	audio, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read audio: %w", err)
	}
	if len(audio) == 0 {
		return "", nil
	}
	req := &speechpb.LongRunningRecognizeRequest{
		Config: recognitionConfig(filepath.Ext(path), s.language),
		Audio:  &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Content{Content: audio}},
	}

	var resp *speechpb.LongRunningRecognizeResponse
	err = resilience.Call(ctx, s.executor, "speech.recognize", func(callCtx context.Context) error {
		var callErr error
		resp, callErr = s.recognize(callCtx, req)
		return callErr
	}, classifyRPC)
	if err != nil {
		return "", resilience.External("speech recognize", err, classifyRPC)
	}
	return joinTranscript(resp), nil
}

func recognitionConfig(ext, language string) *speechpb.RecognitionConfig {
	cfg := &speechpb.RecognitionConfig{
		Encoding:                   inferSpeechEncoding(ext),
		LanguageCode:               language,
		EnableAutomaticPunctuation: true,
	}
	switch cfg.Encoding {
	case speechpb.RecognitionConfig_OGG_OPUS:
		cfg.SampleRateHertz = 48000
	case speechpb.RecognitionConfig_MP3:
		cfg.SampleRateHertz = 16000
	}
	return cfg
}

// inferSpeechEncoding leaves WAV and FLAC to header detection.
func inferSpeechEncoding(ext string) speechpb.RecognitionConfig_AudioEncoding {
	switch strings.ToLower(ext) {
	case ".wav":
		return speechpb.RecognitionConfig_LINEAR16
	case ".flac":
		return speechpb.RecognitionConfig_FLAC
	case ".mp3":
		return speechpb.RecognitionConfig_MP3
	case ".ogg", ".opus":
		return speechpb.RecognitionConfig_OGG_OPUS
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	}
}

func joinTranscript(resp *speechpb.LongRunningRecognizeResponse) string {
	if resp == nil {
		return ""
	}
	parts := make([]string, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r == nil || len(r.Alternatives) == 0 || r.Alternatives[0] == nil {
			continue
		}
		if t := strings.TrimSpace(r.Alternatives[0].Transcript); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
