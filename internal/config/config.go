package config

import (
	"os"
	"strconv"
)

type Config struct {
	LogLevel string

	DataBasePath   string
	EmentaKBShared bool

	ChunkSize    int
	ChunkOverlap int

	RetrieverCaseK   int
	RetrieverKBK     int
	RetrieverEmentaK int
	SummaryMaxWords  int

	LLMProvider      string
	OllamaURL        string
	OllamaGenModel   string
	OllamaEmbedModel string

	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OpenAIModel      string
	OpenAIEmbedModel string

	EmbedCacheSize int

	VectorBackend  string
	VectorDistance string
	QdrantURL      string

	OCRProvider   string
	TesseractPath string

	STTProvider string
	STTLanguage string

	FFmpegPath   string
	FFprobePath  string
	PdftoppmPath string
	MediaWorkDir string

	UploadStorage      string
	AWSS3Bucket        string
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string

	NATSURL     string
	NATSSubject string

	PostgresDSN string

	ResilienceRetryMaxAttempts int
	ResilienceBreakerEnabled   bool

	ClassifierPort           string
	ClassifierArtifactsDir   string
	ClassifierRateLimitRPS   float64
	ClassifierRateLimitBurst int
	ClassifierMaxInFlight    int
	ClassifierInFlightWaitMS int

	WorkerMetricsPort string
}

func Load() Config {
	return Config{
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		DataBasePath:   mustEnv("DATA_BASE_PATH", "./data"),
		EmentaKBShared: mustEnvBool("EMENTA_KB_SHARED", false),

		ChunkSize:    mustEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap: mustEnvInt("CHUNK_OVERLAP", 200),

		RetrieverCaseK:   mustEnvInt("RETRIEVER_CASE_K", 7),
		RetrieverKBK:     mustEnvInt("RETRIEVER_KB_K", 3),
		RetrieverEmentaK: mustEnvInt("RETRIEVER_EMENTA_K", 5),
		SummaryMaxWords:  mustEnvInt("SUMMARY_MAX_WORDS", 300),

		LLMProvider:      mustEnv("LLM_PROVIDER", "ollama"),
		OllamaURL:        mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaGenModel:   mustEnv("OLLAMA_GEN_MODEL", "llama3.1:8b"),
		OllamaEmbedModel: mustEnv("OLLAMA_EMBED_MODEL", "nomic-embed-text"),

		OpenAIAPIKey:     mustEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:    mustEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:      mustEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIEmbedModel: mustEnv("OPENAI_EMBED_MODEL", "text-embedding-3-small"),

		EmbedCacheSize: mustEnvInt("EMBED_CACHE_SIZE", 2048),

		VectorBackend:  mustEnv("VECTOR_BACKEND", "file"),
		VectorDistance: mustEnv("VECTOR_DISTANCE", "l2"),
		QdrantURL:      mustEnv("QDRANT_URL", "http://localhost:6333"),

		OCRProvider:   mustEnv("OCR_PROVIDER", "tesseract"),
		TesseractPath: mustEnv("TESSERACT_PATH", "tesseract"),

		STTProvider: mustEnv("STT_PROVIDER", "none"),
		STTLanguage: mustEnv("STT_LANGUAGE", "pt-BR"),

		FFmpegPath:   mustEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:  mustEnv("FFPROBE_PATH", "ffprobe"),
		PdftoppmPath: mustEnv("PDFTOPPM_PATH", "pdftoppm"),
		MediaWorkDir: mustEnv("MEDIA_WORK_DIR", os.TempDir()),

		UploadStorage:      mustEnv("UPLOAD_STORAGE", "local"),
		AWSS3Bucket:        mustEnv("AWS_S3_BUCKET", ""),
		AWSRegion:          mustEnv("AWS_REGION", "sa-east-1"),
		AWSAccessKeyID:     mustEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: mustEnv("AWS_SECRET_ACCESS_KEY", ""),

		NATSURL:     mustEnv("NATS_URL", "nats://localhost:4222"),
		NATSSubject: mustEnv("NATS_SUBJECT", "cases.uploads"),

		PostgresDSN: mustEnv("POSTGRES_DSN", ""),

		ResilienceRetryMaxAttempts: mustEnvInt("RESILIENCE_RETRY_MAX_ATTEMPTS", 3),
		ResilienceBreakerEnabled:   mustEnvBool("RESILIENCE_BREAKER_ENABLED", true),

		ClassifierPort:           mustEnv("CLASSIFIER_PORT", "8000"),
		ClassifierArtifactsDir:   mustEnv("CLASSIFIER_ARTIFACTS_DIR", "./classifier_artifacts"),
		ClassifierRateLimitRPS:   mustEnvFloat("CLASSIFIER_RATE_LIMIT_RPS", 20),
		ClassifierRateLimitBurst: mustEnvInt("CLASSIFIER_RATE_LIMIT_BURST", 40),
		ClassifierMaxInFlight:    mustEnvInt("CLASSIFIER_MAX_IN_FLIGHT", 8),
		ClassifierInFlightWaitMS: mustEnvInt("CLASSIFIER_IN_FLIGHT_WAIT_MS", 250),

		WorkerMetricsPort: mustEnv("WORKER_METRICS_PORT", "9090"),
	}
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}
