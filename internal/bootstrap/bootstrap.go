package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/probe365/advocacia-ia-sub000/internal/config"
	"github.com/probe365/advocacia-ia-sub000/internal/core/domain"
	"github.com/probe365/advocacia-ia-sub000/internal/core/ports"
	"github.com/probe365/advocacia-ia-sub000/internal/core/usecase"
	"github.com/probe365/advocacia-ia-sub000/internal/infrastructure/cache/digest"
	"github.com/probe365/advocacia-ia-sub000/internal/infrastructure/chunking"
	imageextractor "github.com/probe365/advocacia-ia-sub000/internal/infrastructure/extractor/image"
	mediaextractor "github.com/probe365/advocacia-ia-sub000/internal/infrastructure/extractor/media"
	pdfextractor "github.com/probe365/advocacia-ia-sub000/internal/infrastructure/extractor/pdf"
	textextractor "github.com/probe365/advocacia-ia-sub000/internal/infrastructure/extractor/text"
	"github.com/probe365/advocacia-ia-sub000/internal/infrastructure/extractor/textfix"
	"github.com/probe365/advocacia-ia-sub000/internal/infrastructure/gcp"
	"github.com/probe365/advocacia-ia-sub000/internal/infrastructure/llm/embedcache"
	"github.com/probe365/advocacia-ia-sub000/internal/infrastructure/llm/langchain"
	"github.com/probe365/advocacia-ia-sub000/internal/infrastructure/llm/ollama"
	"github.com/probe365/advocacia-ia-sub000/internal/infrastructure/llm/prompts"
	"github.com/probe365/advocacia-ia-sub000/internal/infrastructure/mediatools"
	"github.com/probe365/advocacia-ia-sub000/internal/infrastructure/ner"
	"github.com/probe365/advocacia-ia-sub000/internal/infrastructure/ocr/tesseract"
	"github.com/probe365/advocacia-ia-sub000/internal/infrastructure/queue/nats"
	"github.com/probe365/advocacia-ia-sub000/internal/infrastructure/repository/postgres"
	"github.com/probe365/advocacia-ia-sub000/internal/infrastructure/resilience"
	"github.com/probe365/advocacia-ia-sub000/internal/infrastructure/storage/localfs"
	"github.com/probe365/advocacia-ia-sub000/internal/infrastructure/storage/s3store"
	"github.com/probe365/advocacia-ia-sub000/internal/infrastructure/vector/filestore"
	"github.com/probe365/advocacia-ia-sub000/internal/infrastructure/vector/qdrant"
)

// Options selects optional collaborators. The worker and `casectl enqueue`
// need the queue; the other commands run without a broker.
type Options struct {
	Queue bool
}

type App struct {
	Config    config.Config
	Workspace *usecase.Workspace
	Queue     ports.UploadQueue

	closers []func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{Config: cfg}
	ready := false
	defer func() {
		if !ready {
			app.Close()
		}
	}()

	executor := resilience.NewExecutor(
		resilience.DefaultConfig().
			WithAttempts(cfg.ResilienceRetryMaxAttempts).
			WithBreaker(cfg.ResilienceBreakerEnabled).
			WithOperationAttempts("ollama.generate", 2).
			WithOperationAttempts("langchain.generate", 2),
		logger,
	)

	model, embedder, err := newModels(cfg, executor)
	if err != nil {
		return nil, err
	}
	if cfg.EmbedCacheSize > 0 {
		cached, err := embedcache.New(embedder, cfg.EmbedCacheSize)
		if err != nil {
			return nil, err
		}
		embedder = cached
	}

	stores, err := newStoreFactory(cfg, embedder, executor)
	if err != nil {
		return nil, err
	}

	extractors, err := app.newExtractors(ctx, cfg, executor, logger)
	if err != nil {
		return nil, err
	}

	registry, err := prompts.Load()
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	chains := usecase.NewChainSet(registry, model, logger)

	uploads, err := newUploadStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	wsCfg := usecase.WorkspaceConfig{
		BaseDir:  cfg.DataBasePath,
		Stores:   stores,
		Ingest:   usecase.NewIngestionHandler(extractors, chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap, logger), ner.NewTagger(), textfix.Repairer{}, logger),
		Chains:   chains,
		Petition: usecase.NewPetitionGenerator(chains, prompts.PetitionTemplate(), logger),
		Uploads:  uploads,
		NewCache: func(dir string) ports.DigestCache {
			return digest.New(dir, logger)
		},
		CaseK:           cfg.RetrieverCaseK,
		KBK:             cfg.RetrieverKBK,
		EmentaK:         cfg.RetrieverEmentaK,
		SummaryMaxWords: cfg.SummaryMaxWords,
		EmentaShared:    cfg.EmentaKBShared,
		Logger:          logger,
	}

	if cfg.PostgresDSN != "" {
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		app.closers = append(app.closers, func() { _ = db.Close() })
		repo := postgres.NewCadastralRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		wsCfg.Cadastral = repo
	}

	if opts.Queue {
		queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: executor,
			Logger:             logger,
		})
		if err != nil {
			return nil, fmt.Errorf("init upload queue: %w", err)
		}
		app.closers = append(app.closers, queue.Close)
		app.Queue = queue
		wsCfg.Queue = queue
	}

	app.Workspace = usecase.NewWorkspace(wsCfg)
	logger.Info("pipeline_ready",
		"llm_provider", cfg.LLMProvider,
		"vector_backend", cfg.VectorBackend,
		"ocr_provider", cfg.OCRProvider,
		"stt_provider", cfg.STTProvider,
		"upload_storage", cfg.UploadStorage,
		"cadastral", cfg.PostgresDSN != "",
	)
	ready = true
	return app, nil
}

// Close releases collaborators in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func newModels(cfg config.Config, executor *resilience.Executor) (ports.ChatModel, ports.Embedder, error) {
	switch cfg.LLMProvider {
	case "ollama":
		client := ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.Options{
			ResilienceExecutor: executor,
		})
		return ollama.NewChatModel(client), ollama.NewEmbedder(client), nil
	case "openai":
		openaiCfg := langchain.OpenAIConfig{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			Model:      cfg.OpenAIModel,
			EmbedModel: cfg.OpenAIEmbedModel,
		}
		model, err := langchain.NewOpenAIChatModel(openaiCfg, executor)
		if err != nil {
			return nil, nil, err
		}
		embedder, err := langchain.NewOpenAIEmbedder(openaiCfg, executor)
		if err != nil {
			return nil, nil, err
		}
		return model, embedder, nil
	default:
		return nil, nil, domain.WrapError(domain.ErrInvalidInput, "select llm provider", fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider))
	}
}

func newStoreFactory(cfg config.Config, embedder ports.Embedder, executor *resilience.Executor) (ports.VectorStoreFactory, error) {
	metric := domain.DistanceMetric(cfg.VectorDistance)
	if metric != domain.DistanceL2 && metric != domain.DistanceCosine {
		return nil, domain.WrapError(domain.ErrInvalidInput, "select vector distance", fmt.Errorf("unknown VECTOR_DISTANCE %q", cfg.VectorDistance))
	}
	switch cfg.VectorBackend {
	case "file":
		return filestore.NewFactory(metric, embedder), nil
	case "qdrant":
		client := qdrant.New(cfg.QdrantURL, qdrant.Options{ResilienceExecutor: executor})
		return qdrant.NewFactory(client, embedder), nil
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "select vector backend", fmt.Errorf("unknown VECTOR_BACKEND %q", cfg.VectorBackend))
	}
}

func (a *App) newExtractors(
	ctx context.Context,
	cfg config.Config,
	executor *resilience.Executor,
	logger *slog.Logger,
) (map[domain.MediaType]ports.TextExtractor, error) {
	tools := mediatools.New(mediatools.Config{
		PdftoppmPath: cfg.PdftoppmPath,
		FFmpegPath:   cfg.FFmpegPath,
		FFprobePath:  cfg.FFprobePath,
		WorkDir:      cfg.MediaWorkDir,
	})

	var ocr ports.OCR
	switch cfg.OCRProvider {
	case "tesseract":
		ocr = tesseract.New(cfg.TesseractPath)
	case "vision":
		vision, err := gcp.NewVisionOCR(ctx, executor)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = vision.Close() })
		ocr = vision
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "select ocr provider", fmt.Errorf("unknown OCR_PROVIDER %q", cfg.OCRProvider))
	}

	var stt ports.SpeechToText
	switch cfg.STTProvider {
	case "gcp":
		speech, err := gcp.NewSpeechToText(ctx, cfg.STTLanguage, executor)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = speech.Close() })
		stt = speech
	case "none", "":
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "select stt provider", fmt.Errorf("unknown STT_PROVIDER %q", cfg.STTProvider))
	}

	pdf := pdfextractor.NewExtractor(tools, ocr, cfg.MediaWorkDir, logger)
	audio := mediaextractor.NewAudioExtractor(stt, tools, cfg.MediaWorkDir, logger)
	return map[domain.MediaType]ports.TextExtractor{
		domain.MediaPDF:   pdf,
		domain.MediaImage: imageextractor.NewExtractor(ocr, pdf, logger),
		domain.MediaText:  textextractor.NewExtractor(),
		domain.MediaAudio: audio,
		domain.MediaVideo: mediaextractor.NewVideoExtractor(audio, tools, cfg.MediaWorkDir, logger),
	}, nil
}

func newUploadStorage(ctx context.Context, cfg config.Config) (ports.ObjectStorage, error) {
	switch cfg.UploadStorage {
	case "local":
		storage, err := localfs.New(cfg.DataBasePath)
		if err != nil {
			return nil, fmt.Errorf("init upload storage: %w", err)
		}
		return storage, nil
	case "s3":
		return s3store.New(ctx, s3store.Config{
			Bucket:    cfg.AWSS3Bucket,
			Region:    cfg.AWSRegion,
			AccessKey: cfg.AWSAccessKeyID,
			SecretKey: cfg.AWSSecretAccessKey,
		})
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "select upload storage", fmt.Errorf("unknown UPLOAD_STORAGE %q", cfg.UploadStorage))
	}
}
