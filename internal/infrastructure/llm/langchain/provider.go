package langchain

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/probe365/advocacia-ia-sub000/internal/infrastructure/resilience"
)

// OpenAIConfig targets the OpenAI API or any compatible endpoint.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	EmbedModel string
}

func (c OpenAIConfig) options() []openai.Option {
	opts := []openai.Option{}
	if c.Model != "" {
		opts = append(opts, openai.WithModel(c.Model))
	}
	if c.EmbedModel != "" {
		opts = append(opts, openai.WithEmbeddingModel(c.EmbedModel))
	}
	if c.APIKey != "" {
		opts = append(opts, openai.WithToken(c.APIKey))
	}
	if c.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(c.BaseURL))
	}
	return opts
}

// ChatModel adapts a langchaingo model to a single-prompt completion call.
type ChatModel struct {
	llm      llms.Model
	executor *resilience.Executor
}

func NewOpenAIChatModel(cfg OpenAIConfig, exec *resilience.Executor) (*ChatModel, error) {
	client, err := openai.New(cfg.options()...)
	if err != nil {
		return nil, fmt.Errorf("init openai chat client: %w", err)
	}
	return NewChatModel(client, exec), nil
}

func NewChatModel(model llms.Model, exec *resilience.Executor) *ChatModel {
	return &ChatModel{llm: model, executor: exec}
}

func (m *ChatModel) Complete(ctx context.Context, prompt string) (string, error) {
	var out string
	err := resilience.Call(ctx, m.executor, "langchain.generate", func(callCtx context.Context) error {
		completion, err := llms.GenerateFromSinglePrompt(callCtx, m.llm, prompt)
		if err != nil {
			return err
		}
		out = completion
		return nil
	}, resilience.ClassifyTransport)
	if err != nil {
		return "", resilience.External("langchain generate", err, resilience.ClassifyTransport)
	}
	return strings.TrimSpace(out), nil
}

// Embedder adapts a langchaingo embedder.
type Embedder struct {
	impl     embeddings.Embedder
	executor *resilience.Executor
}

func NewOpenAIEmbedder(cfg OpenAIConfig, exec *resilience.Executor) (*Embedder, error) {
	client, err := openai.New(cfg.options()...)
	if err != nil {
		return nil, fmt.Errorf("init openai embedding client: %w", err)
	}
	impl, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("construct openai embedder: %w", err)
	}
	return NewEmbedder(impl, exec), nil
}

func NewEmbedder(impl embeddings.Embedder, exec *resilience.Executor) *Embedder {
	return &Embedder{impl: impl, executor: exec}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var out [][]float32
	err := resilience.Call(ctx, e.executor, "langchain.embed", func(callCtx context.Context) error {
		vectors, err := e.impl.EmbedDocuments(callCtx, texts)
		if err != nil {
			return err
		}
		out = vectors
		return nil
	}, resilience.ClassifyTransport)
	if err != nil {
		return nil, resilience.External("langchain embed", err, resilience.ClassifyTransport)
	}
	if len(out) != len(texts) {
		return nil, fmt.Errorf("langchain embed: vectors/texts mismatch: %d/%d", len(out), len(texts))
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := resilience.Call(ctx, e.executor, "langchain.embed_query", func(callCtx context.Context) error {
		vector, err := e.impl.EmbedQuery(callCtx, text)
		if err != nil {
			return err
		}
		out = vector
		return nil
	}, resilience.ClassifyTransport)
	if err != nil {
		return nil, resilience.External("langchain embed query", err, resilience.ClassifyTransport)
	}
	return out, nil
}
