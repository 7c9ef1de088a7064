package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/probe365/advocacia-ia-sub000/internal/core/domain"
)

// Artifact file names inside the classifier directory.
const (
	ConfigFile       = "config.json"
	VocabFile        = "vocab.json"
	LabelEncoderFile = "label_encoder.json"
	WordVectorsFile  = "w2v.txt"
	BestModelFile    = "best_model.safetensors"
	ModelFile        = "model.safetensors"
	IndexFile        = "semantic_index.gob"
)

// ModelConfig is the architecture saved next to the weights at training time.
type ModelConfig struct {
	EmbeddingDim  int     `json:"embedding_dim"`
	HiddenDim     int     `json:"hidden_dim"`
	NumLayers     int     `json:"num_layers"`
	Dropout       float64 `json:"dropout"`
	MaxLen        int     `json:"max_len"`
	Bidirectional *bool   `json:"bidirectional,omitempty"`
	PadToken      string  `json:"pad_token"`
	UnkToken      string  `json:"unk_token"`
	Seed          uint64  `json:"seed"`
}

func (c ModelConfig) directions() int {
	if c.Bidirectional != nil && !*c.Bidirectional {
		return 1
	}
	return 2
}

func (c ModelConfig) validate() error {
	switch {
	case c.EmbeddingDim <= 0:
		return errors.New("embedding_dim must be positive")
	case c.HiddenDim <= 0:
		return errors.New("hidden_dim must be positive")
	case c.NumLayers <= 0:
		return errors.New("num_layers must be positive")
	case c.MaxLen <= 0:
		return errors.New("max_len must be positive")
	}
	return nil
}

// Artifacts is the decoded content of a classifier directory.
type Artifacts struct {
	Config  ModelConfig
	Vocab   map[string]int
	Labels  []string
	Vectors map[string][]float32
	Weights map[string]Tensor
}

// LoadArtifacts reads every required file. Any missing or malformed file
// fails with ErrClassifierColdStart.
func LoadArtifacts(dir string) (*Artifacts, error) {
	coldStart := func(err error) error {
		return domain.WrapError(domain.ErrClassifierColdStart, "load classifier artifacts", err)
	}

	var a Artifacts
	if err := readJSON(filepath.Join(dir, ConfigFile), &a.Config); err != nil {
		return nil, coldStart(err)
	}
	if a.Config.PadToken == "" {
		a.Config.PadToken = "<PAD>"
	}
	if a.Config.UnkToken == "" {
		a.Config.UnkToken = "<UNK>"
	}
	if a.Config.Seed == 0 {
		a.Config.Seed = 42
	}
	if err := a.Config.validate(); err != nil {
		return nil, coldStart(fmt.Errorf("%s: %w", ConfigFile, err))
	}

	if err := readJSON(filepath.Join(dir, VocabFile), &a.Vocab); err != nil {
		return nil, coldStart(err)
	}
	if _, ok := a.Vocab[a.Config.UnkToken]; !ok {
		return nil, coldStart(fmt.Errorf("%s: unknown token %q has no index", VocabFile, a.Config.UnkToken))
	}

	var encoder struct {
		Classes []string `json:"classes"`
	}
	if err := readJSON(filepath.Join(dir, LabelEncoderFile), &encoder); err != nil {
		return nil, coldStart(err)
	}
	if len(encoder.Classes) == 0 {
		return nil, coldStart(fmt.Errorf("%s: no classes", LabelEncoderFile))
	}
	a.Labels = encoder.Classes

	vectors, err := ReadWord2Vec(filepath.Join(dir, WordVectorsFile))
	if err != nil {
		return nil, coldStart(err)
	}
	a.Vectors = vectors

	weightsPath := filepath.Join(dir, BestModelFile)
	if _, err := os.Stat(weightsPath); err != nil {
		weightsPath = filepath.Join(dir, ModelFile)
	}
	weights, err := ReadSafetensors(weightsPath)
	if err != nil {
		return nil, coldStart(err)
	}
	a.Weights = weights
	return &a, nil
}

func readJSON(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}
