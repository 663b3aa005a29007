// Package modelstore persists trained delay models as JSON artifacts and
// loads them back for serving.
package modelstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/delaycast/delaycast/internal/classifier"
	"github.com/delaycast/delaycast/internal/features"
)

// ArtifactVersion is the current artifact schema version. Loading an
// artifact written with a different version fails rather than guessing.
const ArtifactVersion = 1

// Store errors.
var (
	// ErrNotFound is returned when no artifact has been saved yet.
	ErrNotFound = errors.New("model artifact not found")

	// ErrIncompatible is returned for artifacts that cannot serve the
	// current feature schema.
	ErrIncompatible = errors.New("model artifact is incompatible")
)

// Artifact is the persisted form of a trained model, along with enough
// metadata to audit where it came from.
type Artifact struct {
	Version      int                    `json:"version"`
	Model        classifier.ModelParams `json:"model"`
	Seed         int64                  `json:"seed"`
	TrainedAt    time.Time              `json:"trained_at"`
	TrainingRows int                    `json:"training_rows"`
	Metrics      *classifier.Evaluation `json:"metrics,omitempty"`
}

// Validate checks that the artifact can serve the current feature schema.
func (a *Artifact) Validate() error {
	if a.Version != ArtifactVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrIncompatible, a.Version)
	}

	want := features.TopFeatures()
	if len(a.Model.Features) != len(want) {
		return fmt.Errorf("%w: expected %d features, got %d", ErrIncompatible, len(want), len(a.Model.Features))
	}
	for i, name := range want {
		if a.Model.Features[i] != name {
			return fmt.Errorf("%w: feature %d is %q, expected %q", ErrIncompatible, i, a.Model.Features[i], name)
		}
	}
	if len(a.Model.Coefficients) != len(want) {
		return fmt.Errorf("%w: expected %d coefficients, got %d", ErrIncompatible, len(want), len(a.Model.Coefficients))
	}

	return nil
}

// Store defines the interface for model artifact persistence.
type Store interface {
	// Load retrieves the current artifact. Returns ErrNotFound when no
	// artifact has been saved.
	Load(ctx context.Context) (*Artifact, error)

	// Save persists the artifact, replacing any previous one.
	Save(ctx context.Context, artifact *Artifact) error
}

// FileStoreConfig holds configuration for the file-backed store.
type FileStoreConfig struct {
	// Path is the artifact location on disk.
	Path string

	Logger zerolog.Logger

	// MaxRetries bounds transient read retries. Default: 3.
	MaxRetries uint64

	// RetryInterval is the initial backoff between read retries.
	// Default: 100ms.
	RetryInterval time.Duration
}

// FileStore persists the artifact as a single JSON file. Saves go through a
// temp file and rename so that readers never observe a half-written
// artifact.
type FileStore struct {
	path          string
	logger        zerolog.Logger
	maxRetries    uint64
	retryInterval time.Duration
}

// NewFileStore creates a file-backed artifact store.
func NewFileStore(cfg FileStoreConfig) *FileStore {
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}
	retryInterval := cfg.RetryInterval
	if retryInterval == 0 {
		retryInterval = 100 * time.Millisecond
	}

	return &FileStore{
		path:          cfg.Path,
		logger:        cfg.Logger,
		maxRetries:    maxRetries,
		retryInterval: retryInterval,
	}
}

// Path returns the artifact location on disk.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads and validates the artifact. Transient read failures are
// retried with exponential backoff; a missing, malformed or incompatible
// artifact fails immediately.
func (s *FileStore) Load(ctx context.Context) (*Artifact, error) {
	var artifact *Artifact

	operation := func() error {
		data, err := os.ReadFile(s.path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return backoff.Permanent(ErrNotFound)
			}
			return err
		}

		var a Artifact
		if err := json.Unmarshal(data, &a); err != nil {
			return backoff.Permanent(fmt.Errorf("malformed model artifact: %w", err))
		}
		if err := a.Validate(); err != nil {
			return backoff.Permanent(err)
		}

		artifact = &a
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.retryInterval
	bo.MaxElapsedTime = 0

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, s.maxRetries), ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to load model artifact from %s: %w", s.path, err)
	}

	s.logger.Debug().
		Str("path", s.path).
		Time("trained_at", artifact.TrainedAt).
		Int("training_rows", artifact.TrainingRows).
		Msg("loaded model artifact")

	return artifact, nil
}

// Save validates and writes the artifact atomically.
func (s *FileStore) Save(_ context.Context, artifact *Artifact) error {
	if err := artifact.Validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode model artifact: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".artifact-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp artifact: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write model artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp artifact: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to set artifact permissions: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace model artifact: %w", err)
	}

	s.logger.Info().
		Str("path", s.path).
		Int("training_rows", artifact.TrainingRows).
		Msg("saved model artifact")

	return nil
}
