// Package chunkstore persists a dataset's rows as a manifest plus a sequence
// of size-bounded chunk documents and reassembles them on read.
//
// Writes follow a small saga: the manifest is written pending, every chunk is
// written, then the manifest is committed. Readers only see committed
// manifests, and SweepPending removes writes that never committed.
package chunkstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nihal-ranchod/ARMMI-pandasi/internal/tabular"
)

// SharedScope owns the admin-managed shared dataset pool. User datasets use
// the owner's user id as scope.
const SharedScope = "shared"

var (
	// ErrNotFound is returned by a Repository when a record does not exist.
	ErrNotFound = errors.New("record not found")

	ErrNotStored        = errors.New("dataset has no committed chunk data")
	ErrChunkMissing     = errors.New("dataset chunk missing")
	ErrRowCountMismatch = errors.New("reassembled row count does not match manifest")
	ErrDocumentTooLarge = errors.New("encoded chunk exceeds document size limit")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCommitted Status = "committed"
)

type Manifest struct {
	DatasetID   string
	OwnerScope  string
	TotalChunks int
	TotalRows   int
	ChunkSize   int
	Columns     []string
	Status      Status
	CreatedAt   time.Time
}

// Chunk holds one JSON-encoded slice of rows. Chunks are never updated.
type Chunk struct {
	DatasetID  string
	OwnerScope string
	Index      int
	RowCount   int
	Data       []byte
}

// Repository is the persistence the store needs. Get methods return
// ErrNotFound for missing records; deletes of missing records succeed.
type Repository interface {
	PutManifest(ctx context.Context, m *Manifest) error
	MarkCommitted(ctx context.Context, datasetID, scope string) error
	GetManifest(ctx context.Context, datasetID, scope string) (*Manifest, error)
	PutChunk(ctx context.Context, c *Chunk) error
	GetChunk(ctx context.Context, datasetID, scope string, index int) (*Chunk, error)
	DeleteManifest(ctx context.Context, datasetID, scope string) error
	DeleteChunks(ctx context.Context, datasetID, scope string) (int64, error)
	ListPending(ctx context.Context, olderThan time.Time) ([]Manifest, error)
}

type Store struct {
	repo        Repository
	logger      *zap.Logger
	targetBytes int64
	maxDocBytes int
	now         func() time.Time
}

type Option func(*Store)

func WithTargetBytes(n int64) Option {
	return func(s *Store) {
		if n > 0 {
			s.targetBytes = n
		}
	}
}

func WithMaxDocumentBytes(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxDocBytes = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(repo Repository, logger *zap.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		repo:        repo,
		logger:      logger,
		targetBytes: DefaultTargetBytes,
		maxDocBytes: DefaultMaxDocumentBytes,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save stores every row of f under datasetID and scope. Missing values are
// stored as "". On failure the partial write is removed before returning.
func (s *Store) Save(ctx context.Context, datasetID, scope string, f *tabular.Frame) (*Manifest, error) {
	records := f.Records()
	total := EstimateSize(records)
	size := SelectChunkSize(total, len(records), s.targetBytes)
	parts := Partition(records, size)

	s.logger.Info("Storing dataset chunks",
		zap.String("dataset_id", datasetID),
		zap.Int64("estimated_bytes", total),
		zap.Int("chunk_size", size),
		zap.Int("total_chunks", len(parts)),
	)

	m := &Manifest{
		DatasetID:   datasetID,
		OwnerScope:  scope,
		TotalChunks: len(parts),
		TotalRows:   len(records),
		ChunkSize:   size,
		Columns:     append([]string(nil), f.Columns...),
		Status:      StatusPending,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.PutManifest(ctx, m); err != nil {
		return nil, fmt.Errorf("writing manifest: %w", err)
	}

	for i, part := range parts {
		data, err := encodeRows(part)
		if err != nil {
			return nil, s.abort(ctx, m, fmt.Errorf("encoding chunk %d: %w", i, err))
		}
		if len(data) > s.maxDocBytes {
			return nil, s.abort(ctx, m, fmt.Errorf("chunk %d is %d bytes: %w", i, len(data), ErrDocumentTooLarge))
		}
		c := &Chunk{DatasetID: datasetID, OwnerScope: scope, Index: i, RowCount: len(part), Data: data}
		if err := s.repo.PutChunk(ctx, c); err != nil {
			return nil, s.abort(ctx, m, fmt.Errorf("writing chunk %d: %w", i, err))
		}
	}

	if err := s.repo.MarkCommitted(ctx, datasetID, scope); err != nil {
		return nil, s.abort(ctx, m, fmt.Errorf("committing manifest: %w", err))
	}
	m.Status = StatusCommitted
	return m, nil
}

func (s *Store) abort(ctx context.Context, m *Manifest, cause error) error {
	if _, err := s.Delete(context.WithoutCancel(ctx), m.DatasetID, m.OwnerScope); err != nil {
		s.logger.Warn("Failed to clean up partial dataset write",
			zap.String("dataset_id", m.DatasetID), zap.Error(err))
	}
	return cause
}

// Load reassembles a committed dataset. Missing chunks and row count drift
// are errors; no partial frame is returned.
func (s *Store) Load(ctx context.Context, datasetID, scope string) (*tabular.Frame, error) {
	m, err := s.repo.GetManifest(ctx, datasetID, scope)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotStored
	}
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	if m.Status != StatusCommitted {
		return nil, ErrNotStored
	}

	records := make([]tabular.Record, 0, m.TotalRows)
	for i := 0; i < m.TotalChunks; i++ {
		c, err := s.repo.GetChunk(ctx, datasetID, scope, i)
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrChunkMissing, ChunkKey(datasetID, i))
		}
		if err != nil {
			return nil, fmt.Errorf("reading chunk %d: %w", i, err)
		}
		rows, err := decodeRows(c.Data)
		if err != nil {
			return nil, fmt.Errorf("decoding chunk %d: %w", i, err)
		}
		records = append(records, rows...)
	}
	if len(records) != m.TotalRows {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrRowCountMismatch, len(records), m.TotalRows)
	}

	s.logger.Debug("Loaded dataset chunks",
		zap.String("dataset_id", datasetID),
		zap.Int("rows", len(records)),
		zap.Int("chunks", m.TotalChunks),
	)
	return tabular.FromRecords(m.Columns, records), nil
}

// Delete removes the manifest, then every chunk for the dataset and scope.
// Both steps run even if the first fails. It returns the chunk count removed.
func (s *Store) Delete(ctx context.Context, datasetID, scope string) (int64, error) {
	var errs []error
	if err := s.repo.DeleteManifest(ctx, datasetID, scope); err != nil {
		errs = append(errs, fmt.Errorf("deleting manifest: %w", err))
	}
	n, err := s.repo.DeleteChunks(ctx, datasetID, scope)
	if err != nil {
		errs = append(errs, fmt.Errorf("deleting chunks: %w", err))
	}
	s.logger.Info("Deleted dataset chunks", zap.String("dataset_id", datasetID), zap.Int64("chunks", n))
	return n, errors.Join(errs...)
}

// SweepPending deletes writes left pending for longer than olderThan and
// returns how many were removed.
func (s *Store) SweepPending(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.now().UTC().Add(-olderThan)
	pending, err := s.repo.ListPending(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("listing pending manifests: %w", err)
	}

	swept := 0
	var errs []error
	for _, m := range pending {
		if _, err := s.Delete(ctx, m.DatasetID, m.OwnerScope); err != nil {
			errs = append(errs, err)
			continue
		}
		swept++
	}
	if swept > 0 {
		s.logger.Info("Swept pending dataset writes", zap.Int("count", swept))
	}
	return swept, errors.Join(errs...)
}
