package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

var ErrArtifactNotFound = errors.New("artifact not found")

// ArtifactStore keeps chart images produced by queries.
type ArtifactStore interface {
	PutChart(ctx context.Context, userID uuid.UUID, chartID string, png []byte) error
	GetChart(ctx context.Context, userID uuid.UUID, chartID string) ([]byte, error)
}

func chartObjectPath(userID uuid.UUID, chartID string) string {
	return "charts/" + userID.String() + "/" + chartID + ".png"
}

type GCSArtifactStore struct {
	client *storage.Client
	bucket string
}

func NewGCSArtifactStore(client *storage.Client, bucket string) *GCSArtifactStore {
	return &GCSArtifactStore{client: client, bucket: bucket}
}

func (s *GCSArtifactStore) PutChart(ctx context.Context, userID uuid.UUID, chartID string, png []byte) error {
	w := s.client.Bucket(s.bucket).Object(chartObjectPath(userID, chartID)).NewWriter(ctx)
	w.ContentType = "image/png"
	if _, err := w.Write(png); err != nil {
		w.Close()
		return fmt.Errorf("failed to upload chart to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return nil
}

func (s *GCSArtifactStore) GetChart(ctx context.Context, userID uuid.UUID, chartID string) ([]byte, error) {
	rc, err := s.client.Bucket(s.bucket).Object(chartObjectPath(userID, chartID)).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrArtifactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chart from GCS: %w", err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// DefaultMemoryCharts is how many charts a MemoryArtifactStore holds before it
// evicts the oldest. Evicted charts are still served from query history.
const DefaultMemoryCharts = 100

// MemoryArtifactStore keeps the most recent charts in process memory. It is
// used when no bucket is configured.
type MemoryArtifactStore struct {
	mu      sync.RWMutex
	limit   int
	order   []string
	objects map[string][]byte
}

func NewMemoryArtifactStore() *MemoryArtifactStore {
	return NewBoundedMemoryArtifactStore(DefaultMemoryCharts)
}

func NewBoundedMemoryArtifactStore(limit int) *MemoryArtifactStore {
	if limit <= 0 {
		limit = DefaultMemoryCharts
	}
	return &MemoryArtifactStore{limit: limit, objects: map[string][]byte{}}
}

func (s *MemoryArtifactStore) PutChart(_ context.Context, userID uuid.UUID, chartID string, png []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := chartObjectPath(userID, chartID)
	if _, ok := s.objects[key]; !ok {
		s.order = append(s.order, key)
	}
	s.objects[key] = append([]byte(nil), png...)
	for len(s.order) > s.limit {
		delete(s.objects, s.order[0])
		s.order = s.order[1:]
	}
	return nil
}

func (s *MemoryArtifactStore) GetChart(_ context.Context, userID uuid.UUID, chartID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.objects[chartObjectPath(userID, chartID)]
	if !ok {
		return nil, ErrArtifactNotFound
	}
	return append([]byte(nil), b...), nil
}
