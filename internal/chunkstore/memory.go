package chunkstore

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepository is a process-local Repository for tests and local runs
// without a database.
type MemoryRepository struct {
	mu        sync.Mutex
	manifests map[string]Manifest
	chunks    map[string]Chunk
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		manifests: map[string]Manifest{},
		chunks:    map[string]Chunk{},
	}
}

func scopedKey(scope, id string) string {
	return scope + "/" + id
}

func (r *MemoryRepository) PutManifest(_ context.Context, m *Manifest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *m
	cp.Columns = append([]string(nil), m.Columns...)
	r.manifests[scopedKey(m.OwnerScope, m.DatasetID)] = cp
	return nil
}

func (r *MemoryRepository) MarkCommitted(_ context.Context, datasetID, scope string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := scopedKey(scope, datasetID)
	m, ok := r.manifests[key]
	if !ok {
		return ErrNotFound
	}
	m.Status = StatusCommitted
	r.manifests[key] = m
	return nil
}

func (r *MemoryRepository) GetManifest(_ context.Context, datasetID, scope string) (*Manifest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.manifests[scopedKey(scope, datasetID)]
	if !ok {
		return nil, ErrNotFound
	}
	return &m, nil
}

func (r *MemoryRepository) PutChunk(_ context.Context, c *Chunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks[scopedKey(c.OwnerScope, ChunkKey(c.DatasetID, c.Index))] = *c
	return nil
}

func (r *MemoryRepository) GetChunk(_ context.Context, datasetID, scope string, index int) (*Chunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chunks[scopedKey(scope, ChunkKey(datasetID, index))]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (r *MemoryRepository) DeleteManifest(_ context.Context, datasetID, scope string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.manifests, scopedKey(scope, datasetID))
	return nil
}

func (r *MemoryRepository) DeleteChunks(_ context.Context, datasetID, scope string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for key, c := range r.chunks {
		if c.DatasetID == datasetID && c.OwnerScope == scope {
			delete(r.chunks, key)
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) ListPending(_ context.Context, olderThan time.Time) ([]Manifest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Manifest
	for _, m := range r.manifests {
		if m.Status == StatusPending && m.CreatedAt.Before(olderThan) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ChunkIndices lists stored chunk indices for a dataset in ascending order.
func (r *MemoryRepository) ChunkIndices(datasetID, scope string) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int
	for _, c := range r.chunks {
		if c.DatasetID == datasetID && c.OwnerScope == scope {
			out = append(out, c.Index)
		}
	}
	sort.Ints(out)
	return out
}

// ChunkRowCounts lists row counts by ascending chunk index.
func (r *MemoryRepository) ChunkRowCounts(datasetID, scope string) []int {
	idx := r.ChunkIndices(datasetID, scope)
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(idx))
	for i, n := range idx {
		out[i] = r.chunks[scopedKey(scope, ChunkKey(datasetID, n))].RowCount
	}
	return out
}

// Counts reports how many manifests and chunks are stored across all scopes.
func (r *MemoryRepository) Counts() (manifests, chunks int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.manifests), len(r.chunks)
}
