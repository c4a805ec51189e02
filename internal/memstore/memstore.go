// Package memstore holds in-memory implementations of the persistence,
// search and agent dependencies of the service layer, for tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/meilisearch/meilisearch-go"

	"github.com/nihal-ranchod/ARMMI-pandasi/internal/agent"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/docstore"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/entity"
)

// Users enforces unique emails the way the users table does.
type Users struct {
	mu      sync.Mutex
	ByID    map[uuid.UUID]*entity.User
	Touched map[uuid.UUID]time.Time
}

func NewUsers() *Users {
	return &Users{ByID: map[uuid.UUID]*entity.User{}, Touched: map[uuid.UUID]time.Time{}}
}

func (f *Users) CreateUser(_ context.Context, u *entity.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u.Email = strings.ToLower(u.Email)
	for _, existing := range f.ByID {
		if existing.Email == u.Email {
			return docstore.ErrDuplicate
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Role == "" {
		u.Role = entity.RoleUser
	}
	u.CreatedAt = time.Now()
	cp := *u
	f.ByID[u.ID] = &cp
	return nil
}

func (f *Users) FindUserByEmail(_ context.Context, email string) (*entity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.ByID {
		if u.Email == strings.ToLower(email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, docstore.ErrNotFound
}

func (f *Users) FindUserByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.ByID[id]
	if !ok {
		return nil, docstore.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *Users) TouchLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Touched[id] = at
	return nil
}

func (f *Users) Remove(id uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.ByID, id)
}

type Sessions struct {
	mu   sync.Mutex
	ByID map[uuid.UUID]entity.Session
}

func NewSessions() *Sessions {
	return &Sessions{ByID: map[uuid.UUID]entity.Session{}}
}

func (f *Sessions) CreateSession(_ context.Context, s *entity.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ByID[s.ID] = *s
	return nil
}

func (f *Sessions) GetSession(_ context.Context, id uuid.UUID) (*entity.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.ByID[id]
	if !ok {
		return nil, docstore.ErrNotFound
	}
	return &s, nil
}

func (f *Sessions) DeleteSession(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.ByID, id)
	return nil
}

func (f *Sessions) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, s := range f.ByID {
		if !now.Before(s.ExpiresAt) {
			delete(f.ByID, id)
			n++
		}
	}
	return n, nil
}

// Datasets fails every CreateDataset with CreateErr when it is set.
type Datasets struct {
	mu        sync.Mutex
	Rows      []entity.Dataset
	CreateErr error
}

func (f *Datasets) CreateDataset(_ context.Context, d *entity.Dataset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return f.CreateErr
	}
	d.CreatedAt = time.Now().Add(time.Duration(len(f.Rows)) * time.Millisecond)
	f.Rows = append(f.Rows, *d)
	return nil
}

func (f *Datasets) ListDatasets(_ context.Context, owner uuid.UUID) ([]entity.Dataset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.Dataset
	for _, d := range f.Rows {
		if d.OwnerID == owner {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *Datasets) CountDatasets(ctx context.Context, owner uuid.UUID) (int64, error) {
	out, _ := f.ListDatasets(ctx, owner)
	return int64(len(out)), nil
}

func (f *Datasets) find(owner, id uuid.UUID) int {
	for i, d := range f.Rows {
		if d.ID == id && d.OwnerID == owner {
			return i
		}
	}
	return -1
}

func (f *Datasets) GetDataset(_ context.Context, owner, id uuid.UUID) (*entity.Dataset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.find(owner, id)
	if i < 0 {
		return nil, docstore.ErrNotFound
	}
	d := f.Rows[i]
	return &d, nil
}

func (f *Datasets) RenameDataset(_ context.Context, owner, id uuid.UUID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.find(owner, id)
	if i < 0 {
		return docstore.ErrNotFound
	}
	f.Rows[i].Name = name
	return nil
}

func (f *Datasets) DeleteDataset(_ context.Context, owner, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.find(owner, id)
	if i < 0 {
		return docstore.ErrNotFound
	}
	f.Rows = append(f.Rows[:i], f.Rows[i+1:]...)
	return nil
}

type SharedDatasets struct {
	mu   sync.Mutex
	Rows []entity.SharedDataset
}

func (f *SharedDatasets) CreateShared(_ context.Context, d *entity.SharedDataset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d.CreatedAt = time.Now()
	f.Rows = append(f.Rows, *d)
	return nil
}

func (f *SharedDatasets) ListActiveShared(_ context.Context) ([]entity.SharedDataset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.SharedDataset
	for _, d := range f.Rows {
		if d.IsActive {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *SharedDatasets) find(id uuid.UUID) int {
	for i, d := range f.Rows {
		if d.ID == id && d.IsActive {
			return i
		}
	}
	return -1
}

func (f *SharedDatasets) GetActiveShared(_ context.Context, id uuid.UUID) (*entity.SharedDataset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.find(id)
	if i < 0 {
		return nil, docstore.ErrNotFound
	}
	d := f.Rows[i]
	return &d, nil
}

func (f *SharedDatasets) RenameShared(_ context.Context, id uuid.UUID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.find(id)
	if i < 0 {
		return docstore.ErrNotFound
	}
	f.Rows[i].Name = name
	return nil
}

func (f *SharedDatasets) DeactivateShared(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.find(id)
	if i < 0 {
		return docstore.ErrNotFound
	}
	f.Rows[i].IsActive = false
	f.Rows[i].HasFullData = false
	return nil
}

type History struct {
	mu      sync.Mutex
	Entries []entity.QueryHistory
}

func (f *History) CreateHistory(_ context.Context, h *entity.QueryHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	f.Entries = append(f.Entries, *h)
	return nil
}

func (f *History) ListHistory(_ context.Context, userID uuid.UUID, limit int) ([]entity.QueryHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.QueryHistory
	for i := len(f.Entries) - 1; i >= 0 && len(out) < limit; i-- {
		if e := f.Entries[i]; e.UserID == userID {
			e.FullResult = nil
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *History) CountHistory(_ context.Context, userID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, e := range f.Entries {
		if e.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (f *History) GetHistory(_ context.Context, userID, id uuid.UUID) (*entity.QueryHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.Entries {
		if e.ID == id && e.UserID == userID {
			return &e, nil
		}
	}
	return nil, docstore.ErrNotFound
}

func (f *History) ClearHistory(_ context.Context, userID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.Entries[:0]
	var n int64
	for _, e := range f.Entries {
		if e.UserID == userID {
			n++
			continue
		}
		kept = append(kept, e)
	}
	f.Entries = kept
	return n, nil
}

func (f *History) FindHistoryWithChart(_ context.Context, userID uuid.UUID, chartID string) (*entity.QueryHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.Entries) - 1; i >= 0; i-- {
		e := f.Entries[i]
		if e.UserID == userID && strings.Contains(string(e.FullResult), `"id":"`+chartID+`"`) {
			return &e, nil
		}
	}
	return nil, docstore.ErrNotFound
}

// Agent returns a scripted reply and records what it was asked. With Block
// set it waits for the context to end.
type Agent struct {
	Reply  agent.Reply
	Err    error
	Block  bool
	Query  string
	Frames []agent.NamedFrame
}

func (f *Agent) Chat(ctx context.Context, query string, frames []agent.NamedFrame) (agent.Reply, error) {
	f.Query = query
	f.Frames = frames
	if f.Block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.Reply, f.Err
}

// SearchIndex matches documents by case-insensitive substring of their name
// and ignores filters, recording the last request for inspection.
type SearchIndex struct {
	mu          sync.Mutex
	Docs        map[string]map[string]interface{}
	Deleted     []string
	LastRequest *meilisearch.SearchRequest
	Err         error
}

func NewSearchIndex() *SearchIndex {
	return &SearchIndex{Docs: map[string]map[string]interface{}{}}
}

func (f *SearchIndex) AddDocuments(documentsPtr interface{}, _ ...string) (*meilisearch.TaskInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	for _, d := range documentsPtr.([]map[string]interface{}) {
		f.Docs[d["id"].(string)] = d
	}
	return &meilisearch.TaskInfo{}, nil
}

func (f *SearchIndex) DeleteDocuments(ids []string) (*meilisearch.TaskInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		delete(f.Docs, id)
	}
	f.Deleted = append(f.Deleted, ids...)
	return &meilisearch.TaskInfo{}, nil
}

func (f *SearchIndex) Search(query string, req *meilisearch.SearchRequest) (*meilisearch.SearchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastRequest = req
	if f.Err != nil {
		return nil, f.Err
	}
	var hits []interface{}
	for _, d := range f.Docs {
		if strings.Contains(strings.ToLower(d["name"].(string)), strings.ToLower(query)) {
			hits = append(hits, d)
		}
	}
	return &meilisearch.SearchResponse{Hits: hits}, nil
}
