package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/nihal-ranchod/ARMMI-pandasi/internal/agent"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/apperrors"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/docstore"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/entity"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/tabular"
)

// QueryScope selects which datasets a query runs over.
type QueryScope string

const (
	ScopeUser   QueryScope = "user"
	ScopeShared QueryScope = "shared"
)

const (
	HistoryLimit        = 50
	maxSummaryLen       = 500
	maxTableRows        = 100
	DefaultQueryTimeout = 300 * time.Second
)

type QueryRequest struct {
	Query    string   `json:"query"`
	Datasets []string `json:"datasets"`
}

type Visualization struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	ID    string `json:"id"`
	Data  string `json:"data,omitempty"`
	URL   string `json:"url"`
}

type DataTable struct {
	Title   string           `json:"title"`
	Columns []string         `json:"columns"`
	Data    []tabular.Record `json:"data"`
}

// QueryResult is the display envelope returned to clients and stored as the
// full result of a history entry.
type QueryResult struct {
	ID                string            `json:"id"`
	QueryID           string            `json:"query_id"`
	Query             string            `json:"query"`
	DatasetsUsed      []string          `json:"datasets_used"`
	Timestamp         time.Time         `json:"timestamp"`
	ResponseType      string            `json:"response_type"`
	Response          string            `json:"response"`
	FormattedResponse FormattedResponse `json:"formatted_response"`
	Visualizations    []Visualization   `json:"visualizations"`
	DataTables        []DataTable       `json:"data_tables"`
	Success           bool              `json:"success"`
	Error             string            `json:"error,omitempty"`
}

// Export is a downloadable rendering of a stored query result.
type Export struct {
	Filename    string
	ContentType string
	Body        []byte
}

type QueryServiceConfig struct {
	History   HistoryStore
	Datasets  *DatasetService
	Shared    *SharedDatasetService
	Agent     agent.Agent
	Artifacts ArtifactStore
	Logger    *zap.Logger

	Scope          QueryScope
	MaxQueryLength int
	Timeout        time.Duration
	// ChartDir is the only directory chart files are read from and removed
	// from. Defaults to os.TempDir().
	ChartDir string
}

type QueryService struct {
	history   HistoryStore
	datasets  *DatasetService
	shared    *SharedDatasetService
	agent     agent.Agent
	artifacts ArtifactStore
	logger    *zap.Logger

	scope          QueryScope
	maxQueryLength int
	timeout        time.Duration
	chartDir       string
	now            func() time.Time
}

func NewQueryService(cfg QueryServiceConfig) *QueryService {
	s := &QueryService{
		history:        cfg.History,
		datasets:       cfg.Datasets,
		shared:         cfg.Shared,
		agent:          cfg.Agent,
		artifacts:      cfg.Artifacts,
		logger:         cfg.Logger,
		scope:          cfg.Scope,
		maxQueryLength: cfg.MaxQueryLength,
		timeout:        cfg.Timeout,
		chartDir:       cfg.ChartDir,
		now:            time.Now,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.scope == "" {
		s.scope = ScopeUser
	}
	if s.maxQueryLength <= 0 {
		s.maxQueryLength = DefaultMaxQueryLength
	}
	if s.timeout <= 0 {
		s.timeout = DefaultQueryTimeout
	}
	if s.chartDir == "" {
		s.chartDir = os.TempDir()
	}
	return s
}

// Execute answers a question over the user's datasets, or the shared pool in
// shared scope. Both answers and failures are written to history.
func (s *QueryService) Execute(ctx context.Context, user *entity.User, req QueryRequest) (*QueryResult, error) {
	if err := ValidateQueryText(req.Query, s.maxQueryLength); err != nil {
		return nil, err
	}
	ids, err := parseDatasetIDs(req.Datasets)
	if err != nil {
		return nil, err
	}

	result := &QueryResult{
		ID:             uuid.NewString(),
		Query:          req.Query,
		DatasetsUsed:   []string{},
		Timestamp:      s.now().UTC(),
		Visualizations: []Visualization{},
		DataTables:     []DataTable{},
	}

	frames, err := s.frames(ctx, user, ids)
	if err == nil && len(frames) == 0 {
		err = apperrors.Unprocessable(s.noDatasetsMessage())
	}
	if err != nil {
		return nil, s.fail(ctx, user, result, err)
	}
	for _, nf := range frames {
		result.DatasetsUsed = append(result.DatasetsUsed, nf.Name)
	}
	s.logger.Info("Executing query",
		zap.String("user_id", user.ID.String()),
		zap.Int("datasets", len(frames)),
		zap.String("scope", string(s.scope)),
	)

	qctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	reply, err := s.agent.Chat(qctx, req.Query, frames)
	if errors.Is(err, context.DeadlineExceeded) {
		err = apperrors.Wrap(apperrors.KindInternal, "Query timed out", err)
	}
	if err != nil {
		return nil, s.fail(ctx, user, result, err)
	}

	s.applyReply(ctx, user, result, reply)
	result.Success = true
	result.FormattedResponse = FormatResponse(result.Response)
	s.record(ctx, user, result)
	return result, nil
}

func (s *QueryService) noDatasetsMessage() string {
	if s.scope == ScopeShared {
		return "No datasets available for querying. Please ensure shared datasets are uploaded by an admin."
	}
	return "No datasets available for querying. Please upload a dataset first."
}

func parseDatasetIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, r := range raw {
		id, err := uuid.Parse(r)
		if err != nil {
			return nil, apperrors.Validation("Invalid dataset id: " + r)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *QueryService) frames(ctx context.Context, user *entity.User, ids []uuid.UUID) ([]agent.NamedFrame, error) {
	if s.scope == ScopeShared {
		return s.shared.LoadAll(ctx)
	}
	return s.datasets.LoadMany(ctx, user.ID, ids)
}

func (s *QueryService) applyReply(ctx context.Context, user *entity.User, result *QueryResult, reply agent.Reply) {
	switch r := reply.(type) {
	case agent.TextReply:
		result.ResponseType = "text"
		result.Response = r.Text
	case agent.TableReply:
		result.ResponseType = "table"
		head := r.Frame.Head(maxTableRows)
		result.DataTables = append(result.DataTables, DataTable{
			Title:   "Query Results",
			Columns: head.Columns,
			Data:    head.Records(),
		})
		var buf bytes.Buffer
		if err := head.WriteCSV(&buf); err != nil {
			s.logger.Warn("Failed to render table reply", zap.Error(err))
		}
		result.Response = buf.String()
	case agent.ChartReply:
		viz, err := s.storeChart(ctx, user, r.Path)
		if err != nil {
			s.logger.Warn("Failed to read chart", zap.Error(err))
			result.ResponseType = "text"
			result.Response = "The chart could not be loaded"
			return
		}
		result.ResponseType = "chart"
		result.Response = "Chart generated successfully"
		result.Visualizations = append(result.Visualizations, *viz)
	}
}

// storeChart inlines the agent's PNG as base64, removes the temp file and
// keeps a copy in the artifact store for later download. Paths outside the
// chart directory are rejected and left untouched.
func (s *QueryService) storeChart(ctx context.Context, user *entity.User, path string) (*Visualization, error) {
	path, err := s.resolveChartPath(path)
	if err != nil {
		return nil, err
	}
	png, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := os.Remove(path); err != nil {
		s.logger.Warn("Failed to remove chart file", zap.Error(err))
	}

	chartID := uuid.NewString()
	if s.artifacts != nil {
		if err := s.artifacts.PutChart(ctx, user.ID, chartID, png); err != nil {
			s.logger.Warn("Failed to store chart", zap.String("chart_id", chartID), zap.Error(err))
		}
	}
	return &Visualization{
		Type:  "chart",
		Title: "Generated Chart",
		ID:    chartID,
		Data:  base64.StdEncoding.EncodeToString(png),
		URL:   "/api/charts/" + chartID,
	}, nil
}

// resolveChartPath returns the symlink-free form of path when it names a .png
// file inside the chart directory.
func (s *QueryService) resolveChartPath(path string) (string, error) {
	if !strings.EqualFold(filepath.Ext(path), ".png") {
		return "", fmt.Errorf("%w: chart %q is not a .png file", agent.ErrMalformedReply, path)
	}
	dir, err := filepath.EvalSymlinks(filepath.Clean(s.chartDir))
	if err != nil {
		return "", fmt.Errorf("resolving chart directory: %w", err)
	}
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(dir, resolved)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: chart %q is outside %s", agent.ErrMalformedReply, path, dir)
	}
	if !strings.EqualFold(filepath.Ext(resolved), ".png") {
		return "", fmt.Errorf("%w: chart %q does not resolve to a .png file", agent.ErrMalformedReply, path)
	}
	return resolved, nil
}

func (s *QueryService) fail(ctx context.Context, user *entity.User, result *QueryResult, cause error) error {
	s.logger.Error("Query execution failed", zap.String("user_id", user.ID.String()), zap.Error(cause))
	msg := apperrors.PublicMessage(cause)
	result.Success = false
	result.ResponseType = "error"
	result.Response = "Error: " + msg
	result.Error = msg
	result.FormattedResponse = FormatResponse(result.Response)
	s.record(ctx, user, result)
	return cause
}

// record writes the history entry. A history failure never fails the query.
func (s *QueryService) record(ctx context.Context, user *entity.User, result *QueryResult) {
	id := uuid.MustParse(result.ID)
	result.QueryID = result.ID
	full, err := json.Marshal(result)
	if err != nil {
		s.logger.Error("Failed to encode query result", zap.Error(err))
		full = nil
	}
	entry := &entity.QueryHistory{
		ID:            id,
		UserID:        user.ID,
		Query:         result.Query,
		DatasetsUsed:  datatypes.JSONSlice[string](result.DatasetsUsed),
		Success:       result.Success,
		ResultSummary: truncateRunes(result.Response, maxSummaryLen),
		FullResult:    datatypes.JSON(full),
		CreatedAt:     result.Timestamp,
	}
	if err := s.history.CreateHistory(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Error("Failed to save query history", zap.String("user_id", user.ID.String()), zap.Error(err))
		result.QueryID = ""
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// History returns the user's most recent entries, newest first.
func (s *QueryService) History(ctx context.Context, user *entity.User) ([]entity.QueryHistory, error) {
	out, err := s.history.ListHistory(ctx, user.ID, HistoryLimit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "Failed to read query history", err)
	}
	return out, nil
}

func (s *QueryService) ClearHistory(ctx context.Context, user *entity.User) (int64, error) {
	n, err := s.history.ClearHistory(ctx, user.ID)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.KindInternal, "Failed to clear query history", err)
	}
	s.logger.Info("Cleared query history", zap.String("user_id", user.ID.String()), zap.Int64("entries", n))
	return n, nil
}

func (s *QueryService) entry(ctx context.Context, user *entity.User, rawID string) (*entity.QueryHistory, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, apperrors.NotFound("Query result not found")
	}
	h, err := s.history.GetHistory(ctx, user.ID, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, apperrors.NotFound("Query result not found")
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "Failed to read query result", err)
	}
	return h, nil
}

// Result returns the stored envelope of a history entry. Entries recorded
// without one are returned as a minimal envelope built from the entry.
func (s *QueryService) Result(ctx context.Context, user *entity.User, id string) (json.RawMessage, error) {
	h, err := s.entry(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if hasDocument(h.FullResult) {
		return json.RawMessage(h.FullResult), nil
	}
	b, err := json.Marshal(QueryResult{
		ID:                h.ID.String(),
		QueryID:           h.ID.String(),
		Query:             h.Query,
		DatasetsUsed:      h.DatasetsUsed,
		Timestamp:         h.CreatedAt,
		ResponseType:      "text",
		Response:          h.ResultSummary,
		FormattedResponse: FormatResponse(h.ResultSummary),
		Visualizations:    []Visualization{},
		DataTables:        []DataTable{},
		Success:           h.Success,
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func hasDocument(j datatypes.JSON) bool {
	t := bytes.TrimSpace(j)
	return len(t) > 0 && !bytes.Equal(t, []byte("null"))
}

// Export renders a stored result as CSV (its first table) or JSON (the whole
// envelope).
func (s *QueryService) Export(ctx context.Context, user *entity.User, id, format string) (*Export, error) {
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "json" {
		return nil, apperrors.Validation("Unsupported export format. Use csv or json")
	}
	raw, err := s.Result(ctx, user, id)
	if err != nil {
		return nil, err
	}

	if format == "json" {
		var buf bytes.Buffer
		if err := json.Indent(&buf, raw, "", "  "); err != nil {
			return nil, apperrors.Wrap(apperrors.KindInternal, "Failed to export result", err)
		}
		return &Export{Filename: "query_result_" + id + ".json", ContentType: "application/json", Body: buf.Bytes()}, nil
	}

	var result QueryResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "Failed to export result", err)
	}
	if len(result.DataTables) == 0 {
		return nil, apperrors.NotFound("No tabular data available for export")
	}
	table := result.DataTables[0]
	var buf bytes.Buffer
	if err := tabular.FromRecords(table.Columns, table.Data).WriteCSV(&buf); err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "Failed to export result", err)
	}
	return &Export{Filename: "query_result_" + id + ".csv", ContentType: "text/csv", Body: buf.Bytes()}, nil
}

// Chart returns a chart image, from the artifact store when it has one and
// otherwise from the inline copy in the user's history.
func (s *QueryService) Chart(ctx context.Context, user *entity.User, chartID string) ([]byte, error) {
	if _, err := uuid.Parse(chartID); err != nil {
		return nil, apperrors.NotFound("Chart not found")
	}
	if s.artifacts != nil {
		png, err := s.artifacts.GetChart(ctx, user.ID, chartID)
		if err == nil {
			return png, nil
		}
		if !errors.Is(err, ErrArtifactNotFound) {
			s.logger.Warn("Failed to read chart from artifact store", zap.String("chart_id", chartID), zap.Error(err))
		}
	}

	h, err := s.history.FindHistoryWithChart(ctx, user.ID, chartID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, apperrors.NotFound("Chart not found")
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "Failed to read chart", err)
	}
	var result QueryResult
	if err := json.Unmarshal(h.FullResult, &result); err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "Failed to read chart", err)
	}
	for _, v := range result.Visualizations {
		if v.ID != chartID || v.Data == "" {
			continue
		}
		png, err := base64.StdEncoding.DecodeString(v.Data)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindInternal, "Failed to decode chart", err)
		}
		return png, nil
	}
	return nil, apperrors.NotFound("Chart not found")
}
