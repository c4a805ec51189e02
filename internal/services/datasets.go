package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/nihal-ranchod/ARMMI-pandasi/internal/agent"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/apperrors"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/chunkstore"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/docstore"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/entity"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/tabular"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/utils"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/validator"
)

const (
	previewRows       = 5
	maxDatasetNameLen = 255
)

// UploadedFile is a file received from a client.
type UploadedFile struct {
	Filename string
	Size     int64
	Data     []byte
}

type DatasetPreview struct {
	Columns   []string        `json:"columns"`
	Data      json.RawMessage `json:"data"`
	TotalRows int             `json:"total_rows"`
}

type BasicInfo struct {
	Rows        int               `json:"rows"`
	Columns     int               `json:"columns"`
	SizeBytes   int64             `json:"size_bytes"`
	ColumnTypes map[string]string `json:"column_types"`
}

type DatasetStats struct {
	BasicInfo        BasicInfo                           `json:"basic_info"`
	MissingValues    map[string]int                      `json:"missing_values"`
	NumericStats     map[string]tabular.NumericStats     `json:"numeric_stats"`
	CategoricalStats map[string]tabular.CategoricalStats `json:"categorical_stats"`
}

// datasetCore is the ingest and load path shared by user and shared datasets.
type datasetCore struct {
	chunks    *chunkstore.Store
	validator *validator.Validator
	search    *SearchService
	logger    *zap.Logger
}

// ingest validates and stores the file's rows under scope and returns the
// profile to persist as metadata. The caller must call discard if it fails to
// persist that metadata.
func (c *datasetCore) ingest(ctx context.Context, id uuid.UUID, scope string, file UploadedFile) (*entity.DatasetProfile, error) {
	res := c.validator.Validate(file.Filename, file.Size, file.Data)
	if !res.Valid {
		c.logger.Info("Rejected upload", zap.String("filename", file.Filename), zap.String("reason", res.Error))
		return nil, res.Err()
	}

	filename := validator.SanitizeFilename(file.Filename)
	if filename == "" {
		filename = "dataset." + tabular.Extension(file.Filename)
	}
	profile, err := buildProfile(filename, res.Frame)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "Failed to process dataset", err)
	}

	m, err := c.chunks.Save(ctx, id.String(), scope, res.Frame)
	if errors.Is(err, chunkstore.ErrDocumentTooLarge) {
		return nil, apperrors.Wrap(apperrors.KindUnprocessable, "Dataset rows are too large to store", err)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "Failed to store dataset", err)
	}
	profile.HasFullData = true
	profile.IsChunked = true
	profile.TotalChunks = m.TotalChunks

	c.logger.Info("Stored dataset",
		zap.String("dataset_id", id.String()),
		zap.String("scope", scope),
		zap.Int("rows", profile.Rows),
		zap.Int("columns", profile.ColumnCount),
		zap.Int("chunks", m.TotalChunks),
		zap.String("encoding", res.Encoding),
	)
	return profile, nil
}

// discard removes stored chunks after a later step failed. It runs even if
// ctx was cancelled.
func (c *datasetCore) discard(ctx context.Context, id uuid.UUID, scope string) {
	if _, err := c.chunks.Delete(context.WithoutCancel(ctx), id.String(), scope); err != nil {
		c.logger.Error("Failed to clean up dataset chunks", zap.String("dataset_id", id.String()), zap.Error(err))
	}
}

func buildProfile(filename string, f *tabular.Frame) (*entity.DatasetProfile, error) {
	preview, err := chunkstore.EncodeRecords(f.Preview(previewRows))
	if err != nil {
		return nil, err
	}
	return &entity.DatasetProfile{
		Name:             displayName(filename),
		OriginalFilename: filename,
		Rows:             f.Len(),
		ColumnCount:      f.Width(),
		Columns:          datatypes.JSONSlice[string](append([]string(nil), f.Columns...)),
		ColumnTypes:      datatypes.NewJSONType(entity.StringMap(f.ColumnTypes())),
		MissingValues:    datatypes.NewJSONType(entity.CountMap(f.MissingCounts())),
		Preview:          datatypes.JSON(preview),
		SizeBytes:        f.CSVSize(),
	}, nil
}

// displayName drops the last extension.
func displayName(filename string) string {
	if i := strings.LastIndexByte(filename, '.'); i > 0 {
		return filename[:i]
	}
	return filename
}

// load reassembles the dataset. A dataset without committed chunk data falls
// back to its preview rows. Recorded column names are reapplied by position.
func (c *datasetCore) load(ctx context.Context, id uuid.UUID, scope string, p *entity.DatasetProfile) (*tabular.Frame, error) {
	f, err := c.chunks.Load(ctx, id.String(), scope)
	switch {
	case errors.Is(err, chunkstore.ErrNotStored):
		c.logger.Warn("Dataset has no stored rows, using preview", zap.String("dataset_id", id.String()))
		f, err = previewFrame(p)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindInternal, "Failed to load dataset", err)
		}
	case err != nil:
		return nil, apperrors.Wrap(apperrors.KindInternal, "Failed to load dataset", err)
	}

	if names := []string(p.Columns); len(names) > 0 {
		if n := f.RenameColumns(names); n != len(names) || n != f.Width() {
			c.logger.Warn("Recorded column names do not match stored data",
				zap.String("dataset_id", id.String()),
				zap.Int("recorded", len(names)),
				zap.Int("stored", f.Width()),
			)
		}
	}
	return f, nil
}

func previewFrame(p *entity.DatasetProfile) (*tabular.Frame, error) {
	if len(p.Preview) == 0 {
		return tabular.FromRecords(p.Columns, nil), nil
	}
	records, err := chunkstore.DecodeRecords(p.Preview)
	if err != nil {
		return nil, err
	}
	return tabular.FromRecords(p.Columns, records), nil
}

func (c *datasetCore) stats(ctx context.Context, id uuid.UUID, scope string, p *entity.DatasetProfile) (*DatasetStats, error) {
	f, err := c.load(ctx, id, scope, p)
	if err != nil {
		return nil, err
	}
	types := p.ColumnTypes.Data()
	summary := tabular.Stats(f, types)
	return &DatasetStats{
		BasicInfo: BasicInfo{
			Rows:        p.Rows,
			Columns:     p.ColumnCount,
			SizeBytes:   p.SizeBytes,
			ColumnTypes: types,
		},
		MissingValues:    p.MissingValues.Data(),
		NumericStats:     summary.NumericColumns,
		CategoricalStats: summary.CategoricalColumns,
	}, nil
}

func preview(p *entity.DatasetProfile) *DatasetPreview {
	data := json.RawMessage(p.Preview)
	if len(data) == 0 {
		data = json.RawMessage("[]")
	}
	return &DatasetPreview{Columns: p.Columns, Data: data, TotalRows: p.Rows}
}

func validateDatasetName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperrors.Validation("Name is required")
	}
	if len(name) > maxDatasetNameLen {
		return "", apperrors.Validation("Name is too long")
	}
	return name, nil
}

type DatasetServiceConfig struct {
	Datasets  DatasetStore
	Chunks    *chunkstore.Store
	Validator *validator.Validator
	Search    *SearchService
	Logger    *zap.Logger
}

// DatasetService manages datasets owned by a single user.
type DatasetService struct {
	datasetCore
	datasets DatasetStore
}

func NewDatasetService(cfg DatasetServiceConfig) *DatasetService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DatasetService{
		datasetCore: datasetCore{chunks: cfg.Chunks, validator: cfg.Validator, search: cfg.Search, logger: logger},
		datasets:    cfg.Datasets,
	}
}

// Upload validates, chunks and records a new dataset for owner. On any
// failure after chunks were written they are removed again.
func (s *DatasetService) Upload(ctx context.Context, owner uuid.UUID, file UploadedFile) (*entity.Dataset, error) {
	id := uuid.New()
	scope := utils.UserScope(owner)
	profile, err := s.ingest(ctx, id, scope, file)
	if err != nil {
		return nil, err
	}

	d := &entity.Dataset{ID: id, OwnerID: owner, DatasetProfile: *profile}
	if err := s.datasets.CreateDataset(ctx, d); err != nil {
		s.discard(ctx, id, scope)
		return nil, apperrors.Wrap(apperrors.KindInternal, "Failed to save dataset metadata", err)
	}
	s.search.IndexDataset(id, scope, &d.DatasetProfile)
	return d, nil
}

func (s *DatasetService) List(ctx context.Context, owner uuid.UUID) ([]entity.Dataset, error) {
	out, err := s.datasets.ListDatasets(ctx, owner)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "Failed to list datasets", err)
	}
	return out, nil
}

func (s *DatasetService) get(ctx context.Context, owner, id uuid.UUID) (*entity.Dataset, error) {
	d, err := s.datasets.GetDataset(ctx, owner, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, apperrors.NotFound("Dataset not found")
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "Failed to read dataset", err)
	}
	return d, nil
}

func (s *DatasetService) Preview(ctx context.Context, owner, id uuid.UUID) (*DatasetPreview, error) {
	d, err := s.get(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	return preview(&d.DatasetProfile), nil
}

func (s *DatasetService) Stats(ctx context.Context, owner, id uuid.UUID) (*DatasetStats, error) {
	d, err := s.get(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	return s.stats(ctx, id, utils.UserScope(owner), &d.DatasetProfile)
}

func (s *DatasetService) Load(ctx context.Context, owner, id uuid.UUID) (*tabular.Frame, error) {
	d, err := s.get(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, id, utils.UserScope(owner), &d.DatasetProfile)
}

// LoadMany loads the named datasets, or all of the owner's datasets when ids
// is empty. Datasets that fail to load are skipped.
func (s *DatasetService) LoadMany(ctx context.Context, owner uuid.UUID, ids []uuid.UUID) ([]agent.NamedFrame, error) {
	var datasets []entity.Dataset
	if len(ids) == 0 {
		all, err := s.List(ctx, owner)
		if err != nil {
			return nil, err
		}
		datasets = all
	} else {
		for _, id := range ids {
			d, err := s.get(ctx, owner, id)
			if err != nil {
				if apperrors.KindOf(err) == apperrors.KindNotFound {
					s.logger.Warn("Requested dataset not found", zap.String("dataset_id", id.String()))
					continue
				}
				return nil, err
			}
			datasets = append(datasets, *d)
		}
	}

	frames := make([]agent.NamedFrame, 0, len(datasets))
	for i := range datasets {
		d := &datasets[i]
		f, err := s.load(ctx, d.ID, utils.UserScope(owner), &d.DatasetProfile)
		if err != nil {
			s.logger.Error("Failed to load dataset", zap.String("dataset_id", d.ID.String()), zap.Error(err))
			continue
		}
		frames = append(frames, agent.NamedFrame{Name: d.Name, Frame: f})
	}
	return frames, nil
}

func (s *DatasetService) Rename(ctx context.Context, owner, id uuid.UUID, name string) (*entity.Dataset, error) {
	name, err := validateDatasetName(name)
	if err != nil {
		return nil, err
	}
	if err := s.datasets.RenameDataset(ctx, owner, id, name); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, apperrors.NotFound("Dataset not found")
		}
		return nil, apperrors.Wrap(apperrors.KindInternal, "Failed to rename dataset", err)
	}
	d, err := s.get(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	s.search.IndexDataset(id, utils.UserScope(owner), &d.DatasetProfile)
	return d, nil
}

// Delete removes the metadata, then the chunk data. Chunk cleanup is best
// effort.
func (s *DatasetService) Delete(ctx context.Context, owner, id uuid.UUID) error {
	d, err := s.get(ctx, owner, id)
	if err != nil {
		return err
	}
	if err := s.datasets.DeleteDataset(ctx, owner, id); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return apperrors.NotFound("Dataset not found")
		}
		return apperrors.Wrap(apperrors.KindInternal, "Failed to delete dataset", err)
	}
	s.discard(ctx, id, utils.UserScope(owner))
	s.search.RemoveDataset(id, d.ColumnCount)
	s.logger.Info("Deleted dataset", zap.String("dataset_id", id.String()))
	return nil
}
