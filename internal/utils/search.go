package utils

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/nihal-ranchod/ARMMI-pandasi/internal/entity"
)

func DatasetToDocument(id uuid.UUID, scope string, p *entity.DatasetProfile) map[string]interface{} {
	return map[string]interface{}{
		"id":                id.String(),
		"type":              "dataset",
		"name":              p.Name,
		"original_filename": p.OriginalFilename,
		"rows":              p.Rows,
		"column_count":      p.ColumnCount,
		"owner_scope":       scope,
		"dataset_id":        id.String(),
	}
}

// ColumnDocumentID is stable per dataset and position so a rename or delete
// can address every column document without a lookup.
func ColumnDocumentID(datasetID uuid.UUID, position int) string {
	return fmt.Sprintf("%s_col_%d", datasetID, position)
}

func ColumnToDocuments(id uuid.UUID, scope string, p *entity.DatasetProfile) []map[string]interface{} {
	types := p.ColumnTypes.Data()
	docs := make([]map[string]interface{}, 0, len(p.Columns))
	for j, name := range p.Columns {
		docs = append(docs, map[string]interface{}{
			"id":           ColumnDocumentID(id, j),
			"type":         "column",
			"name":         name,
			"column_type":  types[name],
			"owner_scope":  scope,
			"dataset_id":   id.String(),
			"dataset_name": p.Name,
		})
	}
	return docs
}

// DatasetDocumentIDs lists the dataset document and all its column documents.
func DatasetDocumentIDs(id uuid.UUID, columns int) []string {
	ids := make([]string, 0, columns+1)
	ids = append(ids, id.String())
	for j := 0; j < columns; j++ {
		ids = append(ids, ColumnDocumentID(id, j))
	}
	return ids
}
