package audit

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
)

// Index provides full-text search over ledger entry messages. It lives in
// memory only: the NDJSON store is the durable record, and rebuilding the
// index from a replay is cheap at the ledger's retention cap.
type Index struct {
	index bleve.Index
}

// indexDoc is the projection of an Entry that gets indexed.
type indexDoc struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	TaskID    string `json:"task_id"`
	Component string `json:"component"`
}

// NewIndex creates an empty in-memory index.
func NewIndex() (*Index, error) {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create audit index: %w", err)
	}
	return &Index{index: idx}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()

	messageField := bleve.NewTextFieldMapping()
	messageField.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("message", messageField)

	// Exact-match fields
	for _, name := range []string{"type", "task_id", "component"} {
		field := bleve.NewTextFieldMapping()
		field.Analyzer = keyword.Name
		docMapping.AddFieldMappingsAt(name, field)
	}

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

// Add indexes one entry by its ledger ID.
func (i *Index) Add(e Entry) error {
	return i.index.Index(e.ID, indexDoc{
		Message:   e.Message,
		Type:      string(e.Type),
		TaskID:    e.TaskID,
		Component: e.Component,
	})
}

// Query runs a match query over messages and returns entry IDs in relevance
// order.
func (i *Index) Query(query string) ([]string, error) {
	q := bleve.NewMatchQuery(query)
	q.SetField("message")

	req := bleve.NewSearchRequest(q)
	req.Size = 100

	res, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("audit search failed: %w", err)
	}

	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

// Close releases the index.
func (i *Index) Close() error {
	return i.index.Close()
}
