package search

import (
	"sort"
	"strings"
	"sync"
)

// Memory is a substring matcher over indexed comment records. It stands in
// for Meilisearch when none is configured and keeps the search endpoint
// functional in single-binary deployments.
type Memory struct {
	mu      sync.RWMutex
	records map[string]CommentRecord
}

// NewMemory creates an empty in-memory index.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]CommentRecord)}
}

// IndexComment adds or updates a record.
func (m *Memory) IndexComment(record CommentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.ID] = record
	return nil
}

// DeleteComment removes a record.
func (m *Memory) DeleteComment(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

// Search matches the query text case-insensitively against body and author.
func (m *Memory) Search(q Query) ([]Result, int, error) {
	needle := strings.ToLower(strings.TrimSpace(q.Text))
	if needle == "" {
		return []Result{}, 0, nil
	}
	limit := q.Limit
	if limit == 0 {
		limit = 20
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	matches := []Result{}
	for _, record := range m.records {
		if q.FilterItemID != "" && record.ItemID != q.FilterItemID {
			continue
		}
		if !strings.Contains(strings.ToLower(record.Body), needle) &&
			!strings.Contains(strings.ToLower(record.AuthorName), needle) {
			continue
		}
		matches = append(matches, Result{
			ID:           record.ID,
			Snippet:      record.Body,
			ItemID:       record.ItemID,
			AnnotationID: record.AnnotationID,
			AuthorName:   record.AuthorName,
		})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })

	total := len(matches)
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, total, nil
}
