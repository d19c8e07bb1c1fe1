// Package search keeps a secondary comment index for full-text lookup.
// Indexing is fire-and-forget: the comment store, not the index, is the
// source of truth.
package search

import "log"

// Service tries Meilisearch first and falls back to the in-memory matcher.
type Service struct {
	meili    *Meili
	fallback *Memory
}

// NewService creates a search service. meili may be nil when Meilisearch is
// not configured.
func NewService(meili *Meili, fallback *Memory) *Service {
	return &Service{meili: meili, fallback: fallback}
}

// Search routes the query to Meilisearch when healthy.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back: %v", err)
	}

	results, total, err := s.fallback.Search(q)
	if err != nil {
		log.Printf("search: fallback error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexComment pushes a record to every configured index.
func (s *Service) IndexComment(record CommentRecord) {
	if err := s.fallback.IndexComment(record); err != nil {
		log.Printf("search: fallback index comment %s: %v", record.ID, err)
	}
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexComment(record); err != nil {
			log.Printf("search: index comment %s: %v", record.ID, err)
		}
	}()
}

// DeleteComment removes a record from every configured index.
func (s *Service) DeleteComment(id string) {
	if err := s.fallback.DeleteComment(id); err != nil {
		log.Printf("search: fallback delete comment %s: %v", id, err)
	}
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteComment(id); err != nil {
			log.Printf("search: delete comment %s: %v", id, err)
		}
	}()
}

func nonNil(results []Result) []Result {
	if results == nil {
		return []Result{}
	}
	return results
}
