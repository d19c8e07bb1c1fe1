package app

import (
	"context"
	"sort"
	"time"

	"marginalia/api/internal/store"
)

// ThreadNode is a comment together with its direct replies, shaped for the
// API response.
type ThreadNode struct {
	store.Comment
	Replies []*ThreadNode `json:"replies"`
}

// AnnotationThread groups every surviving comment under one annotation.
type AnnotationThread struct {
	AnnotationID string          `json:"annotationId"`
	Status       string          `json:"status"`
	LastActivity time.Time       `json:"lastActivity"`
	Comments     []store.Comment `json:"comments"`
}

// ListForAnchor returns the anchor's comments as a reply tree. Pagination
// slices the flat chronological ordering before assembly, so a page boundary
// can separate a reply from its parent; such replies are promoted to roots
// rather than dropped.
func (s *Service) ListForAnchor(ctx context.Context, anchor store.AnchorKey, limit, offset int) ([]*ThreadNode, error) {
	comments, err := s.store.ListByAnchor(ctx, anchor)
	if err != nil {
		return nil, err
	}
	return assembleTree(page(comments, limit, offset)), nil
}

// ListThreadsForItem returns every annotation thread on an item, most
// recently active first. A thread's status is the status of its oldest
// comment.
func (s *Service) ListThreadsForItem(ctx context.Context, itemID string) ([]AnnotationThread, error) {
	comments, err := s.store.ListByItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]store.Comment)
	var order []string
	for _, comment := range comments {
		annotationID := comment.Anchor.AnnotationID
		if _, ok := grouped[annotationID]; !ok {
			order = append(order, annotationID)
		}
		grouped[annotationID] = append(grouped[annotationID], comment)
	}

	threads := make([]AnnotationThread, 0, len(order))
	for _, annotationID := range order {
		threads = append(threads, buildThread(annotationID, grouped[annotationID]))
	}
	sort.SliceStable(threads, func(i, j int) bool {
		return threads[i].LastActivity.After(threads[j].LastActivity)
	})
	return threads, nil
}

// GetThread returns one annotation thread, or ErrThreadNotFound when every
// comment under the annotation is gone.
func (s *Service) GetThread(ctx context.Context, annotationID string) (AnnotationThread, error) {
	comments, err := s.store.ListByAnnotation(ctx, annotationID)
	if err != nil {
		return AnnotationThread{}, err
	}
	if len(comments) == 0 {
		return AnnotationThread{}, store.ErrThreadNotFound
	}
	return buildThread(annotationID, comments), nil
}

func buildThread(annotationID string, comments []store.Comment) AnnotationThread {
	thread := AnnotationThread{
		AnnotationID: annotationID,
		Status:       comments[0].Status,
		Comments:     comments,
	}
	for _, comment := range comments {
		activity := comment.CreatedAt
		if comment.UpdatedAt != nil && comment.UpdatedAt.After(activity) {
			activity = *comment.UpdatedAt
		}
		if activity.After(thread.LastActivity) {
			thread.LastActivity = activity
		}
	}
	return thread
}

func page(comments []store.Comment, limit, offset int) []store.Comment {
	if offset > 0 {
		if offset >= len(comments) {
			return nil
		}
		comments = comments[offset:]
	}
	if limit > 0 && limit < len(comments) {
		comments = comments[:limit]
	}
	return comments
}

// assembleTree nests replies under their parents, preserving chronological
// order at every level. A reply whose parent is outside the slice becomes a
// root.
func assembleTree(comments []store.Comment) []*ThreadNode {
	nodes := make(map[string]*ThreadNode, len(comments))
	for i := range comments {
		nodes[comments[i].ID] = &ThreadNode{Comment: comments[i], Replies: []*ThreadNode{}}
	}

	roots := make([]*ThreadNode, 0, len(comments))
	for _, comment := range comments {
		node := nodes[comment.ID]
		if comment.ParentID != nil {
			if parent, ok := nodes[*comment.ParentID]; ok {
				parent.Replies = append(parent.Replies, node)
				continue
			}
		}
		roots = append(roots, node)
	}
	return roots
}
