// Package store holds the authoritative in-memory comment state: the keyed
// comment records, their anchor and annotation indices, per-comment reaction
// state and the notification records produced by fanout. One lock owns all of
// it; every public operation is atomic with respect to every other.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"marginalia/api/internal/util"
)

// excerptRunes caps the comment excerpt copied into notification payloads.
const excerptRunes = 140

// CreateCommentParams are the inputs to CreateComment. Status defaults to open.
type CreateCommentParams struct {
	Anchor   AnchorKey
	Content  string
	Author   Actor
	ParentID *string
	Status   string
}

// MemoryStore is the process-owned comment store. All maps and indices below
// are guarded by mu; readers take the read lock so they never observe a
// half-applied cascade.
type MemoryStore struct {
	mu            sync.RWMutex
	comments      map[string]*Comment
	byAnchor      map[string][]string // anchor topic -> comment ids, creation order
	byAnnotation  map[string][]string // annotation id -> comment ids, creation order
	byItem        map[string][]string // item id -> comment ids, creation order
	notifications map[string]*Notification
	byRecipient   map[string][]string // recipient actor id -> notification ids, creation order
}

// NewMemory creates an empty store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		comments:      make(map[string]*Comment),
		byAnchor:      make(map[string][]string),
		byAnnotation:  make(map[string][]string),
		byItem:        make(map[string][]string),
		notifications: make(map[string]*Notification),
		byRecipient:   make(map[string][]string),
	}
}

// CreateComment appends a new comment under its anchor. When ParentID is set
// the parent must exist under the same anchor; the new id is recorded in the
// parent's ReplyIDs.
func (s *MemoryStore) CreateComment(ctx context.Context, params CreateCommentParams) (Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var parent *Comment
	if params.ParentID != nil {
		existing, ok := s.comments[*params.ParentID]
		if !ok || existing.Anchor.Topic() != params.Anchor.Topic() {
			return Comment{}, ErrNotFound
		}
		parent = existing
	}

	status := params.Status
	if status == "" {
		status = StatusOpen
	}
	comment := &Comment{
		ID:        util.NewID("cmt"),
		Anchor:    params.Anchor,
		Author:    params.Author,
		Content:   params.Content,
		ParentID:  params.ParentID,
		Status:    status,
		CreatedAt: time.Now().UTC(),
		Reactions: make(map[string][]Actor),
	}
	s.comments[comment.ID] = comment

	topic := comment.Anchor.Topic()
	s.byAnchor[topic] = append(s.byAnchor[topic], comment.ID)
	if comment.Anchor.Kind == AnchorAnnotation {
		s.byAnnotation[comment.Anchor.AnnotationID] = append(s.byAnnotation[comment.Anchor.AnnotationID], comment.ID)
		s.byItem[comment.Anchor.ItemID] = append(s.byItem[comment.Anchor.ItemID], comment.ID)
	}
	if parent != nil {
		parent.ReplyIDs = append(parent.ReplyIDs, comment.ID)
	}
	return copyComment(comment), nil
}

// ResolveReplyTarget locates the thread a reply attaches to by its annotation
// id. The anchor and default parent are derived from the oldest surviving
// comment in the thread; an explicit parentCommentID overrides the parent.
func (s *MemoryStore) ResolveReplyTarget(ctx context.Context, annotationID, parentCommentID string) (AnchorKey, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var oldest *Comment
	for _, id := range s.byAnnotation[annotationID] {
		candidate := s.comments[id]
		if candidate.IsDeleted {
			continue
		}
		oldest = candidate
		break
	}
	if oldest == nil {
		return AnchorKey{}, "", ErrThreadNotFound
	}
	parentID := oldest.ID
	if parentCommentID != "" {
		parentID = parentCommentID
	}
	return AnnotationAnchor(oldest.Anchor.ItemID, annotationID), parentID, nil
}

// UpdateContent replaces the comment body. Only the author may edit, and a
// redacted comment can never be edited again.
func (s *MemoryStore) UpdateContent(ctx context.Context, id, content, actorID string) (Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	comment, ok := s.comments[id]
	if !ok || comment.IsDeleted {
		return Comment{}, ErrNotFound
	}
	if comment.Author.ID != actorID {
		return Comment{}, ErrUnauthorized
	}
	comment.Content = content
	touch(comment)
	return copyComment(comment), nil
}

// SoftDelete redacts the comment and, in the same atomic step, every direct
// reply listed in its ReplyIDs. Replies keep their own ReplyIDs untouched:
// the cascade is exactly one level deep. Authorship of the replies is not
// re-checked; the cascade is a side effect of deleting the parent.
func (s *MemoryStore) SoftDelete(ctx context.Context, id, actorID string) (Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	comment, ok := s.comments[id]
	if !ok || comment.IsDeleted {
		return Comment{}, ErrNotFound
	}
	if comment.Author.ID != actorID {
		return Comment{}, ErrUnauthorized
	}
	redact(comment)
	for _, replyID := range comment.ReplyIDs {
		reply := s.comments[replyID]
		if reply.IsDeleted {
			continue
		}
		redact(reply)
	}
	return copyComment(comment), nil
}

// UpdateStatus sets the status on every comment sharing the annotation id,
// regardless of authorship. Reports whether any comment was found.
func (s *MemoryStore) UpdateStatus(ctx context.Context, annotationID, status string, actor Actor) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.byAnnotation[annotationID]
	if len(ids) == 0 {
		return false, nil
	}
	for _, id := range ids {
		comment := s.comments[id]
		comment.Status = status
		touch(comment)
	}
	return true, nil
}

// GetComment returns a snapshot of one comment.
func (s *MemoryStore) GetComment(ctx context.Context, id string) (Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	comment, ok := s.comments[id]
	if !ok {
		return Comment{}, ErrNotFound
	}
	return copyComment(comment), nil
}

// ToggleReaction flips the actor's reaction of the given type on the comment.
// An actor holds at most one reaction type per comment: toggling a new type
// first clears the actor from every other type, toggling the held type clears
// it entirely. The actor snapshot is captured at toggle time. annotationID,
// when non-empty, scopes the lookup to that annotation's thread.
func (s *MemoryStore) ToggleReaction(ctx context.Context, commentID, annotationID string, actor Actor, reactionType string) (ReactionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	comment, ok := s.comments[commentID]
	if !ok {
		return ReactionState{}, ErrNotFound
	}
	if annotationID != "" && comment.Anchor.AnnotationID != annotationID {
		return ReactionState{}, ErrNotFound
	}

	held := false
	for _, reactor := range comment.Reactions[reactionType] {
		if reactor.ID == actor.ID {
			held = true
			break
		}
	}
	if held {
		removeReactor(comment, reactionType, actor.ID)
	} else {
		for existingType := range comment.Reactions {
			removeReactor(comment, existingType, actor.ID)
		}
		comment.Reactions[reactionType] = append(comment.Reactions[reactionType], actor)
	}
	touch(comment)

	state := ReactionState{Type: reactionType, Reactors: []Actor{}}
	state.Reactors = append(state.Reactors, comment.Reactions[reactionType]...)
	return state, nil
}

// ListByAnchor returns the non-deleted comments under the anchor, oldest first.
func (s *MemoryStore) ListByAnchor(ctx context.Context, anchor AnchorKey) ([]Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.byAnchor[anchor.Topic()]), nil
}

// ListByItem returns the non-deleted comments under every annotation of the
// item, oldest first.
func (s *MemoryStore) ListByItem(ctx context.Context, itemID string) ([]Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.byItem[itemID]), nil
}

// ListByAnnotation returns the non-deleted comments of one annotation thread,
// oldest first.
func (s *MemoryStore) ListByAnnotation(ctx context.Context, annotationID string) ([]Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.byAnnotation[annotationID]), nil
}

// FanOutCommentCreated materializes one notification per distinct author with
// a surviving comment under the new comment's anchor, excluding the creator.
// The participant set is computed point-in-time over current state; there is
// no persisted subscriber list.
func (s *MemoryStore) FanOutCommentCreated(ctx context.Context, commentID string) ([]Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	comment, ok := s.comments[commentID]
	if !ok {
		return nil, ErrNotFound
	}

	seen := map[string]struct{}{comment.Author.ID: {}}
	created := []Notification{}
	now := time.Now().UTC()
	summary := summarize(comment)
	for _, id := range s.byAnchor[comment.Anchor.Topic()] {
		participant := s.comments[id]
		if participant.IsDeleted {
			continue
		}
		if _, dup := seen[participant.Author.ID]; dup {
			continue
		}
		seen[participant.Author.ID] = struct{}{}

		notification := &Notification{
			ID:               util.NewID("ntf"),
			RecipientActorID: participant.Author.ID,
			Type:             NotificationNewComment,
			Payload:          summary,
			CreatedAt:        now,
		}
		s.notifications[notification.ID] = notification
		s.byRecipient[notification.RecipientActorID] = append(s.byRecipient[notification.RecipientActorID], notification.ID)
		created = append(created, copyNotification(notification))
	}
	return created, nil
}

// MarkRead marks a notification read for its recipient. Calling it again for
// an already-read notification succeeds and changes nothing.
func (s *MemoryStore) MarkRead(ctx context.Context, notificationID, actorID string) (Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	notification, ok := s.notifications[notificationID]
	if !ok {
		return Notification{}, ErrNotFound
	}
	if notification.RecipientActorID != actorID {
		return Notification{}, ErrUnauthorized
	}
	if !notification.Read {
		notification.Read = true
		now := time.Now().UTC()
		notification.ReadAt = &now
	}
	return copyNotification(notification), nil
}

// ListUnread returns the actor's unread notifications, newest first.
func (s *MemoryStore) ListUnread(ctx context.Context, actorID string, limit int) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byRecipient[actorID]
	unread := []Notification{}
	for i := len(ids) - 1; i >= 0; i-- {
		notification := s.notifications[ids[i]]
		if notification.Read {
			continue
		}
		unread = append(unread, copyNotification(notification))
		if limit > 0 && len(unread) >= limit {
			break
		}
	}
	return unread, nil
}

// PurgeReadBefore drops read notifications created before the cutoff and
// reports how many were removed. Unread notifications are never purged.
func (s *MemoryStore) PurgeReadBefore(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for recipient, ids := range s.byRecipient {
		kept := ids[:0]
		for _, id := range ids {
			notification := s.notifications[id]
			if notification.Read && notification.CreatedAt.Before(cutoff) {
				delete(s.notifications, id)
				purged++
				continue
			}
			kept = append(kept, id)
		}
		if len(kept) == 0 {
			delete(s.byRecipient, recipient)
			continue
		}
		s.byRecipient[recipient] = kept
	}
	return purged, nil
}

// collect resolves ids to non-deleted comment snapshots sorted by CreatedAt
// ascending. The sort is stable over creation order, so equal timestamps keep
// their insertion order.
func (s *MemoryStore) collect(ids []string) []Comment {
	comments := make([]Comment, 0, len(ids))
	for _, id := range ids {
		comment := s.comments[id]
		if comment.IsDeleted {
			continue
		}
		comments = append(comments, copyComment(comment))
	}
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})
	return comments
}

func touch(comment *Comment) {
	now := time.Now().UTC()
	comment.UpdatedAt = &now
}

func redact(comment *Comment) {
	comment.IsDeleted = true
	comment.Content = RedactedContent
	touch(comment)
}

func removeReactor(comment *Comment, reactionType, actorID string) {
	reactors := comment.Reactions[reactionType]
	for i, reactor := range reactors {
		if reactor.ID == actorID {
			reactors = append(reactors[:i], reactors[i+1:]...)
			break
		}
	}
	if len(reactors) == 0 {
		delete(comment.Reactions, reactionType)
		return
	}
	comment.Reactions[reactionType] = reactors
}

func summarize(comment *Comment) CommentSummary {
	excerpt := comment.Content
	if runes := []rune(excerpt); len(runes) > excerptRunes {
		excerpt = string(runes[:excerptRunes]) + "…"
	}
	return CommentSummary{
		CommentID:  comment.ID,
		Anchor:     comment.Anchor,
		AuthorID:   comment.Author.ID,
		AuthorName: comment.Author.Name,
		Excerpt:    excerpt,
		CreatedAt:  comment.CreatedAt,
	}
}

func copyComment(comment *Comment) Comment {
	snapshot := *comment
	if comment.ParentID != nil {
		parentID := *comment.ParentID
		snapshot.ParentID = &parentID
	}
	if comment.UpdatedAt != nil {
		updatedAt := *comment.UpdatedAt
		snapshot.UpdatedAt = &updatedAt
	}
	snapshot.Reactions = make(map[string][]Actor, len(comment.Reactions))
	for reactionType, reactors := range comment.Reactions {
		snapshot.Reactions[reactionType] = append([]Actor{}, reactors...)
	}
	snapshot.ReplyIDs = append([]string{}, comment.ReplyIDs...)
	return snapshot
}

func copyNotification(notification *Notification) Notification {
	snapshot := *notification
	if notification.ReadAt != nil {
		readAt := *notification.ReadAt
		snapshot.ReadAt = &readAt
	}
	return snapshot
}
