package store

import "time"

// RedactedContent replaces the body of a soft-deleted comment. Once a comment
// carries this marker its content can never be mutated again.
const RedactedContent = "[Comment deleted]"

// NotificationNewComment is the only notification type the fanout produces.
const NotificationNewComment = "new_comment"

// Thread statuses stored per comment. Status is meaningful at annotation-thread
// granularity; the oldest comment's value is treated as the thread's status.
const (
	StatusOpen     = "open"
	StatusResolved = "resolved"
)

// AnchorKind discriminates the two anchoring schemes.
type AnchorKind string

const (
	// AnchorThread is the legacy (threadType, threadId) scheme.
	AnchorThread AnchorKind = "thread"
	// AnchorAnnotation anchors a comment to an annotation within an item.
	AnchorAnnotation AnchorKind = "annotation"
)

// AnchorKey identifies the discussion context a comment belongs to. Exactly one
// of the two schemes is populated; the variants are never merged.
type AnchorKey struct {
	Kind         AnchorKind `json:"kind"`
	ThreadType   string     `json:"threadType,omitempty"`
	ThreadID     string     `json:"threadId,omitempty"`
	ItemID       string     `json:"itemId,omitempty"`
	AnnotationID string     `json:"annotationId,omitempty"`
}

// ThreadAnchor builds a legacy thread anchor.
func ThreadAnchor(threadType, threadID string) AnchorKey {
	return AnchorKey{Kind: AnchorThread, ThreadType: threadType, ThreadID: threadID}
}

// AnnotationAnchor builds an annotation anchor.
func AnnotationAnchor(itemID, annotationID string) AnchorKey {
	return AnchorKey{Kind: AnchorAnnotation, ItemID: itemID, AnnotationID: annotationID}
}

// Topic returns the grouping and broadcast key for the anchor.
func (k AnchorKey) Topic() string {
	if k.Kind == AnchorThread {
		return "thread:" + k.ThreadType + ":" + k.ThreadID
	}
	return "annotation:" + k.ItemID + ":" + k.AnnotationID
}

// IsZero reports whether the anchor is unset.
func (k AnchorKey) IsZero() bool {
	return k.Kind == ""
}

// Actor is an identity snapshot attached to a connection. It is copied by value
// into comments and notifications at creation time; later identity changes do
// not rewrite past records.
type Actor struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	Color string `json:"color,omitempty"`
}

// Comment is the core entity. Anchor, Author, ParentID and CreatedAt are
// immutable after creation.
type Comment struct {
	ID        string             `json:"id"`
	Anchor    AnchorKey          `json:"anchor"`
	Author    Actor              `json:"author"`
	Content   string             `json:"content"`
	ParentID  *string            `json:"parentId,omitempty"`
	Status    string             `json:"status"`
	IsDeleted bool               `json:"isDeleted"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt *time.Time         `json:"updatedAt,omitempty"`
	Reactions map[string][]Actor `json:"reactions"`
	// ReplyIDs lists direct children in creation order. It is appended at
	// child creation and drives the one-level cascade on delete; read-side
	// tree assembly never consults it.
	ReplyIDs []string `json:"replyIds"`
}

// ReactionState is the post-toggle state of one reaction type on a comment.
type ReactionState struct {
	Type     string  `json:"type"`
	Reactors []Actor `json:"reactors"`
}

// CommentSummary is the denormalized payload carried by a notification.
type CommentSummary struct {
	CommentID  string    `json:"commentId"`
	Anchor     AnchorKey `json:"anchor"`
	AuthorID   string    `json:"authorId"`
	AuthorName string    `json:"authorName"`
	Excerpt    string    `json:"excerpt"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Notification is materialized by the fanout when a comment is created. Read is
// monotonic false to true.
type Notification struct {
	ID               string         `json:"id"`
	RecipientActorID string         `json:"recipientActorId"`
	Type             string         `json:"type"`
	Payload          CommentSummary `json:"payload"`
	Read             bool           `json:"read"`
	CreatedAt        time.Time      `json:"createdAt"`
	ReadAt           *time.Time     `json:"readAt,omitempty"`
}
