package app

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"marginalia/api/internal/auth"
	"marginalia/api/internal/authpw"
	"marginalia/api/internal/config"
	"marginalia/api/internal/search"
	"marginalia/api/internal/session"
	"marginalia/api/internal/store"
	"marginalia/api/internal/util"
	"marginalia/api/internal/validate"
)

// Broadcast event names relayed verbatim to anchor subscribers.
const (
	EventCommentAdded         = "comment_added"
	EventCommentUpdated       = "comment_updated"
	EventCommentDeleted       = "comment_deleted"
	EventReactionAdded        = "reaction_added"
	EventCommentStatusUpdated = "comment_status_updated"
)

type Session struct {
	Token        string
	RefreshToken string
	Actor        store.Actor
	JTI          string
	ExpiresAt    time.Time
}

type commentStore interface {
	CreateComment(context.Context, store.CreateCommentParams) (store.Comment, error)
	ResolveReplyTarget(ctx context.Context, annotationID, parentCommentID string) (store.AnchorKey, string, error)
	UpdateContent(ctx context.Context, id, content, actorID string) (store.Comment, error)
	SoftDelete(ctx context.Context, id, actorID string) (store.Comment, error)
	UpdateStatus(ctx context.Context, annotationID, status string, actor store.Actor) (bool, error)
	GetComment(ctx context.Context, id string) (store.Comment, error)
	ToggleReaction(ctx context.Context, commentID, annotationID string, actor store.Actor, reactionType string) (store.ReactionState, error)
	ListByAnchor(ctx context.Context, anchor store.AnchorKey) ([]store.Comment, error)
	ListByItem(ctx context.Context, itemID string) ([]store.Comment, error)
	ListByAnnotation(ctx context.Context, annotationID string) ([]store.Comment, error)
	FanOutCommentCreated(ctx context.Context, commentID string) ([]store.Notification, error)
	MarkRead(ctx context.Context, notificationID, actorID string) (store.Notification, error)
	ListUnread(ctx context.Context, actorID string, limit int) ([]store.Notification, error)
	PurgeReadBefore(ctx context.Context, cutoff time.Time) (int, error)
}

type sessionStore interface {
	Save(ctx context.Context, tokenHash string, actor store.Actor, expiresAt time.Time) error
	Lookup(ctx context.Context, tokenHash string) (store.Actor, error)
	Revoke(ctx context.Context, tokenHash string) error
	Ping(ctx context.Context) error
}

type publisher interface {
	Publish(ctx context.Context, topic, event string, payload any) error
}

type searchIndex interface {
	IndexComment(record search.CommentRecord)
	DeleteComment(id string)
	Search(q search.Query) search.Response
}

type accountDirectory interface {
	SignUp(ctx context.Context, req authpw.SignUpRequest) (store.Actor, error)
	SignIn(ctx context.Context, email, password string) (store.Actor, error)
}

type Service struct {
	cfg      config.Config
	store    commentStore
	sessions sessionStore
	accounts accountDirectory
	gateway  publisher
	search   searchIndex
}

func New(cfg config.Config, comments *store.MemoryStore, sessions *session.RedisStore, accounts *authpw.Service, gateway publisher, searchService *search.Service) *Service {
	return &Service{
		cfg:      cfg,
		store:    comments,
		sessions: sessions,
		accounts: accounts,
		gateway:  gateway,
		search:   searchService,
	}
}

// === Sessions ===

func (s *Service) SignUp(ctx context.Context, req authpw.SignUpRequest) (Session, error) {
	actor, err := s.accounts.SignUp(ctx, req)
	if err != nil {
		return Session{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	}
	return s.issueSession(ctx, actor)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	actor, err := s.accounts.SignIn(ctx, email, password)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, actor)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	actor, err := s.sessions.Lookup(ctx, tokenHash)
	if err != nil {
		return Session{}, auth.ErrInvalidToken
	}
	// Rotate: the presented refresh token is single-use.
	if err := s.sessions.Revoke(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, actor)
}

func (s *Service) issueSession(ctx context.Context, actor store.Actor) (Session, error) {
	jti := util.NewID("jti")
	expiresAt := time.Now().Add(s.cfg.AccessTTL)
	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:   actor.ID,
		Name:  actor.Name,
		Email: actor.Email,
		Role:  actor.Role,
		Color: actor.Color,
		JTI:   jti,
		Exp:   expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refreshToken := util.NewID("rft")
	refreshExpiry := time.Now().Add(s.cfg.RefreshTTL)
	if err := s.sessions.Save(ctx, auth.HashToken(refreshToken), actor, refreshExpiry); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refreshToken,
		Actor:        actor,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

// SessionFromToken resolves the actor snapshot carried by an access token.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token: token,
		Actor: store.Actor{
			ID:    claims.Sub,
			Name:  claims.Name,
			Email: claims.Email,
			Role:  claims.Role,
			Color: claims.Color,
		},
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.sessions.Revoke(ctx, auth.HashToken(refreshToken))
}

// === Comments ===

// CreateComment validates the request, resolves its anchor, creates the
// comment, fans out notifications to current thread participants and
// broadcasts comment_added.
func (s *Service) CreateComment(ctx context.Context, actor store.Actor, input validate.CreateCommentRequest) (store.Comment, error) {
	if err := validate.Check(input); err != nil {
		return store.Comment{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	}

	anchor, parentID, err := s.resolveAnchor(ctx, input)
	if err != nil {
		return store.Comment{}, err
	}

	params := store.CreateCommentParams{
		Anchor:  anchor,
		Content: input.Content,
		Author:  actor,
	}
	if parentID != "" {
		params.ParentID = &parentID
	}
	comment, err := s.store.CreateComment(ctx, params)
	if err != nil {
		return store.Comment{}, err
	}

	if _, err := s.store.FanOutCommentCreated(ctx, comment.ID); err != nil {
		log.Printf("service: fanout for %s: %v", comment.ID, err)
	}
	s.publish(ctx, comment.Anchor.Topic(), EventCommentAdded, comment)
	s.search.IndexComment(commentRecord(comment))
	return comment, nil
}

// resolveAnchor turns the inbound addressing fields into one AnchorKey.
// Replies locate their thread through the annotation id; fresh annotation
// comments may mint a new annotation id; legacy thread comments carry the
// (threadType, threadId) pair.
func (s *Service) resolveAnchor(ctx context.Context, input validate.CreateCommentRequest) (store.AnchorKey, string, error) {
	if input.IsReply || input.Type == "reply" {
		annotationID := strings.TrimSpace(input.ParentAnnotationID)
		if annotationID == "" {
			annotationID = strings.TrimSpace(input.AnnotationID)
		}
		if annotationID == "" {
			return store.AnchorKey{}, "", domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "replies require an annotation id", nil)
		}
		return s.store.ResolveReplyTarget(ctx, annotationID, strings.TrimSpace(input.ParentCommentID))
	}

	if threadID := strings.TrimSpace(input.ThreadID); threadID != "" {
		threadType := input.ThreadType
		if threadType == "" {
			threadType = "general"
		}
		return store.ThreadAnchor(threadType, threadID), strings.TrimSpace(input.ParentCommentID), nil
	}

	itemID := strings.TrimSpace(input.ItemID)
	if itemID == "" {
		return store.AnchorKey{}, "", domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "itemId or threadId is required", nil)
	}
	annotationID := strings.TrimSpace(input.AnnotationID)
	if annotationID == "" {
		annotationID = util.NewID("ann")
	}
	return store.AnnotationAnchor(itemID, annotationID), strings.TrimSpace(input.ParentCommentID), nil
}

func (s *Service) UpdateComment(ctx context.Context, actor store.Actor, commentID string, input validate.UpdateCommentRequest) (store.Comment, error) {
	if err := validate.Check(input); err != nil {
		return store.Comment{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	}
	comment, err := s.store.UpdateContent(ctx, commentID, input.Content, actor.ID)
	if err != nil {
		return store.Comment{}, err
	}
	s.publish(ctx, comment.Anchor.Topic(), EventCommentUpdated, comment)
	s.search.IndexComment(commentRecord(comment))
	return comment, nil
}

func (s *Service) DeleteComment(ctx context.Context, actor store.Actor, commentID string) (store.Comment, error) {
	comment, err := s.store.SoftDelete(ctx, commentID, actor.ID)
	if err != nil {
		return store.Comment{}, err
	}
	s.publish(ctx, comment.Anchor.Topic(), EventCommentDeleted, map[string]any{
		"id":       comment.ID,
		"anchor":   comment.Anchor,
		"replyIds": comment.ReplyIDs,
	})
	s.search.DeleteComment(comment.ID)
	for _, replyID := range comment.ReplyIDs {
		s.search.DeleteComment(replyID)
	}
	return comment, nil
}

func (s *Service) ToggleReaction(ctx context.Context, actor store.Actor, commentID string, input validate.ReactionRequest) (store.ReactionState, error) {
	if err := validate.Check(input); err != nil {
		return store.ReactionState{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	}
	state, err := s.store.ToggleReaction(ctx, commentID, strings.TrimSpace(input.AnnotationID), actor, input.Type)
	if err != nil {
		return store.ReactionState{}, err
	}
	comment, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return store.ReactionState{}, err
	}
	s.publish(ctx, comment.Anchor.Topic(), EventReactionAdded, map[string]any{
		"commentId": commentID,
		"type":      state.Type,
		"reactors":  state.Reactors,
	})
	return state, nil
}

func (s *Service) UpdateThreadStatus(ctx context.Context, actor store.Actor, annotationID string, input validate.StatusRequest) error {
	if err := validate.Check(input); err != nil {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	}
	found, err := s.store.UpdateStatus(ctx, annotationID, input.Status, actor)
	if err != nil {
		return err
	}
	if !found {
		return store.ErrNotFound
	}
	comments, err := s.store.ListByAnnotation(ctx, annotationID)
	if err != nil {
		return err
	}
	if len(comments) > 0 {
		s.publish(ctx, comments[0].Anchor.Topic(), EventCommentStatusUpdated, map[string]any{
			"annotationId": annotationID,
			"status":       input.Status,
			"updatedBy":    actor,
		})
	}
	return nil
}

// === Notifications ===

func (s *Service) MarkNotificationRead(ctx context.Context, actor store.Actor, notificationID string) (store.Notification, error) {
	return s.store.MarkRead(ctx, notificationID, actor.ID)
}

func (s *Service) ListUnreadNotifications(ctx context.Context, actor store.Actor, limit int) ([]store.Notification, error) {
	return s.store.ListUnread(ctx, actor.ID, limit)
}

// RunNotificationJanitor purges read notifications past the retention horizon
// until the context is cancelled. Meant to run on its own goroutine.
func (s *Service) RunNotificationJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-s.cfg.NotificationRetention)
			purged, err := s.store.PurgeReadBefore(ctx, cutoff)
			if err != nil {
				log.Printf("janitor: purge notifications: %v", err)
				continue
			}
			if purged > 0 {
				log.Printf("janitor: purged %d read notifications", purged)
			}
		}
	}
}

// === Search ===

func (s *Service) SearchComments(ctx context.Context, text, itemID string, limit int) search.Response {
	return s.search.Search(search.Query{Text: text, FilterItemID: itemID, Limit: limit})
}

func (s *Service) Ping(ctx context.Context) error {
	return s.sessions.Ping(ctx)
}

// publish hands a mutation event to the broadcast gateway. Delivery is best
// effort; the mutation has already committed and is visible to reads.
func (s *Service) publish(ctx context.Context, topic, event string, payload any) {
	if err := s.gateway.Publish(ctx, topic, event, payload); err != nil {
		log.Printf("service: publish %s on %s: %v", event, topic, err)
	}
}

func commentRecord(comment store.Comment) search.CommentRecord {
	return search.CommentRecord{
		ID:           comment.ID,
		Body:         comment.Content,
		ItemID:       comment.Anchor.ItemID,
		AnnotationID: comment.Anchor.AnnotationID,
		AuthorName:   comment.Author.Name,
	}
}
