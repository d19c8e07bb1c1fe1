// Package validate checks inbound payloads before they reach the comment
// core. The core assumes these constraints hold and does not re-check them.
package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var v = validator.New(validator.WithRequiredStructEnabled())

// CreateCommentRequest is the inbound shape for comment creation. A request
// is a reply when IsReply is set or Type is "reply"; replies target an
// existing annotation thread.
type CreateCommentRequest struct {
	Content            string `json:"content" validate:"required,min=1,max=2000"`
	Type               string `json:"type" validate:"omitempty,oneof=comment reply"`
	IsReply            bool   `json:"isReply"`
	ThreadType         string `json:"threadType" validate:"omitempty,oneof=general question suggestion issue"`
	ThreadID           string `json:"threadId"`
	ItemID             string `json:"itemId"`
	AnnotationID       string `json:"annotationId"`
	ParentAnnotationID string `json:"parentAnnotationId"`
	ParentCommentID    string `json:"parentCommentId"`
}

// UpdateCommentRequest is the inbound shape for content edits.
type UpdateCommentRequest struct {
	Content string `json:"content" validate:"required,min=1,max=2000"`
}

// ReactionRequest is the inbound shape for reaction toggles.
type ReactionRequest struct {
	Type         string `json:"type" validate:"required,oneof=like heart celebrate insightful laugh"`
	AnnotationID string `json:"annotationId"`
}

// StatusRequest is the inbound shape for thread status updates.
type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=open resolved"`
}

// Check validates a payload and flattens rule violations into one error.
func Check(payload any) error {
	err := v.Struct(payload)
	if err == nil {
		return nil
	}
	var violations validator.ValidationErrors
	if !errors.As(err, &violations) {
		return err
	}
	fields := make([]string, 0, len(violations))
	for _, violation := range violations {
		fields = append(fields, fmt.Sprintf("%s (%s)", violation.Field(), violation.Tag()))
	}
	return fmt.Errorf("invalid fields: %s", strings.Join(fields, ", "))
}
