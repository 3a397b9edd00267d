package app

import (
	"context"

	"github.com/dwizi/accessbot/internal/approval"
	"github.com/dwizi/accessbot/internal/store"
)

// auditRecorder archives approval decisions in sqlite.
type auditRecorder struct {
	store *store.Store
}

func (r auditRecorder) RecordApprovalDecision(ctx context.Context, entry approval.AuditEntry) error {
	_, err := r.store.RecordApprovalDecision(ctx, store.RecordApprovalDecisionInput{
		AuditID:     entry.AuditID,
		SessionID:   entry.SessionID,
		RequestID:   entry.RequestID,
		Username:    entry.Username,
		RequestType: entry.RequestType,
		Decision:    string(entry.Decision),
		Actor:       entry.Actor,
		DecidedAt:   entry.DecidedAt,
	})
	return err
}
