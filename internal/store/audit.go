package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AuditRecord is one recorded approval decision. AuditID is the advisory
// label shown to users and may repeat; ID is the row key.
type AuditRecord struct {
	ID          string    `json:"id"`
	AuditID     string    `json:"audit_id"`
	SessionID   string    `json:"session_id"`
	RequestID   string    `json:"request_id"`
	Username    string    `json:"username"`
	RequestType string    `json:"request_type"`
	Decision    string    `json:"decision"`
	Actor       string    `json:"actor,omitempty"`
	DecidedAt   time.Time `json:"decided_at"`
	CreatedAt   time.Time `json:"created_at"`
}

type RecordApprovalDecisionInput struct {
	AuditID     string
	SessionID   string
	RequestID   string
	Username    string
	RequestType string
	Decision    string
	Actor       string
	DecidedAt   time.Time
}

func (s *Store) RecordApprovalDecision(ctx context.Context, input RecordApprovalDecisionInput) (AuditRecord, error) {
	now := time.Now().UTC()
	decidedAt := input.DecidedAt.UTC()
	if input.DecidedAt.IsZero() {
		decidedAt = now
	}
	record := AuditRecord{
		ID:          "aud_" + uuid.NewString(),
		AuditID:     strings.TrimSpace(input.AuditID),
		SessionID:   strings.TrimSpace(input.SessionID),
		RequestID:   strings.TrimSpace(input.RequestID),
		Username:    strings.TrimSpace(input.Username),
		RequestType: strings.TrimSpace(input.RequestType),
		Decision:    strings.ToLower(strings.TrimSpace(input.Decision)),
		Actor:       strings.TrimSpace(input.Actor),
		DecidedAt:   decidedAt,
		CreatedAt:   now,
	}
	if record.AuditID == "" || record.SessionID == "" || record.RequestID == "" || record.Username == "" || record.Decision == "" {
		return AuditRecord{}, fmt.Errorf("missing required approval audit fields")
	}

	if _, err := s.db.ExecContext(
		ctx,
		`INSERT INTO approval_audit (
			id, audit_id, session_id, request_id, username, request_type, decision, actor, decided_at_unix, created_at_unix
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.AuditID,
		record.SessionID,
		record.RequestID,
		record.Username,
		record.RequestType,
		record.Decision,
		nullIfEmpty(record.Actor),
		record.DecidedAt.UnixMilli(),
		record.CreatedAt.UnixMilli(),
	); err != nil {
		return AuditRecord{}, fmt.Errorf("insert approval audit: %w", err)
	}
	return record, nil
}

type ListAuditRecordsInput struct {
	SessionID string
	RequestID string
	Decision  string
	Limit     int
}

// ListAuditRecords returns the newest decisions first.
func (s *Store) ListAuditRecords(ctx context.Context, input ListAuditRecordsInput) ([]AuditRecord, error) {
	limit := input.Limit
	if limit < 1 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	whereParts := []string{"1=1"}
	args := make([]any, 0, 4)

	if sessionID := strings.TrimSpace(input.SessionID); sessionID != "" {
		whereParts = append(whereParts, "session_id = ?")
		args = append(args, sessionID)
	}
	if requestID := strings.TrimSpace(input.RequestID); requestID != "" {
		whereParts = append(whereParts, "request_id = ?")
		args = append(args, requestID)
	}
	if decision := strings.ToLower(strings.TrimSpace(input.Decision)); decision != "" {
		whereParts = append(whereParts, "decision = ?")
		args = append(args, decision)
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, audit_id, session_id, request_id, username, request_type, decision, COALESCE(actor, ''), decided_at_unix, created_at_unix
		 FROM approval_audit
		 WHERE `+strings.Join(whereParts, " AND ")+`
		 ORDER BY decided_at_unix DESC, created_at_unix DESC
		 LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query approval audit: %w", err)
	}
	defer rows.Close()

	records := make([]AuditRecord, 0, limit)
	for rows.Next() {
		var record AuditRecord
		var decidedAtUnix, createdAtUnix int64
		if err := rows.Scan(
			&record.ID,
			&record.AuditID,
			&record.SessionID,
			&record.RequestID,
			&record.Username,
			&record.RequestType,
			&record.Decision,
			&record.Actor,
			&decidedAtUnix,
			&createdAtUnix,
		); err != nil {
			return nil, err
		}
		record.DecidedAt = time.UnixMilli(decidedAtUnix).UTC()
		record.CreatedAt = time.UnixMilli(createdAtUnix).UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan approval audit: %w", err)
	}
	return records, nil
}

func (s *Store) ListAuditRecordsForRequest(ctx context.Context, sessionID, requestID string) ([]AuditRecord, error) {
	if strings.TrimSpace(requestID) == "" {
		return nil, fmt.Errorf("request id is required")
	}
	return s.ListAuditRecords(ctx, ListAuditRecordsInput{SessionID: sessionID, RequestID: requestID})
}
