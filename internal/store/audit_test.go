package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "accessbot_test.sqlite")
	sqlStore, err := New(dbPath)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { _ = sqlStore.Close() })
	if err := sqlStore.AutoMigrate(context.Background()); err != nil {
		t.Fatalf("migrate test store: %v", err)
	}
	return sqlStore
}

func TestRecordAndListApprovalDecisions(t *testing.T) {
	sqlStore := newTestStore(t)
	ctx := context.Background()
	decidedAt := time.Date(2026, time.March, 3, 9, 30, 0, 0, time.UTC)

	created, err := sqlStore.RecordApprovalDecision(ctx, RecordApprovalDecisionInput{
		AuditID:     "AUD-20260303-0042",
		SessionID:   "s-1",
		RequestID:   "req-001",
		Username:    "alice.w",
		RequestType: "Network AD password reset",
		Decision:    "Approve",
		Actor:       "accessadmin",
		DecidedAt:   decidedAt,
	})
	if err != nil {
		t.Fatalf("record decision: %v", err)
	}
	if created.ID == "" || created.Decision != "approve" {
		t.Fatalf("unexpected record %+v", created)
	}

	if _, err := sqlStore.RecordApprovalDecision(ctx, RecordApprovalDecisionInput{
		AuditID:     "AUD-20260303-0042",
		SessionID:   "s-2",
		RequestID:   "req-001",
		Username:    "dan.j",
		RequestType: "Lakebaas Reset",
		Decision:    "reject",
		DecidedAt:   decidedAt.Add(time.Minute),
	}); err != nil {
		t.Fatalf("record colliding audit id: %v", err)
	}

	records, err := sqlStore.ListAuditRecords(ctx, ListAuditRecordsInput{Limit: 10})
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].SessionID != "s-2" {
		t.Fatalf("expected newest first, got %s", records[0].SessionID)
	}
	if records[0].Actor != "" {
		t.Fatalf("expected empty actor, got %q", records[0].Actor)
	}

	forRequest, err := sqlStore.ListAuditRecordsForRequest(ctx, "s-1", "req-001")
	if err != nil {
		t.Fatalf("list for request: %v", err)
	}
	if len(forRequest) != 1 || !forRequest[0].DecidedAt.Equal(decidedAt) {
		t.Fatalf("unexpected request records %+v", forRequest)
	}

	rejected, err := sqlStore.ListAuditRecords(ctx, ListAuditRecordsInput{Decision: "REJECT"})
	if err != nil {
		t.Fatalf("list rejected: %v", err)
	}
	if len(rejected) != 1 || rejected[0].Username != "dan.j" {
		t.Fatalf("unexpected rejected records %+v", rejected)
	}
}

func TestRecordApprovalDecisionRequiresFields(t *testing.T) {
	sqlStore := newTestStore(t)
	if _, err := sqlStore.RecordApprovalDecision(context.Background(), RecordApprovalDecisionInput{AuditID: "AUD-20260303-0001"}); err == nil {
		t.Fatal("expected missing field error")
	}
	if _, err := sqlStore.ListAuditRecordsForRequest(context.Background(), "s-1", " "); err == nil {
		t.Fatal("expected request id error")
	}
}

func TestPing(t *testing.T) {
	sqlStore := newTestStore(t)
	if err := sqlStore.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
