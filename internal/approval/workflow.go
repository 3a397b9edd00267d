// Package approval owns approval requests and the only transition they allow:
// pending to approved or rejected.
package approval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	ErrRequestNotFound  = errors.New("approval request not found")
	ErrNotPending       = errors.New("approval request is not pending")
	ErrInvalidDecision  = errors.New("invalid approval decision")
	ErrDuplicateRequest = errors.New("approval request already exists")
	ErrInvalidRequest   = errors.New("invalid approval request")
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

func ParseDecision(value string) (Decision, error) {
	switch Decision(strings.ToLower(strings.TrimSpace(value))) {
	case DecisionApprove:
		return DecisionApprove, nil
	case DecisionReject:
		return DecisionReject, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDecision, value)
	}
}

func (d Decision) Status() Status {
	if d == DecisionApprove {
		return StatusApproved
	}
	return StatusRejected
}

type Request struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	RequestType string    `json:"request_type"`
	RequestedBy string    `json:"requested_by"`
	Reason      string    `json:"reason"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	DecidedAt   time.Time `json:"decided_at,omitzero"`
	DecidedBy   string    `json:"decided_by,omitempty"`
	AuditID     string    `json:"audit_id,omitempty"`
}

type OpenInput struct {
	ID          string
	Username    string
	RequestType string
	RequestedBy string
	Reason      string
}

type DecideInput struct {
	RequestID string
	Decision  Decision
	Actor     string
}

type AuditEntry struct {
	SessionID   string
	AuditID     string
	RequestID   string
	Username    string
	RequestType string
	Decision    Decision
	Actor       string
	DecidedAt   time.Time
}

// Recorder persists decisions outside the session. A recorder error aborts
// the transition.
type Recorder interface {
	RecordApprovalDecision(ctx context.Context, entry AuditEntry) error
}

type Outcome struct {
	Request Request `json:"request"`
	AuditID string  `json:"audit_id"`
}

func (o Outcome) Confirmation() string {
	return fmt.Sprintf("Request %s has been %s. Audit ID: %s", o.Request.ID, o.Request.Status, o.AuditID)
}

type Options struct {
	// SessionID is copied into every AuditEntry.
	SessionID string
	Now       func() time.Time
	Suffix    SuffixSource
	Recorder  Recorder
}

type Workflow struct {
	mu        sync.Mutex
	requests  map[string]*Request
	seq       int
	sessionID string
	now       func() time.Time
	suffix    SuffixSource
	recorder  Recorder
}

func NewWorkflow(opts Options) *Workflow {
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	suffix := opts.Suffix
	if suffix == nil {
		suffix = NewRandomSuffix(0)
	}
	return &Workflow{
		requests:  map[string]*Request{},
		sessionID: opts.SessionID,
		now:       now,
		suffix:    suffix,
		recorder:  opts.Recorder,
	}
}

// Open registers a pending request. Without an explicit ID the workflow
// assigns req-001, req-002, ... skipping ids already taken.
func (w *Workflow) Open(input OpenInput) (Request, error) {
	username := strings.TrimSpace(input.Username)
	requestType := strings.TrimSpace(input.RequestType)
	if username == "" || requestType == "" {
		return Request{}, fmt.Errorf("%w: username and request type are required", ErrInvalidRequest)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	id := strings.TrimSpace(input.ID)
	if id == "" {
		id = w.nextIDLocked()
	} else if _, exists := w.requests[id]; exists {
		return Request{}, fmt.Errorf("%w: %s", ErrDuplicateRequest, id)
	}

	request := &Request{
		ID:          id,
		Username:    username,
		RequestType: requestType,
		RequestedBy: strings.TrimSpace(input.RequestedBy),
		Reason:      strings.TrimSpace(input.Reason),
		Status:      StatusPending,
		CreatedAt:   w.now(),
	}
	w.requests[id] = request
	return *request, nil
}

// Decide moves a pending request to its terminal state. The status check,
// audit id and optional recording happen under one lock, so concurrent
// decisions on the same id produce exactly one winner.
func (w *Workflow) Decide(ctx context.Context, input DecideInput) (Outcome, error) {
	requestID := strings.TrimSpace(input.RequestID)
	if requestID == "" {
		return Outcome{}, fmt.Errorf("%w: request id is required", ErrInvalidDecision)
	}
	if input.Decision != DecisionApprove && input.Decision != DecisionReject {
		return Outcome{}, fmt.Errorf("%w: %q", ErrInvalidDecision, input.Decision)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	request, ok := w.requests[requestID]
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s", ErrRequestNotFound, requestID)
	}
	if request.Status != StatusPending {
		return Outcome{}, fmt.Errorf("%w: %s is %s", ErrNotPending, requestID, request.Status)
	}

	decidedAt := w.now()
	auditID := FormatAuditID(decidedAt, w.suffix.Next(auditDay(decidedAt)))
	if w.recorder != nil {
		entry := AuditEntry{
			SessionID:   w.sessionID,
			AuditID:     auditID,
			RequestID:   request.ID,
			Username:    request.Username,
			RequestType: request.RequestType,
			Decision:    input.Decision,
			Actor:       strings.TrimSpace(input.Actor),
			DecidedAt:   decidedAt,
		}
		if err := w.recorder.RecordApprovalDecision(ctx, entry); err != nil {
			return Outcome{}, fmt.Errorf("record approval decision: %w", err)
		}
	}

	request.Status = input.Decision.Status()
	request.DecidedAt = decidedAt
	request.DecidedBy = strings.TrimSpace(input.Actor)
	request.AuditID = auditID
	return Outcome{Request: *request, AuditID: auditID}, nil
}

func (w *Workflow) Get(id string) (Request, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	request, ok := w.requests[strings.TrimSpace(id)]
	if !ok {
		return Request{}, fmt.Errorf("%w: %s", ErrRequestNotFound, id)
	}
	return *request, nil
}

// List returns every request ordered by creation, oldest first.
func (w *Workflow) List() []Request {
	w.mu.Lock()
	defer w.mu.Unlock()
	results := make([]Request, 0, len(w.requests))
	for _, request := range w.requests {
		results = append(results, *request)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].ID < results[j].ID
		}
		return results[i].CreatedAt.Before(results[j].CreatedAt)
	})
	return results
}

func (w *Workflow) nextIDLocked() string {
	for {
		w.seq++
		id := fmt.Sprintf("req-%03d", w.seq)
		if _, exists := w.requests[id]; !exists {
			return id
		}
	}
}
