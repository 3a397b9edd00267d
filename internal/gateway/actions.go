package gateway

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dwizi/accessbot/internal/approval"
	"github.com/dwizi/accessbot/internal/command"
	"github.com/dwizi/accessbot/internal/scheduler"
	"github.com/dwizi/accessbot/internal/session"
	"github.com/dwizi/accessbot/internal/transcript"
)

var (
	ErrUnknownAction  = errors.New("unknown card action")
	ErrInvalidPayload = errors.New("invalid card action payload")
)

const (
	ActionOpenAdmin        = "open-admin"
	ActionOpenUser         = "open-user"
	ActionViewUser         = "view-user"
	ActionDismissAnomaly   = "dismiss-anomaly"
	ActionApprove          = "approve"
	ActionReject           = "reject"
	ActionCheckTokenStatus = "check-token-status"
	ActionDownloadGuide    = "download-guide"
)

const staticTokenStatusText = "Token Status: Not registered. Next step: Follow step 2 to register your token."

// Navigator opens URLs on behalf of the user, e.g. a browser bridge.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
}

type TokenStatus interface {
	Status(ctx context.Context, username string) (string, error)
}

// StaticTokenStatus answers every query with the same registration hint.
type StaticTokenStatus struct{}

func (StaticTokenStatus) Status(context.Context, string) (string, error) {
	return staticTokenStatusText, nil
}

type ActionData struct {
	URL       string `json:"url,omitempty"`
	Username  string `json:"username,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

type ActionInput struct {
	Action string     `json:"action"`
	Data   ActionData `json:"data"`
}

type ActionOutput struct {
	Action    string            `json:"action"`
	OpenURL   string            `json:"open_url,omitempty"`
	Outcome   *approval.Outcome `json:"outcome,omitempty"`
	Scheduled []scheduler.Token `json:"-"`
}

type actionHandler func(ctx context.Context, sess *session.Session, data ActionData, output *ActionOutput) error

func (s *Service) actionTable() map[string]actionHandler {
	return map[string]actionHandler{
		ActionOpenAdmin:        s.handleOpenURL,
		ActionOpenUser:         s.handleOpenURL,
		ActionViewUser:         s.handleViewUser,
		ActionDismissAnomaly:   s.handleDismissAnomaly,
		ActionApprove:          s.decisionHandler(approval.DecisionApprove),
		ActionReject:           s.decisionHandler(approval.DecisionReject),
		ActionCheckTokenStatus: s.handleCheckTokenStatus,
		ActionDownloadGuide:    s.handleDownloadGuide,
	}
}

// Actions lists the card action names the router accepts.
func (s *Service) Actions() []string {
	names := make([]string, 0, len(s.actions))
	for name := range s.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HandleAction routes a card action to exactly one handler. Unknown names are
// reported, never dropped.
func (s *Service) HandleAction(ctx context.Context, sess *session.Session, input ActionInput) (ActionOutput, error) {
	name := strings.TrimSpace(input.Action)
	handler, ok := s.actions[name]
	if !ok {
		sess.Logger().Warn("unknown card action rejected", "action", input.Action)
		return ActionOutput{}, fmt.Errorf("%w: %q", ErrUnknownAction, input.Action)
	}
	output := ActionOutput{Action: name}
	if err := handler(ctx, sess, input.Data, &output); err != nil {
		sess.Logger().Warn("card action failed", "action", name, "error", err)
		return output, err
	}
	sess.Logger().Info("card action handled", "action", name)
	return output, nil
}

func (s *Service) handleOpenURL(ctx context.Context, _ *session.Session, data ActionData, output *ActionOutput) error {
	url := strings.TrimSpace(data.URL)
	if url == "" {
		return fmt.Errorf("%w: %s requires a url", ErrInvalidPayload, output.Action)
	}
	if s.navigator != nil {
		if err := s.navigator.Navigate(ctx, url); err != nil {
			return fmt.Errorf("navigate to %s: %w", url, err)
		}
	}
	output.OpenURL = url
	return nil
}

// handleViewUser behaves as if the participant had typed "show user <name>",
// minus the echoed user message.
func (s *Service) handleViewUser(ctx context.Context, sess *session.Session, data ActionData, output *ActionOutput) error {
	receivedAt := sess.Now()
	cmd := command.Command{Verb: command.VerbShowUser, Args: strings.Fields(data.Username)}
	output.Scheduled = s.schedule(sess, receivedAt, s.plan(ctx, sess, cmd))
	return nil
}

func (s *Service) handleDismissAnomaly(context.Context, *session.Session, ActionData, *ActionOutput) error {
	return nil
}

func (s *Service) decisionHandler(decision approval.Decision) actionHandler {
	return func(ctx context.Context, sess *session.Session, data ActionData, output *ActionOutput) error {
		requestID := strings.TrimSpace(data.RequestID)
		if requestID == "" {
			return fmt.Errorf("%w: %s requires a requestId", ErrInvalidPayload, output.Action)
		}
		receivedAt := sess.Now()
		outcome, err := sess.Workflow().Decide(ctx, approval.DecideInput{
			RequestID: requestID,
			Decision:  decision,
			Actor:     sess.Participant().ID,
		})
		if err != nil {
			output.Scheduled = s.scheduleAction(sess, receivedAt, decisionFailureText(requestID, decision, err))
			return err
		}
		output.Outcome = &outcome
		output.Scheduled = s.scheduleAction(sess, receivedAt, outcome.Confirmation())
		sess.Logger().Info("approval decided", "request_id", requestID, "decision", string(decision), "audit_id", outcome.AuditID)
		return nil
	}
}

func (s *Service) handleCheckTokenStatus(ctx context.Context, sess *session.Session, data ActionData, output *ActionOutput) error {
	username := orDefault(data.Username, sess.Participant().ID)
	status, err := s.tokens.Status(ctx, username)
	if err != nil {
		return fmt.Errorf("token status for %s: %w", username, err)
	}
	output.Scheduled = s.scheduleAction(sess, sess.Now(), status)
	return nil
}

func (s *Service) handleDownloadGuide(_ context.Context, _ *session.Session, data ActionData, output *ActionOutput) error {
	output.OpenURL = orDefault(data.URL, s.config.GuideURL)
	return nil
}

func (s *Service) scheduleAction(sess *session.Session, receivedAt time.Time, content string) []scheduler.Token {
	return s.schedule(sess, receivedAt, []reply{{offset: s.config.ActionDelay, draft: transcript.Draft{Content: content}}})
}

func decisionFailureText(requestID string, decision approval.Decision, err error) string {
	verb := string(decision.Status())
	switch {
	case errors.Is(err, approval.ErrRequestNotFound):
		return fmt.Sprintf("Request %s was not found. No change was made.", requestID)
	case errors.Is(err, approval.ErrNotPending):
		return fmt.Sprintf("Request %s could not be %s because it is no longer pending. No change was made.", requestID, verb)
	default:
		return fmt.Sprintf("Request %s could not be %s. No change was made.", requestID, verb)
	}
}

func approvalOpenInput(username string, config Config, requestedBy string) approval.OpenInput {
	return approval.OpenInput{
		Username:    username,
		RequestType: config.ResetRequestType,
		RequestedBy: requestedBy,
		Reason:      config.ResetReason,
	}
}
