package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dwizi/accessbot/internal/approval"
	"github.com/dwizi/accessbot/internal/transcript"
	"github.com/google/go-cmp/cmp"
)

type fakeNavigator struct {
	urls []string
	err  error
}

func (f *fakeNavigator) Navigate(_ context.Context, url string) error {
	f.urls = append(f.urls, url)
	return f.err
}

type fakeTokenStatus struct {
	asked string
}

func (f *fakeTokenStatus) Status(_ context.Context, username string) (string, error) {
	f.asked = username
	return "Token Status: Registered.", nil
}

func TestOpenActionsRequireURLAndNavigate(t *testing.T) {
	h := newHarness(t, nil)
	navigator := &fakeNavigator{}
	h.service.SetNavigator(navigator)

	for _, action := range []string{ActionOpenAdmin, ActionOpenUser} {
		if _, err := h.service.HandleAction(context.Background(), h.session, ActionInput{Action: action}); !errors.Is(err, ErrInvalidPayload) {
			t.Fatalf("expected invalid payload for %s, got %v", action, err)
		}
		output, err := h.service.HandleAction(context.Background(), h.session, ActionInput{
			Action: action,
			Data:   ActionData{URL: "https://payroll.example/admin"},
		})
		if err != nil {
			t.Fatalf("%s: %v", action, err)
		}
		if output.OpenURL != "https://payroll.example/admin" {
			t.Fatalf("unexpected url %q", output.OpenURL)
		}
	}
	if len(navigator.urls) != 2 {
		t.Fatalf("expected navigator to be called twice, got %v", navigator.urls)
	}

	navigator.err = errors.New("no browser")
	if _, err := h.service.HandleAction(context.Background(), h.session, ActionInput{Action: ActionOpenUser, Data: ActionData{URL: "https://x.example"}}); err == nil {
		t.Fatal("expected navigator error to surface")
	}
	if h.session.Transcript().Len() != 1 {
		t.Fatal("open actions must not touch the transcript")
	}
}

func TestDismissAnomalyIsNoOp(t *testing.T) {
	h := newHarness(t, nil)
	if _, err := h.service.HandleAction(context.Background(), h.session, ActionInput{Action: ActionDismissAnomaly, Data: ActionData{Username: "dan.j"}}); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	h.clock.Advance(time.Minute)
	if h.session.Transcript().Len() != 1 {
		t.Fatalf("expected no transcript change, got %d messages", h.session.Transcript().Len())
	}
}

func TestViewUserReentersShowUser(t *testing.T) {
	h := newHarness(t, nil)
	if _, err := h.service.HandleAction(context.Background(), h.session, ActionInput{Action: ActionViewUser, Data: ActionData{Username: "dan.j"}}); err != nil {
		t.Fatalf("view user: %v", err)
	}
	h.clock.Advance(time.Second)
	replies := h.botMessages()
	if len(replies) != 1 {
		t.Fatalf("expected one reply, got %v", contents(replies))
	}
	card, ok := replies[0].Card.(transcript.UserCard)
	if !ok || card.User.Username != "dan.j" {
		t.Fatalf("expected dan.j user card, got %+v", replies[0].Card)
	}
}

func TestCheckTokenStatus(t *testing.T) {
	h := newHarness(t, nil)
	if _, err := h.service.HandleAction(context.Background(), h.session, ActionInput{Action: ActionCheckTokenStatus}); err != nil {
		t.Fatalf("check token status: %v", err)
	}
	h.clock.Advance(0)
	want := []string{"Token Status: Not registered. Next step: Follow step 2 to register your token."}
	if diff := cmp.Diff(want, contents(h.botMessages())); diff != "" {
		t.Fatalf("unexpected replies (-want +got):\n%s", diff)
	}

	tokens := &fakeTokenStatus{}
	h.service.SetTokenStatus(tokens)
	if _, err := h.service.HandleAction(context.Background(), h.session, ActionInput{Action: "check_token_status", Data: ActionData{Username: "alice.w"}}); err != nil {
		t.Fatalf("check token status via collaborator: %v", err)
	}
	h.clock.Advance(0)
	if tokens.asked != "alice.w" {
		t.Fatalf("expected collaborator to be asked about alice.w, got %q", tokens.asked)
	}
}

func TestDownloadGuideReturnsConfiguredURL(t *testing.T) {
	h := newHarness(t, nil)
	output, err := h.service.HandleAction(context.Background(), h.session, ActionInput{Action: ActionDownloadGuide})
	if err != nil {
		t.Fatalf("download guide: %v", err)
	}
	if output.OpenURL != DefaultConfig().GuideURL {
		t.Fatalf("unexpected guide url %q", output.OpenURL)
	}
}

func TestUnknownActionRejected(t *testing.T) {
	h := newHarness(t, nil)
	h.send(t, "@AccessBot reset password alice.w")
	h.clock.Advance(time.Minute)
	before := h.session.Transcript().Len()

	// Names match exactly so a renamed button in the client is caught.
	for _, name := range []string{"escalate", "APPROVE", "Approve", "open_admin", "view_user"} {
		_, err := h.service.HandleAction(context.Background(), h.session, ActionInput{
			Action: name,
			Data:   ActionData{RequestID: "req-001", URL: "https://payroll.example/admin", Username: "alice.w"},
		})
		if !errors.Is(err, ErrUnknownAction) {
			t.Fatalf("%s: expected unknown action, got %v", name, err)
		}
	}
	h.clock.Advance(time.Minute)
	if h.session.Transcript().Len() != before {
		t.Fatal("unknown actions must not be routed")
	}
	if request, err := h.session.Workflow().Get("req-001"); err != nil || request.Status != approval.StatusPending {
		t.Fatalf("expected req-001 to stay pending, got %+v %v", request, err)
	}

	if _, err := h.service.HandleAction(context.Background(), h.session, ActionInput{Action: " dismiss-anomaly "}); err != nil {
		t.Fatalf("expected surrounding whitespace to be ignored, got %v", err)
	}
}

func TestUnknownActionLeavesTranscriptAlone(t *testing.T) {
	h := newHarness(t, nil)
	if _, err := h.service.HandleAction(context.Background(), h.session, ActionInput{Action: "escalate"}); !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("expected unknown action, got %v", err)
	}
	h.clock.Advance(time.Minute)
	if h.session.Transcript().Len() != 1 {
		t.Fatal("unknown actions must not be routed")
	}
}

func TestActionsListsEveryRoute(t *testing.T) {
	h := newHarness(t, nil)
	want := []string{
		ActionApprove,
		ActionCheckTokenStatus,
		ActionDismissAnomaly,
		ActionDownloadGuide,
		ActionOpenAdmin,
		ActionOpenUser,
		ActionReject,
		ActionViewUser,
	}
	if diff := cmp.Diff(want, h.service.Actions()); diff != "" {
		t.Fatalf("unexpected actions (-want +got):\n%s", diff)
	}
}
