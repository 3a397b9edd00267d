// Package gateway turns chat input and card actions into scheduled bot
// replies on a session.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dwizi/accessbot/internal/command"
	"github.com/dwizi/accessbot/internal/directory"
	"github.com/dwizi/accessbot/internal/scheduler"
	"github.com/dwizi/accessbot/internal/session"
	"github.com/dwizi/accessbot/internal/transcript"
)

var ErrEmptyMessage = errors.New("message text is empty")

const resetOptionsText = "Available reset options:\n" +
	"a. Lakebaas Reset (GH approval required)\n" +
	"b. Network AD password reset (Supervisor approval required)\n" +
	"c. Eyemal reset (GH approval required)\n" +
	"d. Application Name Unlock/Reset/Update/Create\n\n" +
	"Click on an option to proceed:"

const directoryUnavailableText = "Sorry, I couldn't reach the directory service right now. Please try again."

type Config struct {
	Mention          string
	ReplyDelay       time.Duration
	FollowupStep     time.Duration
	ActionDelay      time.Duration
	DefaultUsername  string
	DefaultAppName   string
	ResetRequestType string
	ResetReason      string
	GuideURL         string
}

func DefaultConfig() Config {
	return Config{
		Mention:          "@AccessBot",
		ReplyDelay:       1000 * time.Millisecond,
		FollowupStep:     500 * time.Millisecond,
		DefaultUsername:  "alice.w",
		DefaultAppName:   "Payroll",
		ResetRequestType: "Network AD password reset",
		ResetReason:      "User locked out",
		GuideURL:         "https://access.example/guides/token-onboarding.pdf",
	}
}

type Service struct {
	provider  directory.Provider
	navigator Navigator
	tokens    TokenStatus
	config    Config
	logger    *slog.Logger
	actions   map[string]actionHandler
}

type MessageInput struct {
	Text string
}

type MessageOutput struct {
	Message   transcript.Message
	Addressed bool
	Command   command.Command
	Scheduled []scheduler.Token
}

// reply is one planned bot message, offset from command receipt.
type reply struct {
	offset time.Duration
	draft  transcript.Draft
}

func New(provider directory.Provider, config Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultConfig()
	config.Mention = orDefault(config.Mention, defaults.Mention)
	config.DefaultUsername = orDefault(config.DefaultUsername, defaults.DefaultUsername)
	config.DefaultAppName = orDefault(config.DefaultAppName, defaults.DefaultAppName)
	config.ResetRequestType = orDefault(config.ResetRequestType, defaults.ResetRequestType)
	config.ResetReason = orDefault(config.ResetReason, defaults.ResetReason)
	config.GuideURL = orDefault(config.GuideURL, defaults.GuideURL)
	s := &Service{
		provider: provider,
		tokens:   StaticTokenStatus{},
		config:   config,
		logger:   logger,
	}
	s.actions = s.actionTable()
	return s
}

func (s *Service) SetNavigator(navigator Navigator) {
	s.navigator = navigator
}

func (s *Service) SetTokenStatus(tokens TokenStatus) {
	if tokens == nil {
		tokens = StaticTokenStatus{}
	}
	s.tokens = tokens
}

func (s *Service) Config() Config {
	return s.config
}

// HandleMessage appends the participant's message right away. Messages that
// start with the mention token are parsed and their replies scheduled
// relative to the moment the message was received.
func (s *Service) HandleMessage(ctx context.Context, sess *session.Session, input MessageInput) (MessageOutput, error) {
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return MessageOutput{}, ErrEmptyMessage
	}
	receivedAt := sess.Now()
	participant := sess.Participant()
	message := sess.Append(transcript.Draft{
		Sender:    participant.Sender(),
		Content:   text,
		CreatedAt: receivedAt.UTC(),
	})
	output := MessageOutput{Message: message}
	if !command.Addressed(text, s.config.Mention) {
		return output, nil
	}

	output.Addressed = true
	output.Command = command.Parse(text, s.config.Mention)
	replies := s.plan(ctx, sess, output.Command)
	output.Scheduled = s.schedule(sess, receivedAt, replies)
	sess.Logger().Info(
		"command planned",
		"verb", string(output.Command.Verb),
		"participant", participant.ID,
		"replies", len(replies),
	)
	return output, nil
}

func (s *Service) plan(ctx context.Context, sess *session.Session, cmd command.Command) []reply {
	switch cmd.Verb {
	case command.VerbShowUser:
		return s.planShowUser(ctx, sess, orDefault(cmd.Primary(), s.config.DefaultUsername))
	case command.VerbResetPassword:
		return s.planResetPassword(sess, orDefault(cmd.Primary(), sess.Participant().ID))
	case command.VerbTokenHelp:
		username := orDefault(cmd.Primary(), sess.Participant().ID)
		return []reply{s.card(0, fmt.Sprintf("Token onboarding help for %s:", username), transcript.DefaultTokenHelp(username))}
	case command.VerbAppLookup:
		return s.planAppLookup(ctx, sess, orDefault(cmd.Primary(), s.config.DefaultAppName))
	case command.VerbFindAnomalies:
		return s.planFindAnomalies(ctx, sess)
	default:
		return []reply{s.text(0, command.HelpText())}
	}
}

func (s *Service) planShowUser(ctx context.Context, sess *session.Session, username string) []reply {
	user, err := s.provider.LookupUser(ctx, username)
	if err != nil {
		return s.lookupFailure(sess, err, fmt.Sprintf("User %s was not found in the directory.", username))
	}
	return []reply{s.card(0, fmt.Sprintf("Here's the user information for %s:", username), transcript.UserCard{User: user})}
}

// planResetPassword opens the approval request now so the card the user
// eventually sees refers to a request that already exists.
func (s *Service) planResetPassword(sess *session.Session, username string) []reply {
	replies := []reply{
		s.text(0, fmt.Sprintf("Password reset options for %s. Please select one:", username)),
		s.text(1, resetOptionsText),
	}
	request, err := sess.Workflow().Open(approvalOpenInput(username, s.config, sess.Participant().ID))
	if err != nil {
		sess.Logger().Error("open approval request failed", "username", username, "error", err)
		return replies
	}
	card := transcript.ApprovalCard{
		RequestID:   request.ID,
		Username:    request.Username,
		RequestType: request.RequestType,
		RequestedBy: request.RequestedBy,
		Reason:      request.Reason,
		Status:      string(request.Status),
	}
	return append(replies, s.card(2, fmt.Sprintf("Approval required for %s (%s):", request.RequestType, request.ID), card))
}

func (s *Service) planAppLookup(ctx context.Context, sess *session.Session, name string) []reply {
	app, err := s.provider.LookupApp(ctx, name)
	if err != nil {
		return s.lookupFailure(sess, err, fmt.Sprintf("Application %s was not found.", name))
	}
	return []reply{s.card(0, fmt.Sprintf("Application information for %s:", name), transcript.AppCard{App: app})}
}

func (s *Service) planFindAnomalies(ctx context.Context, sess *session.Session) []reply {
	anomalies, err := s.provider.ListAnomalies(ctx)
	if err != nil {
		return s.lookupFailure(sess, err, "")
	}
	if len(anomalies) == 0 {
		return []reply{s.text(0, "No security anomalies found.")}
	}
	replies := make([]reply, 0, len(anomalies)+1)
	replies = append(replies, s.text(0, fmt.Sprintf("Found %d security anomalies requiring attention:", len(anomalies))))
	for index, anomaly := range anomalies {
		replies = append(replies, s.card(index+1, fmt.Sprintf("Anomaly %d:", index+1), transcript.NewAnomalyCard(anomaly)))
	}
	return replies
}

func (s *Service) lookupFailure(sess *session.Session, err error, notFound string) []reply {
	if notFound != "" && errors.Is(err, directory.ErrNotFound) {
		return []reply{s.text(0, notFound)}
	}
	sess.Logger().Error("directory lookup failed", "error", err)
	return []reply{s.text(0, directoryUnavailableText)}
}

func (s *Service) schedule(sess *session.Session, receivedAt time.Time, replies []reply) []scheduler.Token {
	tokens := make([]scheduler.Token, 0, len(replies))
	for _, item := range replies {
		draft := item.draft
		draft.Sender = sess.Bot()
		token := sess.Scheduler().Schedule(receivedAt.Add(item.offset), func() {
			sess.Append(draft)
		})
		tokens = append(tokens, token)
	}
	return tokens
}

// offset is the delay of the step-th reply of a command: the base reply delay
// plus step follow-up increments.
func (s *Service) offset(step int) time.Duration {
	return s.config.ReplyDelay + time.Duration(step)*s.config.FollowupStep
}

func (s *Service) text(step int, content string) reply {
	return reply{offset: s.offset(step), draft: transcript.Draft{Content: content}}
}

func (s *Service) card(step int, content string, card transcript.Card) reply {
	return reply{offset: s.offset(step), draft: transcript.Draft{Content: content, Card: card}}
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
