// Package session owns the per-conversation state: the transcript, the
// approval workflow, the reply scheduler and the active participant.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dwizi/accessbot/internal/approval"
	"github.com/dwizi/accessbot/internal/scheduler"
	"github.com/dwizi/accessbot/internal/transcript"
)

var (
	ErrUnknownParticipant = errors.New("unknown participant")
	ErrSessionNotFound    = errors.New("session not found")
)

type Participant struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

var participants = []Participant{
	{ID: "accessadmin", DisplayName: "Access Admin", Role: "Access Engineer"},
	{ID: "alice.w", DisplayName: "Alice Walker", Role: "End User"},
}

func Participants() []Participant {
	return append([]Participant(nil), participants...)
}

func LookupParticipant(id string) (Participant, error) {
	id = strings.TrimSpace(id)
	for _, participant := range participants {
		if participant.ID == id {
			return participant, nil
		}
	}
	return Participant{}, fmt.Errorf("%w: %q", ErrUnknownParticipant, id)
}

func (p Participant) Sender() transcript.Sender {
	return transcript.Sender{ID: p.ID, DisplayName: p.DisplayName}
}

// Archiver receives every message appended to a session transcript.
type Archiver interface {
	Archive(sessionID string, message transcript.Message) error
}

type Options struct {
	ID          string
	Participant string
	Bot         transcript.Sender
	Mention     string
	Clock       scheduler.Clock
	Suffix      approval.SuffixSource
	Recorder    approval.Recorder
	Archiver    Archiver
	Logger      *slog.Logger
}

type Session struct {
	id        string
	createdAt time.Time
	bot       transcript.Sender
	clock     scheduler.Clock
	archiver  Archiver
	logger    *slog.Logger

	// appendMu keeps the archive in transcript order.
	appendMu   sync.Mutex
	transcript *transcript.Transcript
	workflow   *approval.Workflow
	scheduler  *scheduler.Scheduler

	mu          sync.Mutex
	participant Participant
	lastActive  time.Time
}

// New builds a session and appends the greeting.
func New(opts Options) (*Session, error) {
	if strings.TrimSpace(opts.ID) == "" {
		return nil, errors.New("session id is required")
	}
	participant, err := LookupParticipant(opts.Participant)
	if err != nil {
		return nil, err
	}
	clock := opts.Clock
	if clock == nil {
		clock = scheduler.RealClock()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("session_id", opts.ID)
	bot := opts.Bot
	if bot.ID == "" {
		bot = transcript.Sender{ID: "accessbot", DisplayName: "AccessBot", IsBot: true}
	}
	bot.IsBot = true
	now := func() time.Time { return clock.Now().UTC() }

	s := &Session{
		id:          opts.ID,
		createdAt:   now(),
		bot:         bot,
		clock:       clock,
		archiver:    opts.Archiver,
		logger:      logger,
		transcript:  transcript.New(now),
		workflow:    approval.NewWorkflow(approval.Options{SessionID: opts.ID, Now: now, Suffix: opts.Suffix, Recorder: opts.Recorder}),
		scheduler:   scheduler.New(clock, logger.With("component", "scheduler")),
		participant: participant,
	}
	s.lastActive = s.createdAt
	s.Append(transcript.Text(bot, Greeting(bot.DisplayName, opts.Mention)))
	return s, nil
}

func Greeting(botName, mention string) string {
	if strings.TrimSpace(botName) == "" {
		botName = "AccessBot"
	}
	if strings.TrimSpace(mention) == "" {
		mention = "@" + botName
	}
	return fmt.Sprintf("Hello! I'm %s. Type %s followed by a command to get started. Available commands include: show user, reset password, token help, app lookup, and find anomalies.", botName, mention)
}

func (s *Session) ID() string                         { return s.id }
func (s *Session) CreatedAt() time.Time               { return s.createdAt }
func (s *Session) Bot() transcript.Sender             { return s.bot }
func (s *Session) Transcript() *transcript.Transcript { return s.transcript }
func (s *Session) Workflow() *approval.Workflow       { return s.workflow }
func (s *Session) Scheduler() *scheduler.Scheduler    { return s.scheduler }
func (s *Session) Logger() *slog.Logger               { return s.logger }

func (s *Session) Now() time.Time {
	return s.clock.Now()
}

func (s *Session) Participant() Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.participant
}

// SwitchUser changes who subsequent messages are attributed to.
func (s *Session) SwitchUser(id string) (Participant, error) {
	participant, err := LookupParticipant(id)
	if err != nil {
		return Participant{}, err
	}
	s.mu.Lock()
	s.participant = participant
	s.mu.Unlock()
	s.logger.Info("participant switched", "participant", participant.ID)
	return participant, nil
}

func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Append is the single write path into the transcript. The archiver sees
// messages in index order.
func (s *Session) Append(draft transcript.Draft) transcript.Message {
	s.appendMu.Lock()
	defer s.appendMu.Unlock()
	message := s.transcript.Append(draft)
	s.mu.Lock()
	if message.CreatedAt.After(s.lastActive) {
		s.lastActive = message.CreatedAt
	}
	s.mu.Unlock()
	if s.archiver != nil {
		if err := s.archiver.Archive(s.id, message); err != nil {
			s.logger.Warn("archive message failed", "message_id", message.ID, "error", err)
		}
	}
	return message
}

// Close drops replies that have not fired yet.
func (s *Session) Close() {
	s.scheduler.Close()
}
