package memorylog

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/dwizi/accessbot/internal/transcript"
)

type Entry struct {
	Root        string
	SessionID   string
	MessageID   string
	ActorID     string
	DisplayName string
	Bot         bool
	Text        string
	CardKind    string
	Timestamp   time.Time
}

var pathSanitizer = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Append writes one entry to <root>/sessions/<session>.md, creating the file
// with a header on first use.
func Append(entry Entry) error {
	root := strings.TrimSpace(entry.Root)
	sessionID := sanitizeSegment(entry.SessionID)
	if root == "" || sessionID == "" {
		return nil
	}
	text := strings.TrimSpace(entry.Text)
	cardKind := strings.TrimSpace(entry.CardKind)
	if text == "" && cardKind == "" {
		return nil
	}

	timestamp := entry.Timestamp.UTC()
	if entry.Timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	baseDir := filepath.Join(root, "sessions")
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}
	logPath := filepath.Join(baseDir, sessionID+".md")

	header := ""
	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		header = fmt.Sprintf("# Chat Log\n\n- session_id: `%s`\n\n", sessionID)
	}

	direction := "inbound"
	if entry.Bot {
		direction = "outbound"
	}
	actor := strings.TrimSpace(entry.ActorID)
	if actor == "" {
		actor = "system"
	}
	body := fmt.Sprintf(
		"## %s `%s`\n- message_id: `%s`\n- actor: `%s` (%s)\n",
		timestamp.Format(time.RFC3339),
		strings.ToUpper(direction),
		strings.TrimSpace(entry.MessageID),
		actor,
		strings.TrimSpace(entry.DisplayName),
	)
	if cardKind != "" {
		body += fmt.Sprintf("- card: `%s`\n", cardKind)
	}
	body += "\n" + text + "\n\n"

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	if header != "" {
		if _, err := file.WriteString(header); err != nil {
			return err
		}
	}
	if _, err := file.WriteString(body); err != nil {
		return err
	}
	return nil
}

// Writer archives transcript messages as markdown chat logs.
type Writer struct {
	root string
	mu   sync.Mutex
}

func NewWriter(root string) *Writer {
	return &Writer{root: strings.TrimSpace(root)}
}

func (w *Writer) Archive(sessionID string, message transcript.Message) error {
	entry := Entry{
		Root:        w.root,
		SessionID:   sessionID,
		MessageID:   message.ID,
		ActorID:     message.Sender.ID,
		DisplayName: message.Sender.DisplayName,
		Bot:         message.Sender.IsBot,
		Text:        message.Content,
		Timestamp:   message.CreatedAt,
	}
	if message.Card != nil {
		entry.CardKind = string(message.Card.Kind())
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return Append(entry)
}

func sanitizeSegment(value string) string {
	trimmed := strings.TrimSpace(value)
	trimmed = strings.ReplaceAll(trimmed, " ", "-")
	trimmed = pathSanitizer.ReplaceAllString(trimmed, "-")
	trimmed = strings.Trim(trimmed, "-.")
	return strings.ToLower(trimmed)
}
