package memorylog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dwizi/accessbot/internal/directory"
	"github.com/dwizi/accessbot/internal/transcript"
)

func TestAppendCreatesMarkdownLog(t *testing.T) {
	root := t.TempDir()
	err := Append(Entry{
		Root:        root,
		SessionID:   "Session 42",
		MessageID:   "msg-2",
		ActorID:     "alice.w",
		DisplayName: "Alice Walker",
		Text:        "@AccessBot show user alice.w",
		Timestamp:   time.Unix(1700000000, 0).UTC(),
	})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}

	logPath := filepath.Join(root, "sessions", "session-42.md")
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log failed: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "# Chat Log") {
		t.Fatalf("expected markdown header, got %s", content)
	}
	if !strings.Contains(content, "`INBOUND`") || !strings.Contains(content, "show user alice.w") {
		t.Fatalf("expected inbound message body, got %s", content)
	}
}

func TestAppendSkipsEmptyText(t *testing.T) {
	root := t.TempDir()
	err := Append(Entry{
		Root:      root,
		SessionID: "s-1",
		Text:      "   ",
	})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	logPath := filepath.Join(root, "sessions", "s-1.md")
	if _, err := os.Stat(logPath); !os.IsNotExist(err) {
		t.Fatalf("expected no file for empty text, got err=%v", err)
	}
}

func TestWriterArchivesTranscriptMessages(t *testing.T) {
	root := t.TempDir()
	writer := NewWriter(root)
	log := transcript.New(func() time.Time { return time.Date(2026, time.March, 3, 9, 0, 0, 0, time.UTC) })
	bot := transcript.Sender{ID: "accessbot", DisplayName: "AccessBot", IsBot: true}

	for _, message := range []transcript.Message{
		log.Append(transcript.Text(transcript.Sender{ID: "accessadmin", DisplayName: "Access Admin"}, "@AccessBot app Payroll")),
		log.Append(transcript.WithCard(bot, "Application information for Payroll:", transcript.AppCard{App: directory.AppRecord{Name: "Payroll"}})),
	} {
		if err := writer.Archive("s-1", message); err != nil {
			t.Fatalf("archive %s: %v", message.ID, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(root, "sessions", "s-1.md"))
	if err != nil {
		t.Fatalf("read log failed: %v", err)
	}
	content := string(data)
	if strings.Count(content, "# Chat Log") != 1 {
		t.Fatalf("expected a single header, got %s", content)
	}
	if !strings.Contains(content, "`OUTBOUND`") || !strings.Contains(content, "- card: `app`") {
		t.Fatalf("expected outbound card entry, got %s", content)
	}
	if strings.Index(content, "msg-1") > strings.Index(content, "msg-2") {
		t.Fatalf("expected append order in log, got %s", content)
	}
}
