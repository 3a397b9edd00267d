package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dwizi/accessbot/internal/app"
	"github.com/dwizi/accessbot/internal/config"
)

var chatSectionPattern = regexp.MustCompile(`^##\s+(\S+)\s+` + "`" + `([^` + "`" + `]+)` + "`" + `\s*$`)
var actorPattern = regexp.MustCompile("^- actor:\\s*`([^`]*)`")

type parsedChatLog struct {
	SessionID string
	Entries   []parsedChatEntry
}

type parsedChatEntry struct {
	Timestamp time.Time
	Direction string
	MessageID string
	Actor     string
	CardKind  string
	Text      string
}

func newChatReplayCommand(logger *slog.Logger) *cobra.Command {
	var (
		logPath    string
		maxTurns   int
		dryRun     bool
		timeoutSec int
	)

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay the participant messages of an archived transcript",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(logPath) == "" {
				return fmt.Errorf("--log is required")
			}
			content, err := os.ReadFile(logPath)
			if err != nil {
				return fmt.Errorf("read chat log: %w", err)
			}
			parsed := parseChatLogContent(string(content))
			turns := inboundTurns(parsed)
			if len(turns) == 0 {
				return fmt.Errorf("no inbound messages found in %s", logPath)
			}
			if maxTurns > 0 && len(turns) > maxTurns {
				turns = turns[:maxTurns]
			}

			cmd.Printf("Replaying %d message(s) from session %s\n", len(turns), orUnknown(parsed.SessionID))
			if dryRun {
				for index, turn := range turns {
					cmd.Printf("[%d] %s: %s\n", index+1, turn.Actor, turn.Text)
				}
				return nil
			}

			core, err := app.NewCore(config.FromEnv(), logger)
			if err != nil {
				return err
			}
			defer core.Close()
			chat, err := newTerminalChat(core, "", cmd.OutOrStdout(), boundedTimeout(timeoutSec))
			if err != nil {
				return err
			}
			return replayTurns(cmd.Context(), chat, turns)
		},
	}
	cmd.Flags().StringVar(&logPath, "log", "", "path to an archived session markdown log")
	cmd.Flags().IntVar(&maxTurns, "max-turns", 0, "max inbound messages to replay (0 means all)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the messages without replaying them")
	cmd.Flags().IntVar(&timeoutSec, "timeout-sec", 30, "seconds to wait for scheduled replies per message")
	return cmd
}

// replayTurns switches to each message's original author before posting it.
// Authors that are no longer known participants keep the current one.
func replayTurns(ctx context.Context, chat *terminalChat, turns []parsedChatEntry) error {
	if ctx == nil {
		ctx = context.Background()
	}
	failures := 0
	for _, turn := range turns {
		if turn.Actor != "" && turn.Actor != chat.session.Participant().ID {
			if _, err := chat.session.SwitchUser(turn.Actor); err != nil {
				fmt.Fprintln(chat.out, chat.theme.warn.Render("keeping "+chat.session.Participant().ID+": "+err.Error()))
			}
		}
		if _, err := chat.handleLine(ctx, turn.Text); err != nil {
			failures++
			fmt.Fprintln(chat.out, chat.theme.danger.Render("error: "+err.Error()))
		}
	}
	if failures > 0 {
		return fmt.Errorf("replay finished with %d failed message(s)", failures)
	}
	return nil
}

func parseChatLogContent(content string) parsedChatLog {
	var parsed parsedChatLog
	var current *parsedChatEntry
	bodyLines := make([]string, 0, 8)

	flushCurrent := func() {
		if current == nil {
			return
		}
		entry := *current
		entry.Text = strings.TrimSpace(strings.Join(bodyLines, "\n"))
		parsed.Entries = append(parsed.Entries, entry)
		current = nil
		bodyLines = bodyLines[:0]
	}

	for _, raw := range strings.Split(content, "\n") {
		line := strings.TrimRight(raw, "\r")
		trimmed := strings.TrimSpace(line)
		if matches := chatSectionPattern.FindStringSubmatch(trimmed); len(matches) == 3 {
			flushCurrent()
			ts, _ := time.Parse(time.RFC3339, matches[1])
			current = &parsedChatEntry{Timestamp: ts, Direction: strings.ToLower(strings.TrimSpace(matches[2]))}
			continue
		}
		if current == nil {
			if strings.HasPrefix(trimmed, "- session_id:") {
				parsed.SessionID = extractBacktickOrRemainder(trimmed, "- session_id:")
			}
			continue
		}
		switch {
		case strings.HasPrefix(trimmed, "- message_id:"):
			current.MessageID = extractBacktickOrRemainder(trimmed, "- message_id:")
		case strings.HasPrefix(trimmed, "- card:"):
			current.CardKind = extractBacktickOrRemainder(trimmed, "- card:")
		case strings.HasPrefix(trimmed, "- actor:"):
			if matches := actorPattern.FindStringSubmatch(trimmed); len(matches) == 2 {
				current.Actor = strings.TrimSpace(matches[1])
			}
		default:
			bodyLines = append(bodyLines, line)
		}
	}
	flushCurrent()
	return parsed
}

func inboundTurns(parsed parsedChatLog) []parsedChatEntry {
	turns := make([]parsedChatEntry, 0, len(parsed.Entries))
	for _, entry := range parsed.Entries {
		if entry.Direction == "inbound" && entry.Text != "" {
			turns = append(turns, entry)
		}
	}
	return turns
}

func extractBacktickOrRemainder(line, prefix string) string {
	value := strings.TrimSpace(strings.TrimPrefix(line, prefix))
	return strings.Trim(value, "`")
}

func orUnknown(value string) string {
	if strings.TrimSpace(value) == "" {
		return "(unknown)"
	}
	return value
}
