package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dwizi/accessbot/internal/app"
	"github.com/dwizi/accessbot/internal/config"
	"github.com/dwizi/accessbot/internal/gateway"
	"github.com/dwizi/accessbot/internal/session"
)

const chatHelp = `Commands:
  /action <name> [key=value ...]  press a card button (keys: url, username, requestId)
  /user <id>                      switch the active participant
  /users                          list participants
  /approvals                      list approval requests in this session
  /help                           show this help
  /quit                           leave the chat
Anything else is posted to the chat. Address the bot with its mention token.`

func newChatCommand(logger *slog.Logger) *cobra.Command {
	var (
		participant string
		message     string
		timeoutSec  int
	)

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat with AccessBot in the terminal",
		Long:  "Runs a local AccessBot session with the configured directory and audit store.",
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := app.NewCore(config.FromEnv(), logger)
			if err != nil {
				return err
			}
			defer core.Close()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			chat, err := newTerminalChat(core, participant, cmd.OutOrStdout(), boundedTimeout(timeoutSec))
			if err != nil {
				return err
			}
			text := strings.TrimSpace(message)
			if text == "" && len(args) > 0 {
				text = strings.TrimSpace(strings.Join(args, " "))
			}
			if text != "" {
				_, err := chat.handleLine(ctx, text)
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), chat.theme.subtle.Render("Type /help for commands, /quit to leave."))
			return chat.run(ctx, cmd.InOrStdin())
		},
	}
	cmd.Flags().StringVar(&participant, "as", "", "participant to chat as (defaults to ACCESSBOT_DEFAULT_PARTICIPANT)")
	cmd.Flags().StringVarP(&message, "message", "m", "", "single message to send (non-interactive mode)")
	cmd.Flags().IntVar(&timeoutSec, "timeout-sec", 30, "seconds to wait for scheduled replies")

	cmd.AddCommand(newChatReplayCommand(logger))
	return cmd
}

type terminalChat struct {
	gateway *gateway.Service
	session *session.Session
	out     io.Writer
	theme   theme
	timeout time.Duration
	next    int
}

func newTerminalChat(core *app.Core, participant string, out io.Writer, timeout time.Duration) (*terminalChat, error) {
	sess, err := core.Sessions.Create(participant)
	if err != nil {
		return nil, err
	}
	chat := &terminalChat{
		gateway: core.Gateway,
		session: sess,
		out:     out,
		theme:   newTheme(),
		timeout: timeout,
	}
	core.Gateway.SetNavigator(terminalNavigator{out: out, theme: chat.theme})
	chat.flush()
	return chat, nil
}

func (c *terminalChat) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(c.out, c.theme.prompt.Render(c.session.Participant().ID+"> "))
		if !scanner.Scan() {
			break
		}
		quit, err := c.handleLine(ctx, scanner.Text())
		if err != nil {
			fmt.Fprintln(c.out, c.theme.danger.Render("error: "+err.Error()))
		}
		if quit || ctx.Err() != nil {
			return nil
		}
	}
	return scanner.Err()
}

// handleLine runs one line of input and prints every message it produced,
// waiting for scheduled replies to land first.
func (c *terminalChat) handleLine(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		_, err := c.gateway.HandleMessage(ctx, c.session, gateway.MessageInput{Text: line})
		return false, c.settle(ctx, err)
	}

	name, rest, _ := strings.Cut(line[1:], " ")
	rest = strings.TrimSpace(rest)
	switch strings.ToLower(name) {
	case "quit", "exit":
		return true, nil
	case "help":
		fmt.Fprintln(c.out, c.theme.subtle.Render(chatHelp))
		return false, nil
	case "users":
		for _, participant := range session.Participants() {
			fmt.Fprintf(c.out, "%s  %s (%s)\n", c.theme.userName.Render(participant.ID), participant.DisplayName, participant.Role)
		}
		return false, nil
	case "user":
		participant, err := c.session.SwitchUser(rest)
		if err != nil {
			return false, err
		}
		fmt.Fprintln(c.out, c.theme.subtle.Render("Now chatting as "+participant.DisplayName+" ("+participant.Role+")"))
		return false, nil
	case "approvals":
		c.printApprovals()
		return false, nil
	case "action":
		input, err := parseActionLine(rest)
		if err != nil {
			return false, err
		}
		output, err := c.gateway.HandleAction(ctx, c.session, input)
		if err == nil && output.Action == gateway.ActionDownloadGuide {
			fmt.Fprintln(c.out, c.theme.action.Render("Guide: "+output.OpenURL))
		}
		return false, c.settle(ctx, err)
	default:
		return false, fmt.Errorf("unknown command /%s, try /help", name)
	}
}

// settle waits for the scheduler and prints new messages. Failed actions still
// schedule an explanatory reply, so the error is reported after it.
func (c *terminalChat) settle(ctx context.Context, handleErr error) error {
	waitCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	waitErr := c.session.Scheduler().Drain(waitCtx)
	c.flush()
	if handleErr != nil {
		return handleErr
	}
	if waitErr != nil {
		return fmt.Errorf("waiting for replies: %w", waitErr)
	}
	return nil
}

func (c *terminalChat) flush() {
	for _, message := range c.session.Transcript().Since(c.next) {
		fmt.Fprintln(c.out, c.theme.renderMessage(message))
		c.next = message.Index + 1
	}
}

func (c *terminalChat) printApprovals() {
	requests := c.session.Workflow().List()
	if len(requests) == 0 {
		fmt.Fprintln(c.out, c.theme.subtle.Render("No approval requests."))
		return
	}
	for _, request := range requests {
		status := c.theme.warn.Render(string(request.Status))
		if request.AuditID != "" {
			status = c.theme.success.Render(string(request.Status) + " " + request.AuditID)
		}
		fmt.Fprintf(c.out, "%s  %s for %s  %s\n", c.theme.cardValue.Render(request.ID), request.RequestType, request.Username, status)
	}
}

// parseActionLine reads "<name> key=value ...".
func parseActionLine(raw string) (gateway.ActionInput, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return gateway.ActionInput{}, errors.New("usage: /action <name> [key=value ...]")
	}
	input := gateway.ActionInput{Action: fields[0]}
	for _, field := range fields[1:] {
		key, value, ok := strings.Cut(field, "=")
		if !ok || value == "" {
			return gateway.ActionInput{}, fmt.Errorf("expected key=value, got %q", field)
		}
		switch strings.ToLower(strings.ReplaceAll(key, "_", "")) {
		case "url":
			input.Data.URL = value
		case "username", "user":
			input.Data.Username = value
		case "requestid", "request":
			input.Data.RequestID = value
		default:
			return gateway.ActionInput{}, fmt.Errorf("unknown action field %q", key)
		}
	}
	return input, nil
}

type terminalNavigator struct {
	out   io.Writer
	theme theme
}

func (n terminalNavigator) Navigate(_ context.Context, url string) error {
	_, err := fmt.Fprintln(n.out, n.theme.action.Render("Open in browser: "+url))
	return err
}

func boundedTimeout(timeoutSec int) time.Duration {
	if timeoutSec < 1 {
		timeoutSec = 30
	}
	if timeoutSec > 600 {
		timeoutSec = 600
	}
	return time.Duration(timeoutSec) * time.Second
}
