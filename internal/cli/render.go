package cli

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/dwizi/accessbot/internal/directory"
	"github.com/dwizi/accessbot/internal/transcript"
)

type theme struct {
	botName  lipgloss.Style
	userName lipgloss.Style
	text     lipgloss.Style
	subtle   lipgloss.Style

	cardBox   lipgloss.Style
	cardTitle lipgloss.Style
	cardLabel lipgloss.Style
	cardValue lipgloss.Style

	tierHigh   lipgloss.Style
	tierMedium lipgloss.Style
	tierLow    lipgloss.Style

	success lipgloss.Style
	warn    lipgloss.Style
	danger  lipgloss.Style
	prompt  lipgloss.Style
	action  lipgloss.Style
}

func newTheme() theme {
	border := lipgloss.Color("238")
	text := lipgloss.Color("252")
	muted := lipgloss.Color("246")
	accent := lipgloss.Color("111")
	success := lipgloss.Color("78")
	warn := lipgloss.Color("214")
	danger := lipgloss.Color("203")

	return theme{
		botName:  lipgloss.NewStyle().Bold(true).Foreground(accent),
		userName: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("147")),
		text:     lipgloss.NewStyle().Foreground(text),
		subtle:   lipgloss.NewStyle().Foreground(muted),

		cardBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(border).
			Padding(0, 1),
		cardTitle: lipgloss.NewStyle().Bold(true).Foreground(accent),
		cardLabel: lipgloss.NewStyle().Foreground(muted),
		cardValue: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255")),

		tierHigh:   lipgloss.NewStyle().Bold(true).Foreground(danger),
		tierMedium: lipgloss.NewStyle().Bold(true).Foreground(warn),
		tierLow:    lipgloss.NewStyle().Bold(true).Foreground(success),

		success: lipgloss.NewStyle().Foreground(success),
		warn:    lipgloss.NewStyle().Foreground(warn),
		danger:  lipgloss.NewStyle().Foreground(danger),
		prompt:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("147")),
		action:  lipgloss.NewStyle().Foreground(accent),
	}
}

func (t theme) renderMessage(message transcript.Message) string {
	name := t.userName.Render(message.Sender.DisplayName)
	if message.Sender.IsBot {
		name = t.botName.Render(message.Sender.DisplayName)
	}
	stamp := t.subtle.Render(message.CreatedAt.Format("15:04:05"))
	header := fmt.Sprintf("%s %s  %s", stamp, name, t.text.Render(message.Content))
	if message.Card == nil {
		return header
	}
	return header + "\n" + t.renderCard(message.Card)
}

func (t theme) renderCard(card transcript.Card) string {
	var lines []string
	var actions []string
	switch card := card.(type) {
	case transcript.UserCard:
		user := card.User
		lines = append(lines,
			t.cardTitle.Render(user.FullName+" ("+user.Username+")"),
			t.field("Status", user.Status),
			t.field("Last logon", user.LastLogon.UTC().Format("2006-01-02 15:04 MST")),
			t.field("Groups", strings.Join(user.Groups, ", ")),
			t.field("VPN", yesNo(user.VPNAssigned)),
		)
		for _, app := range user.Applications {
			lines = append(lines, t.field("App "+app.Name, app.Status))
		}
		for _, contact := range user.SupportContacts {
			lines = append(lines, t.field(contact.Role, contact.Name+" <"+contact.Email+">"))
		}
		actions = []string{"open-admin url=<admin url>", "view-user username=" + user.Username}
	case transcript.AppCard:
		app := card.App
		lines = append(lines,
			t.cardTitle.Render(app.Name),
			t.subtle.Render(app.Description),
			t.field("Owner", app.Owner),
			t.field("Database", app.DBType),
			t.field("Third party", yesNo(app.ThirdParty)),
			t.field("Support", app.SupportEmail),
			t.field("Admin", app.AdminURL),
			t.field("User", app.UserURL),
		)
		actions = []string{"open-admin url=" + app.AdminURL, "open-user url=" + app.UserURL}
	case transcript.AnomalyCard:
		anomaly := card.Anomaly
		lines = append(lines,
			t.cardTitle.Render(anomaly.Username)+"  "+t.tier(card.Tier).Render(fmt.Sprintf("%s %.2f", strings.ToUpper(string(card.Tier)), anomaly.Score)),
			t.field("Reason", anomaly.Reason),
			t.field("Recommended", anomaly.RecommendedAction),
		)
		actions = []string{"view-user username=" + anomaly.Username, "dismiss-anomaly username=" + anomaly.Username}
	case transcript.ApprovalCard:
		lines = append(lines,
			t.cardTitle.Render(card.RequestType),
			t.field("Request", card.RequestID),
			t.field("User", card.Username),
			t.field("Requested by", card.RequestedBy),
			t.field("Reason", card.Reason),
			t.field("Status", card.Status),
		)
		actions = []string{"approve requestId=" + card.RequestID, "reject requestId=" + card.RequestID}
	case transcript.TokenHelpCard:
		lines = append(lines, t.cardTitle.Render("Token setup for "+card.Username))
		for index, step := range card.Steps {
			lines = append(lines, fmt.Sprintf("%s %s %s", t.cardValue.Render(fmt.Sprintf("%d.", index+1)), t.cardValue.Render(step.Title), t.subtle.Render(step.Detail)))
		}
		actions = []string{"check-token-status username=" + card.Username, "download-guide"}
	}
	if len(actions) > 0 {
		rendered := make([]string, 0, len(actions))
		for _, action := range actions {
			rendered = append(rendered, t.action.Render("/action "+action))
		}
		lines = append(lines, "", strings.Join(rendered, "\n"))
	}
	return t.cardBox.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (t theme) field(label, value string) string {
	if strings.TrimSpace(value) == "" {
		value = "-"
	}
	return t.cardLabel.Render(label+":") + " " + t.cardValue.Render(value)
}

func (t theme) tier(tier directory.Tier) lipgloss.Style {
	switch tier {
	case directory.TierHigh:
		return t.tierHigh
	case directory.TierMedium:
		return t.tierMedium
	default:
		return t.tierLow
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
