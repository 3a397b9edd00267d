package gateway

import (
	"strings"

	"github.com/dwizi/accessbot/internal/command"
)

// CommandDescriptor describes one grammar form for clients that offer
// completion or a command palette.
type CommandDescriptor struct {
	Name                string `json:"name"`
	Verb                string `json:"verb"`
	Description         string `json:"description"`
	ArgumentName        string `json:"argument_name,omitempty"`
	ArgumentDescription string `json:"argument_description,omitempty"`
	ArgumentRequired    bool   `json:"argument_required"`
	Usage               string `json:"usage"`
}

var commandDescriptions = map[command.Verb]struct {
	description string
	argument    string
}{
	command.VerbShowUser:      {description: "Show a directory user's status, groups and applications", argument: "Directory username; defaults to the sample user"},
	command.VerbResetPassword: {description: "List password reset options and open an approval request", argument: "Username to reset; defaults to the current participant"},
	command.VerbTokenHelp:     {description: "Walk through token onboarding", argument: "Username to help; defaults to the current participant"},
	command.VerbAppLookup:     {description: "Show application ownership and links", argument: "Application name; defaults to the sample application"},
	command.VerbFindAnomalies: {description: "List access anomalies ranked by risk"},
}

// Commands derives the client-facing grammar from the parser's verb table, so
// both always agree on names and precedence.
func (s *Service) Commands() []CommandDescriptor {
	table := command.Table()
	out := make([]CommandDescriptor, 0, len(table))
	for _, rule := range table {
		meta := commandDescriptions[rule.Verb]
		descriptor := CommandDescriptor{
			Name:        rule.Keyword,
			Verb:        string(rule.Verb),
			Description: meta.description,
			Usage:       s.config.Mention + " " + rule.Keyword,
		}
		if rule.Placeholder != "" {
			descriptor.ArgumentName = strings.Trim(rule.Placeholder, "{}")
			descriptor.ArgumentDescription = meta.argument
			descriptor.Usage += " " + rule.Placeholder
		}
		out = append(out, descriptor)
	}
	return out
}
