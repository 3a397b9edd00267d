// Package command turns bot-addressed chat text into structured commands.
package command

import "strings"

type Verb string

const (
	VerbShowUser      Verb = "show_user"
	VerbResetPassword Verb = "reset_password"
	VerbTokenHelp     Verb = "token_help"
	VerbAppLookup     Verb = "app_lookup"
	VerbFindAnomalies Verb = "find_anomalies"
	VerbUnknown       Verb = "unknown"
)

type Command struct {
	Verb Verb
	Args []string
}

// Primary returns the first argument token, or "" when the argument is missing.
func (c Command) Primary() string {
	if len(c.Args) == 0 {
		return ""
	}
	return c.Args[0]
}

// Rule is one row of the verb table. Rows are matched in table order.
// A bare keyword matches with empty args unless NeedsSpace is set, in which
// case the keyword must be followed by whitespace and more text.
type Rule struct {
	Keyword     string
	Verb        Verb
	Arity       int
	Exact       bool
	NeedsSpace  bool
	Placeholder string
}

var rules = []Rule{
	{Keyword: "show user", Verb: VerbShowUser, Arity: 1, Placeholder: "{username}"},
	{Keyword: "reset password", Verb: VerbResetPassword, Arity: 1, Placeholder: "{username}"},
	{Keyword: "token help", Verb: VerbTokenHelp, Arity: 1, Placeholder: "{username}"},
	// "app" is the generic fallback and must stay below the multi-word verbs.
	{Keyword: "app", Verb: VerbAppLookup, Arity: 1, NeedsSpace: true, Placeholder: "{appname}"},
	{Keyword: "find anomalies", Verb: VerbFindAnomalies, Exact: true},
}

// Table returns a copy of the verb table in precedence order.
func Table() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// Addressed reports whether text is a message for the bot: its trimmed form
// starts with the mention token.
func Addressed(text, mention string) bool {
	mention = strings.TrimSpace(mention)
	if mention == "" {
		return false
	}
	return strings.HasPrefix(strings.TrimSpace(text), mention)
}

// Body strips the leading mention token and surrounding whitespace.
func Body(text, mention string) string {
	body := strings.TrimSpace(text)
	mention = strings.TrimSpace(mention)
	if mention != "" {
		body = strings.TrimPrefix(body, mention)
	}
	return strings.TrimSpace(body)
}

// Parse matches the command body against the verb table. Keywords are
// case-sensitive. A matched verb with no argument yields empty Args; callers
// decide on defaults.
func Parse(text, mention string) Command {
	body := Body(text, mention)
	for _, rule := range rules {
		if args, ok := rule.match(body); ok {
			return Command{Verb: rule.Verb, Args: args}
		}
	}
	if body == "" {
		return Command{Verb: VerbUnknown, Args: []string{}}
	}
	return Command{Verb: VerbUnknown, Args: []string{body}}
}

func (r Rule) match(body string) ([]string, bool) {
	if r.Exact {
		if body == r.Keyword {
			return []string{}, true
		}
		return nil, false
	}
	if body == r.Keyword && !r.NeedsSpace {
		return []string{}, true
	}
	prefix := r.Keyword + " "
	if !strings.HasPrefix(body, prefix) {
		return nil, false
	}
	return strings.Fields(body[len(prefix):]), true
}

// Usage lists the supported grammar forms without the mention token.
func Usage() []string {
	out := make([]string, 0, len(rules))
	for _, rule := range rules {
		if rule.Placeholder == "" {
			out = append(out, rule.Keyword)
			continue
		}
		out = append(out, rule.Keyword+" "+rule.Placeholder)
	}
	return out
}

func HelpText() string {
	return "I don't recognize that command. Available commands: " + strings.Join(Usage(), ", ")
}
