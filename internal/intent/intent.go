// Package intent classifies chat text into one of a fixed set of intents
// using ordered keyword rules, and extracts the parameters each intent needs.
//
// Matching is plain substring search on the case-folded text, so words such
// as "runway" match "run". Only timezone detection uses word boundaries.
package intent

import (
	"regexp"
	"strconv"
	"strings"
)

type Intent string

const (
	Todo      Intent = "todo"
	Agent     Intent = "agent"
	Desktop   Intent = "desktop"
	WebSearch Intent = "web-search"
	Remote    Intent = "remote-service"
	Fallback  Intent = "fallback"
)

// Action selects the handler branch inside an intent.
type Action string

const (
	TodoAdd      Action = "todo.add"
	TodoList     Action = "todo.list"
	TodoComplete Action = "todo.complete"
	TodoDelete   Action = "todo.delete"
	TodoHelp     Action = "todo.help"

	AgentCommand  Action = "agent.command"
	AgentFileHelp Action = "agent.file_help"
	AgentHelp     Action = "agent.help"

	DesktopScreenshot Action = "desktop.screenshot"
	DesktopVNC        Action = "desktop.vnc"
	DesktopStart      Action = "desktop.start"
	DesktopHelp       Action = "desktop.help"

	WebQuery Action = "web.search"
	WebHelp  Action = "web.help"

	RemoteTime       Action = "remote.time"
	RemoteThink      Action = "remote.think"
	RemoteScreenshot Action = "remote.screenshot"
	RemoteInstant    Action = "remote.instant"
	RemoteHelp       Action = "remote.help"

	ChatGreeting    Action = "chat.greeting"
	ChatHelp        Action = "chat.help"
	ChatStatus      Action = "chat.status"
	ChatAcknowledge Action = "chat.acknowledge"
)

// Guidance strings returned when a required parameter is missing.
const (
	NeedTodoTitle   = "Please provide a todo title. Example: 'add todo buy groceries'"
	NeedTodoID      = "Please specify a todo ID. Example: 'complete todo 1'"
	NeedCommand     = "Please provide a command. Example: 'execute command ls -la'"
	NeedSearchQuery = "Please provide a search query. Example: 'search python tutorials'"
	NeedURL         = "Please provide a valid URL for screenshot. Example: 'screenshot website https://example.com'"
	NeedQuestion    = "Please provide a clear question. Example: 'what is python'"
)

// DefaultProblem is the thinking subject used when none is given.
const DefaultProblem = "the current situation"

type Params struct {
	Title    string `json:"title,omitempty"`
	ID       int64  `json:"id,omitempty"`
	Command  string `json:"command,omitempty"`
	Query    string `json:"query,omitempty"`
	Timezone string `json:"timezone,omitempty"`
	URL      string `json:"url,omitempty"`
	Problem  string `json:"problem,omitempty"`
	Text     string `json:"text,omitempty"`
}

// Result is the outcome of classification. Guidance is set instead of
// params when extraction failed; the caller replies with it verbatim.
type Result struct {
	Intent   Intent `json:"intent"`
	Action   Action `json:"action"`
	Params   Params `json:"params"`
	Guidance string `json:"guidance,omitempty"`
}

// Rule pairs a tier predicate with its parameter extractor.
type Rule struct {
	Intent  Intent
	Match   func(lower string) bool
	Extract func(text, lower string) Result
}

// Rules returns the tiers in priority order. The first match wins, so later
// tiers are shadowed by earlier ones ("run a search" is an agent request).
func Rules() []Rule {
	return []Rule{
		{Todo, anyOf("todo", "task"), extractTodo},
		{Agent, anyOf("execute", "run"), extractAgent},
		{Desktop, matchDesktop, extractDesktop},
		{WebSearch, anyOf("search", "browse"), extractWeb},
		{Remote, anyOf("time", "current time", "date", "think", "analyze", "reason", "screenshot"), extractRemote},
	}
}

var defaultRules = Rules()

// Classify never fails: unmatched text yields Fallback.
func Classify(text string) Result {
	lower := strings.ToLower(text)
	for _, r := range defaultRules {
		if r.Match(lower) {
			res := r.Extract(text, lower)
			res.Intent = r.Intent
			return res
		}
	}
	res := extractChat(text, lower)
	res.Intent = Fallback
	return res
}

// matchDesktop lets web screenshots fall through to the remote tier.
func matchDesktop(lower string) bool {
	if containsAny(lower, "desktop", "xfce") {
		return true
	}
	return strings.Contains(lower, "screenshot") && !isWebTarget(lower)
}

func isWebTarget(lower string) bool {
	return containsAny(lower, "web", "page", "website")
}

func extractTodo(text, lower string) Result {
	switch {
	case containsAny(lower, "add", "create"):
		title := strip(text, "add todo", "create todo")
		if title == "" {
			return Result{Action: TodoAdd, Guidance: NeedTodoTitle}
		}
		return Result{Action: TodoAdd, Params: Params{Title: title}}
	case containsAny(lower, "list", "show"):
		return Result{Action: TodoList}
	case containsAny(lower, "complete", "done"):
		return withID(TodoComplete, text)
	case containsAny(lower, "delete", "remove"):
		return withID(TodoDelete, text)
	}
	return Result{Action: TodoHelp}
}

var digits = regexp.MustCompile(`\d+`)

func withID(action Action, text string) Result {
	m := digits.FindString(text)
	if m == "" {
		return Result{Action: action, Guidance: NeedTodoID}
	}
	id, err := strconv.ParseInt(m, 10, 64)
	if err != nil {
		return Result{Action: action, Guidance: NeedTodoID}
	}
	return Result{Action: action, Params: Params{ID: id}}
}

func extractAgent(text, lower string) Result {
	switch {
	case strings.Contains(lower, "command"):
		cmd := strip(text, "execute command", "run command")
		if cmd == "" {
			return Result{Action: AgentCommand, Guidance: NeedCommand}
		}
		return Result{Action: AgentCommand, Params: Params{Command: cmd}}
	case strings.Contains(lower, "file"):
		return Result{Action: AgentFileHelp}
	}
	return Result{Action: AgentHelp}
}

func extractDesktop(_, lower string) Result {
	switch {
	case strings.Contains(lower, "screenshot"):
		return Result{Action: DesktopScreenshot}
	case containsAny(lower, "vnc", "connect"):
		return Result{Action: DesktopVNC}
	case containsAny(lower, "start", "launch"):
		return Result{Action: DesktopStart}
	}
	return Result{Action: DesktopHelp}
}

func extractWeb(text, lower string) Result {
	if !strings.Contains(lower, "search") {
		return Result{Action: WebHelp}
	}
	q := strip(text, "search")
	if q == "" {
		return Result{Action: WebQuery, Guidance: NeedSearchQuery}
	}
	return Result{Action: WebQuery, Params: Params{Query: q}}
}

var (
	urlPattern     = regexp.MustCompile(`https?://[^\s]+`)
	timezones      = []string{"utc", "est", "pst", "gmt", "jst", "cet"}
	timezoneWords  = compileWords(timezones)
	questionLeads  = []string{"what is", "how many", "when did", "where is", "who is"}
	thinkingLeads  = []string{"think about", "analyze", "reason about"}
	thinkingTokens = []string{"think", "analyze", "reason", "reasoning", "solve"}
)

func extractRemote(text, lower string) Result {
	switch {
	case containsAny(lower, "time", "date", "clock"):
		return Result{Action: RemoteTime, Params: Params{Timezone: detectTimezone(text)}}
	case containsAny(lower, thinkingTokens...):
		problem := strip(text, thinkingLeads...)
		if problem == "" {
			problem = DefaultProblem
		}
		return Result{Action: RemoteThink, Params: Params{Problem: problem}}
	case strings.Contains(lower, "screenshot") && isWebTarget(lower):
		u := urlPattern.FindString(text)
		if u == "" {
			return Result{Action: RemoteScreenshot, Guidance: NeedURL}
		}
		return Result{Action: RemoteScreenshot, Params: Params{URL: u}}
	case containsAny(lower, questionLeads...):
		q := stripLeading(text, questionLeads)
		if q == "" {
			return Result{Action: RemoteInstant, Guidance: NeedQuestion}
		}
		return Result{Action: RemoteInstant, Params: Params{Query: q}}
	}
	return Result{Action: RemoteHelp}
}

func extractChat(text, lower string) Result {
	switch {
	case strings.Contains(lower, "hello"):
		return Result{Action: ChatGreeting}
	case strings.Contains(lower, "help"):
		return Result{Action: ChatHelp}
	case strings.Contains(lower, "status"):
		return Result{Action: ChatStatus}
	}
	return Result{Action: ChatAcknowledge, Params: Params{Text: text}}
}

// detectTimezone returns the first known abbreviation present as a whole
// word, upper-cased, or UTC.
func detectTimezone(text string) string {
	for i, re := range timezoneWords {
		if re.MatchString(text) {
			return strings.ToUpper(timezones[i])
		}
	}
	return "UTC"
}

func compileWords(words []string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(words))
	for i, w := range words {
		res[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(w) + `\b`)
	}
	return res
}

// strip removes every occurrence of the phrases, ignoring case, and trims.
func strip(text string, phrases ...string) string {
	for _, p := range phrases {
		re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(p))
		text = re.ReplaceAllString(text, "")
	}
	return strings.TrimSpace(text)
}

// stripLeading drops the first phrase the text starts with.
func stripLeading(text string, phrases []string) string {
	for _, p := range phrases {
		if len(text) >= len(p) && strings.EqualFold(text[:len(p)], p) {
			return strings.TrimSpace(text[len(p):])
		}
	}
	return strings.TrimSpace(text)
}

func anyOf(words ...string) func(string) bool {
	return func(lower string) bool { return containsAny(lower, words...) }
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
