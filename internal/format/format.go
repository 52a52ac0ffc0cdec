// Package format renders handler outcomes as the single display string
// returned to the user. Every function returns a non-empty string.
package format

import (
	"fmt"
	"strings"

	"chatbot/internal/domain"
)

const (
	TodoHelp    = "Todo commands: add todo [title], list todos, complete todo [id], delete todo [id]"
	AgentHelp   = "Agent commands: execute command [command], file operations"
	FileHelp    = "File operation commands: read file [path], write file [path] [content], append file [path] [content]"
	DesktopHelp = "XFCE commands: screenshot, start desktop, show vnc connection"
	WebHelp     = "Web commands: search [query]"
	RemoteHelp  = "MCP commands: time [timezone], think about [problem], screenshot web [url], what is [question], search [query]"
	Greeting    = "Hello! I'm your AI assistant. I can help with todos, execute commands, manage XFCE desktop, and more."
	Help        = "I can help you with:\n📝 Todo management: 'add todo buy groceries'\n🔄 Commands: 'execute command ls -la'\n🖥️ Desktop: 'screenshot', 'start desktop'\n🔍 Web: 'search python tutorials'"
	EmptyTodos  = "No todos found. Create one with 'add todo [title]'"
	NoThinking  = "No thinking steps available"
	NoShotPath  = "Screenshot taken but path not available"
	Fallback    = "Sorry, I couldn't produce a response for that."
)

func TodoCreated(t domain.TodoItem) string {
	return fmt.Sprintf("✅ Todo created: '%s' (ID: %d)", t.Title, t.ID)
}

func TodoCompleted(t domain.TodoItem) string {
	return fmt.Sprintf("✅ Todo completed: %s", t.Title)
}

func TodoDeleted(t domain.TodoItem) string {
	return fmt.Sprintf("🗑️ Todo deleted: %s", t.Title)
}

func TodoNotFound(id int64) string {
	return fmt.Sprintf("❌ Todo not found with ID: %d", id)
}

// TodoList renders one line per todo with a completion glyph.
func TodoList(todos []domain.TodoItem) string {
	if len(todos) == 0 {
		return EmptyTodos
	}
	var b strings.Builder
	b.WriteString("📝 Your todos:\n")
	for _, t := range todos {
		glyph := "⏳"
		if t.Completed {
			glyph = "✅"
		}
		fmt.Fprintf(&b, "%s %s (ID: %d)\n", glyph, t.Title, t.ID)
	}
	return b.String()
}

func ActionStarted(a domain.AgentAction) string {
	return fmt.Sprintf("🔄 Action started: %s (ID: %d)", a.Description, a.ID)
}

func SearchStarted(query string, a domain.AgentAction) string {
	return fmt.Sprintf("🔍 Search started: %s (ID: %d)", query, a.ID)
}

// ActionRejected reports an action that could not be queued.
func ActionRejected(a domain.AgentAction, reason string) string {
	return fmt.Sprintf("❌ Action %d failed to start: %s", a.ID, reason)
}

// Status lists the local endpoints the assistant exposes.
func Status(vncPort, webPort int, apiAddr string) string {
	return fmt.Sprintf("Service status:\n🖥️ XFCE VNC: localhost:%d\n🌐 Web Frontend: http://localhost:%d\n🔗 API: http://localhost%s",
		vncPort, webPort, apiAddr)
}

func Acknowledge(message string) string {
	return fmt.Sprintf("I understood: '%s'. Try asking for help with specific tasks like todos, commands, or desktop operations.", message)
}

// ServiceError is the uniform rendering of a failed remote call.
func ServiceError(service string, err error) string {
	return fmt.Sprintf("%s service error: %v", service, err)
}

func CurrentTime(current, timezone string) string {
	if current == "" {
		current = "Unknown time"
	}
	return fmt.Sprintf("🕐 Current time: %s (%s)", current, timezone)
}

// Thinking renders numbered reasoning steps and an optional conclusion.
func Thinking(problem string, steps []string, conclusion string) string {
	if len(steps) == 0 {
		return NoThinking
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🤔 **Thinking about: %s**\n\n", problem)
	for i, step := range steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}
	if conclusion != "" {
		fmt.Fprintf(&b, "\n**Conclusion:** %s", conclusion)
	}
	return b.String()
}

type SearchHit struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// MaxSearchHits caps rendered search results.
const MaxSearchHits = 5

func SearchResults(query string, hits []SearchHit) string {
	if len(hits) == 0 {
		return fmt.Sprintf("No results found for '%s'", query)
	}
	if len(hits) > MaxSearchHits {
		hits = hits[:MaxSearchHits]
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🔍 **Search results for: %s**\n\n", query)
	for i, h := range hits {
		title := h.Title
		if title == "" {
			title = "No title"
		}
		fmt.Fprintf(&b, "**%d. %s**\n", i+1, title)
		if h.URL != "" {
			fmt.Fprintf(&b, "   🔗 %s\n", h.URL)
		}
		if h.Snippet != "" {
			fmt.Fprintf(&b, "   📝 %s\n", h.Snippet)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func InstantAnswer(query, answer string) string {
	if answer == "" {
		return fmt.Sprintf("No instant answer found for '%s'", query)
	}
	return fmt.Sprintf("💡 **Instant Answer:** %s", answer)
}

func WebScreenshot(path string) string {
	if path == "" {
		return NoShotPath
	}
	return fmt.Sprintf("📸 Screenshot saved: %s", path)
}

func DesktopScreenshot(path string) string {
	return fmt.Sprintf("🖥️ Screenshot saved to %s", path)
}

func VNCInfo(port int) string {
	return fmt.Sprintf("🖥️ VNC server running on localhost:%d\nUse VNC client to connect", port)
}

func SessionStarted(ok bool) string {
	if ok {
		return "🖥️ XFCE desktop session started"
	}
	return "❌ Failed to start XFCE session"
}

// CommandOutput is the stored result of a shell action.
func CommandOutput(command, stdout, stderr string, exitCode int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Command: %s\n", command)
	if stdout != "" {
		fmt.Fprintf(&b, "Output:\n%s\n", stdout)
	}
	if stderr != "" {
		fmt.Fprintf(&b, "Error:\n%s\n", stderr)
	}
	fmt.Fprintf(&b, "Exit code: %d", exitCode)
	return b.String()
}

// StorageError is shown when persistence fails underneath a chat request.
func StorageError(err error) string {
	return fmt.Sprintf("⚠️ Something went wrong: %v", err)
}

// NonEmpty guarantees a displayable reply.
func NonEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return Fallback
	}
	return s
}
