package domain

// Role tags the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// ActionKind names a type of background work. Only the constants below
// have an executor; any other non-empty kind is recorded and completes
// with an explanatory result.
type ActionKind string

const (
	ActionCommand       ActionKind = "command"
	ActionFileOperation ActionKind = "file_operation"
	ActionWebSearch     ActionKind = "web_search"
	ActionDesktop       ActionKind = "desktop_action"
)

func (k ActionKind) Valid() bool {
	switch k {
	case ActionCommand, ActionFileOperation, ActionWebSearch, ActionDesktop:
		return true
	}
	return false
}

type ActionStatus string

const (
	StatusPending   ActionStatus = "pending"
	StatusRunning   ActionStatus = "running"
	StatusCompleted ActionStatus = "completed"
	StatusFailed    ActionStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s ActionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type TodoItem struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Completed   bool     `json:"completed"`
	Priority    Priority `json:"priority"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

type ChatMessage struct {
	ID        int64          `json:"id"`
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	Timestamp string         `json:"timestamp"`
	Metadata  map[string]any `json:"metadata"`
}

type AgentAction struct {
	ID          int64        `json:"id"`
	Kind        ActionKind   `json:"action_type"`
	Description string       `json:"description"`
	Status      ActionStatus `json:"status"`
	Result      string       `json:"result,omitempty"`
	CreatedAt   string       `json:"created_at"`
}

type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   int64          `json:"entity_id"`
	Payload    map[string]any `json:"payload"`
}
