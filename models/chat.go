package models

type ChatPostRequest struct {
	// Message is the new user text. Required.
	Message string `json:"message"`

	// Conversation is the prior history, oldest first. It must not
	// contain Message.
	Conversation []Turn `json:"conversation,omitempty"`
}

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatPostResponse is returned for every chat request, including failures.
// Success is false iff Error is set, in which case Message holds a generic
// fallback.
type ChatPostResponse struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
