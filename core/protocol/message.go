// Package protocol defines the conversation message model shared by the
// planner, the conversation buffer, and the durable history store.
package protocol

import "fmt"

// Role identifies the sender of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message is a single role-tagged entry in a conversation. The ordered
// sequence of messages is the literal prompt history handed to the planner.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewMessage creates a Message with the given role and content.
//
// Example:
//
//	msg := protocol.NewMessage(protocol.RoleUser, "list the home directory")
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content}
}

// Validate returns an error when the message role is unknown.
func (m Message) Validate() error {
	if !m.Role.IsValid() {
		return fmt.Errorf("invalid message role %q", m.Role)
	}
	return nil
}

// InitMessages creates a single-element message slice from a role and content string.
func InitMessages(role Role, content string) []Message {
	return []Message{NewMessage(role, content)}
}
