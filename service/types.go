package service

import (
	"github.com/tailored-agentic-units/shellpilot/core/protocol"
	"github.com/tailored-agentic-units/shellpilot/directive"
	"github.com/tailored-agentic-units/shellpilot/kernel"
)

// ExecuteRequest asks for one execution run against a device.
type ExecuteRequest struct {
	ConversationID string `json:"conversation_id"`
	DeviceID       string `json:"device_id"`
	TaskMarkdown   string `json:"task_markdown"`
}

// ExecuteResponse carries the run outcome and the durable history after the
// compressed outcome was appended. Protocol violations and an exhausted
// budget are reported here, not as errors.
type ExecuteResponse struct {
	ConversationID string             `json:"conversation_id"`
	Status         kernel.Status      `json:"status"`
	Detail         string             `json:"detail"`
	Failure        *FailureRecord     `json:"failure,omitempty"`
	Iterations     int                `json:"iterations"`
	Commands       int                `json:"commands"`
	UpdatedHistory []protocol.Message `json:"updated_history"`
}

// FailureRecord is the wire form of a failure directive.
type FailureRecord struct {
	ExecutedCommand  string `json:"executed_command"`
	ObservedOutput   string `json:"observed_output"`
	ExpectedBehavior string `json:"expected_behavior"`
}

func newFailureRecord(f *directive.Failure) *FailureRecord {
	if f == nil {
		return nil
	}
	return &FailureRecord{
		ExecutedCommand:  f.ExecutedCommand,
		ObservedOutput:   f.ObservedOutput,
		ExpectedBehavior: f.ExpectedBehavior,
	}
}

// ChatRequest is one plain chat turn.
type ChatRequest struct {
	ConversationID string `json:"conversation_id"`
	UserMessage    string `json:"user_message"`
}

// ChatResponse carries the assistant's markdown reply.
type ChatResponse struct {
	AssistantMarkdown string `json:"assistant_markdown"`
	ConversationID    string `json:"conversation_id"`
}

// HistoryRequest reads a conversation.
type HistoryRequest struct {
	ConversationID string `json:"conversation_id"`
}

// HistoryResponse is the stored conversation.
type HistoryResponse struct {
	ConversationID string             `json:"conversation_id"`
	History        []protocol.Message `json:"history"`
}

// CancelRequest stops the in-flight request on a conversation.
type CancelRequest struct {
	ConversationID string `json:"conversation_id"`
}

// CancelResponse reports whether a request was running.
type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}
