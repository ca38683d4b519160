package kernel

import (
	"fmt"

	"github.com/tailored-agentic-units/shellpilot/core/protocol"
	"github.com/tailored-agentic-units/shellpilot/directive"
)

// Status is the terminal state of a run.
type Status string

const (
	StatusComplete Status = "Complete"
	StatusError    Status = "Error"
	StatusExceeded Status = "Exceeded"
)

// Outcome is the single result of one run. Detail is the success summary,
// the rendered failure record, a protocol violation, or a connection
// failure. Iterations and Commands are accounting only and are not
// persisted.
type Outcome struct {
	Status     Status             `json:"status"`
	Detail     string             `json:"detail"`
	Failure    *directive.Failure `json:"failure,omitempty"`
	Iterations int                `json:"iterations"`
	Commands   int                `json:"commands"`

	// Cause is the protocol error or ErrMaxIterations behind an Error or
	// Exceeded outcome.
	Cause error `json:"-"`
}

// Compress renders an outcome as the one assistant message written to
// durable history. Intermediate commands and their output are dropped.
func Compress(o *Outcome) protocol.Message {
	if o == nil {
		return protocol.NewMessage(protocol.RoleAssistant, "Outcome Error:\nno outcome")
	}
	return protocol.NewMessage(
		protocol.RoleAssistant,
		fmt.Sprintf("Outcome %s:\n%s", o.Status, o.Detail),
	)
}

func failureDetail(f directive.Failure) string {
	text, err := directive.Marshal(f)
	if err != nil {
		return fmt.Sprintf("executed %q, observed %q, expected %q",
			f.ExecutedCommand, f.ObservedOutput, f.ExpectedBehavior)
	}
	return text
}
