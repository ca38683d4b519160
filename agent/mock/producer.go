// Package mock provides a scripted agent.Producer for tests.
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/tailored-agentic-units/shellpilot/core/protocol"
)

// ErrExhausted is returned once every scripted step has been used.
var ErrExhausted = errors.New("mock producer script exhausted")

// Step produces one reply.
type Step func(ctx context.Context, messages []protocol.Message) (string, error)

// Reply returns a step that answers with content.
func Reply(content string) Step {
	return func(context.Context, []protocol.Message) (string, error) {
		return content, nil
	}
}

// Fail returns a step that fails with err.
func Fail(err error) Step {
	return func(context.Context, []protocol.Message) (string, error) {
		return "", err
	}
}

// Producer replays a fixed script and records every request it receives.
type Producer struct {
	mu       sync.Mutex
	steps    []Step
	requests [][]protocol.Message
}

// NewProducer creates a Producer that runs steps in order.
func NewProducer(steps ...Step) *Producer {
	return &Producer{steps: steps}
}

// Replies is shorthand for a script of plain replies.
func Replies(contents ...string) *Producer {
	steps := make([]Step, len(contents))
	for i, c := range contents {
		steps[i] = Reply(c)
	}
	return NewProducer(steps...)
}

func (p *Producer) Complete(ctx context.Context, messages []protocol.Message) (string, error) {
	p.mu.Lock()
	snapshot := make([]protocol.Message, len(messages))
	copy(snapshot, messages)
	p.requests = append(p.requests, snapshot)

	if len(p.steps) == 0 {
		p.mu.Unlock()
		return "", ErrExhausted
	}
	step := p.steps[0]
	p.steps = p.steps[1:]
	p.mu.Unlock()

	return step(ctx, messages)
}

// Calls returns the number of Complete calls.
func (p *Producer) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// Request returns a copy of the messages passed to the i-th call.
func (p *Producer) Request(i int) []protocol.Message {
	p.mu.Lock()
	defer p.mu.Unlock()

	if i < 0 || i >= len(p.requests) {
		return nil
	}
	out := make([]protocol.Message, len(p.requests[i]))
	copy(out, p.requests[i])
	return out
}
