// Package service is the boundary between callers and the execution loop.
// It resolves devices, loads durable history, runs the kernel and writes the
// compressed outcome back. Requests on one conversation are serialized
// through a session table; requests on different conversations run
// concurrently.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tailored-agentic-units/shellpilot/agent"
	"github.com/tailored-agentic-units/shellpilot/core/protocol"
	"github.com/tailored-agentic-units/shellpilot/device"
	"github.com/tailored-agentic-units/shellpilot/history"
	"github.com/tailored-agentic-units/shellpilot/kernel"
	"github.com/tailored-agentic-units/shellpilot/observability"
	"github.com/tailored-agentic-units/shellpilot/remote"
)

// Runner executes one run of the loop. *kernel.Kernel satisfies it.
type Runner interface {
	Run(ctx context.Context, task string, target remote.Target, history ...protocol.Message) (*kernel.Outcome, error)
}

// Dependencies are the collaborators a Service drives.
type Dependencies struct {
	Runner  Runner
	Chat    agent.Producer
	History history.Store
	Devices device.Registry
}

// Option configures a Service.
type Option func(*Service)

// WithObserver overrides the default SlogObserver.
func WithObserver(o observability.Observer) Option {
	return func(s *Service) { s.observer = o }
}

// Service implements Execute, Chat, History and Cancel.
type Service struct {
	runner   Runner
	chat     agent.Producer
	history  history.Store
	devices  device.Registry
	observer observability.Observer

	defaultConversation string
	chatPrompt          string

	mu            sync.Mutex
	conversations map[string]*conversation
}

// conversation is one entry of the session table. turn has capacity one and
// is held by the request that owns the conversation.
type conversation struct {
	turn   chan struct{}
	cancel context.CancelFunc
	users  int
}

// New creates a Service from configuration merged over the defaults.
func New(cfg *Config, deps Dependencies, opts ...Option) (*Service, error) {
	merged := DefaultConfig()
	if cfg != nil {
		merged.Merge(cfg)
	}

	switch {
	case deps.Runner == nil:
		return nil, fmt.Errorf("%w: runner", ErrMissingDependency)
	case deps.Chat == nil:
		return nil, fmt.Errorf("%w: chat producer", ErrMissingDependency)
	case deps.History == nil:
		return nil, fmt.Errorf("%w: history store", ErrMissingDependency)
	case deps.Devices == nil:
		return nil, fmt.Errorf("%w: device registry", ErrMissingDependency)
	}

	s := &Service{
		runner:              deps.Runner,
		chat:                deps.Chat,
		history:             deps.History,
		devices:             deps.Devices,
		observer:            observability.NewSlogObserver(slog.Default()),
		defaultConversation: merged.DefaultConversation,
		chatPrompt:          merged.ChatPrompt,
		conversations:       make(map[string]*conversation),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Execute runs a task against a device. The stored history, minus its system
// messages, seeds the run. On an outcome exactly one compressed message is
// appended to durable history. Infrastructure failures are returned as
// errors and nothing is persisted.
func (s *Service) Execute(ctx context.Context, req *ExecuteRequest) (*ExecuteResponse, error) {
	id := s.conversationID(req.ConversationID)
	if req.DeviceID == "" {
		return nil, device.ErrEmptyID
	}
	if req.TaskMarkdown == "" {
		return nil, ErrEmptyTask
	}

	ctx, release, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	s.emit(ctx, EventExecuteStart, observability.LevelInfo, map[string]any{
		"conversation_id": id,
		"device_id":       req.DeviceID,
	})

	target, err := s.devices.Lookup(ctx, req.DeviceID)
	if err != nil {
		return nil, s.fail(ctx, id, "device", err)
	}

	stored, err := s.history.Load(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, id, "history", err)
	}

	outcome, err := s.runner.Run(ctx, req.TaskMarkdown, target, planningHistory(stored)...)
	if err != nil {
		return nil, s.fail(ctx, id, "run", err)
	}

	compressed := kernel.Compress(outcome)
	if err := s.history.Append(ctx, id, compressed); err != nil {
		return nil, s.fail(ctx, id, "history", err)
	}

	updated := make([]protocol.Message, 0, len(stored)+1)
	updated = append(updated, stored...)
	updated = append(updated, compressed)

	s.emit(ctx, EventExecuteComplete, observability.LevelInfo, map[string]any{
		"conversation_id": id,
		"device_id":       req.DeviceID,
		"status":          string(outcome.Status),
		"iterations":      outcome.Iterations,
		"commands":        outcome.Commands,
	})

	return &ExecuteResponse{
		ConversationID: id,
		Status:         outcome.Status,
		Detail:         outcome.Detail,
		Failure:        newFailureRecord(outcome.Failure),
		Iterations:     outcome.Iterations,
		Commands:       outcome.Commands,
		UpdatedHistory: updated,
	}, nil
}

// Chat runs one plain chat turn. The user message and the reply are
// appended together once the reply arrives.
func (s *Service) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	id := s.conversationID(req.ConversationID)
	if req.UserMessage == "" {
		return nil, ErrEmptyMessage
	}

	ctx, release, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	stored, err := s.seeded(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, id, "history", err)
	}

	user := protocol.NewMessage(protocol.RoleUser, req.UserMessage)
	messages := make([]protocol.Message, 0, len(stored)+1)
	messages = append(messages, stored...)
	messages = append(messages, user)

	reply, err := s.chat.Complete(ctx, messages)
	if err != nil {
		return nil, s.fail(ctx, id, "chat", fmt.Errorf("%w: %w", ErrChatFailed, err))
	}

	assistant := protocol.NewMessage(protocol.RoleAssistant, reply)
	if err := s.history.Append(ctx, id, user, assistant); err != nil {
		return nil, s.fail(ctx, id, "history", err)
	}

	s.emit(ctx, EventChat, observability.LevelInfo, map[string]any{
		"conversation_id": id,
		"reply_length":    len(reply),
	})

	return &ChatResponse{
		AssistantMarkdown: reply,
		ConversationID:    id,
	}, nil
}

// History returns a conversation, creating it with the chat prompt when it
// does not exist yet.
func (s *Service) History(ctx context.Context, req *HistoryRequest) (*HistoryResponse, error) {
	id := s.conversationID(req.ConversationID)

	ctx, release, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	stored, err := s.seeded(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, id, "history", err)
	}

	return &HistoryResponse{
		ConversationID: id,
		History:        stored,
	}, nil
}

// Cancel stops the request that currently owns the conversation. Requests
// queued behind it are unaffected.
func (s *Service) Cancel(ctx context.Context, req *CancelRequest) (*CancelResponse, error) {
	id := s.conversationID(req.ConversationID)

	s.mu.Lock()
	var cancel context.CancelFunc
	if c, ok := s.conversations[id]; ok {
		cancel = c.cancel
	}
	s.mu.Unlock()

	if cancel == nil {
		return &CancelResponse{Cancelled: false}, nil
	}
	cancel()

	s.emit(ctx, EventCancel, observability.LevelInfo, map[string]any{
		"conversation_id": id,
	})
	return &CancelResponse{Cancelled: true}, nil
}

// Active returns the number of conversations with a running or queued
// request.
func (s *Service) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversations)
}

// acquire waits for the conversation's turn and returns a context that
// Cancel can stop. release must be called exactly once.
func (s *Service) acquire(ctx context.Context, id string) (context.Context, func(), error) {
	s.mu.Lock()
	c, ok := s.conversations[id]
	if !ok {
		c = &conversation{turn: make(chan struct{}, 1)}
		s.conversations[id] = c
	}
	c.users++
	s.mu.Unlock()

	select {
	case c.turn <- struct{}{}:
	case <-ctx.Done():
		s.leave(id, c)
		return nil, nil, fmt.Errorf("waiting for conversation %s: %w", id, ctx.Err())
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	c.cancel = cancel
	s.mu.Unlock()

	release := func() {
		cancel()
		s.mu.Lock()
		c.cancel = nil
		s.mu.Unlock()
		<-c.turn
		s.leave(id, c)
	}
	return runCtx, release, nil
}

func (s *Service) leave(id string, c *conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.users--
	if c.users == 0 {
		delete(s.conversations, id)
	}
}

// seeded loads a conversation and persists the chat prompt when it is empty.
func (s *Service) seeded(ctx context.Context, id string) ([]protocol.Message, error) {
	stored, err := s.history.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(stored) > 0 {
		return stored, nil
	}

	prompt := protocol.NewMessage(protocol.RoleSystem, s.chatPrompt)
	if err := s.history.Append(ctx, id, prompt); err != nil {
		return nil, err
	}

	s.emit(ctx, EventHistorySeeded, observability.LevelVerbose, map[string]any{
		"conversation_id": id,
	})
	return []protocol.Message{prompt}, nil
}

func (s *Service) conversationID(id string) string {
	if id == "" {
		return s.defaultConversation
	}
	return id
}

func (s *Service) fail(ctx context.Context, id, stage string, err error) error {
	s.emit(ctx, EventError, observability.LevelError, map[string]any{
		"conversation_id": id,
		"stage":           stage,
		"error":           err.Error(),
	})
	return err
}

func (s *Service) emit(ctx context.Context, typ observability.EventType, level observability.Level, data map[string]any) {
	s.observer.OnEvent(ctx, observability.Event{
		Type:      typ,
		Level:     level,
		Timestamp: time.Now(),
		Source:    "service",
		Data:      data,
	})
}

// planningHistory drops system messages so the directive protocol
// instructions stay the only system prompt of a run.
func planningHistory(stored []protocol.Message) []protocol.Message {
	out := make([]protocol.Message, 0, len(stored))
	for _, m := range stored {
		if m.Role == protocol.RoleSystem {
			continue
		}
		out = append(out, m)
	}
	return out
}
