package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tailored-agentic-units/shellpilot/agent/mock"
	"github.com/tailored-agentic-units/shellpilot/core/protocol"
	"github.com/tailored-agentic-units/shellpilot/device"
	"github.com/tailored-agentic-units/shellpilot/history"
	"github.com/tailored-agentic-units/shellpilot/kernel"
	"github.com/tailored-agentic-units/shellpilot/observability"
	"github.com/tailored-agentic-units/shellpilot/remote"
	"github.com/tailored-agentic-units/shellpilot/service"
)

var kitchen = device.Device{
	ID: "pi-kitchen",
	Target: remote.Target{
		Host:     "raspberrypi.local",
		Username: "pi",
		Password: "raspberry",
	},
}

// --- Fakes ---

type fakeRunner struct {
	mu        sync.Mutex
	tasks     []string
	histories [][]protocol.Message
	run       func(ctx context.Context, task string) (*kernel.Outcome, error)
}

func (r *fakeRunner) Run(ctx context.Context, task string, target remote.Target, history ...protocol.Message) (*kernel.Outcome, error) {
	r.mu.Lock()
	r.tasks = append(r.tasks, task)
	r.histories = append(r.histories, append([]protocol.Message(nil), history...))
	r.mu.Unlock()

	if r.run != nil {
		return r.run(ctx, task)
	}
	return &kernel.Outcome{Status: kernel.StatusComplete, Detail: "done: " + task, Iterations: 1}, nil
}

type fakeSession struct{}

func (fakeSession) Exec(ctx context.Context, command string, timeout time.Duration) (remote.ExecResult, error) {
	return remote.ExecResult{Stdout: "out:" + command + "\n"}, nil
}

func (fakeSession) Interactive(ctx context.Context, command string, idle remote.IdleConfig) (string, error) {
	return "shell:" + command, nil
}

func (fakeSession) Close() error { return nil }

type fakeConnector struct {
	mu      sync.Mutex
	targets []remote.Target
}

func (c *fakeConnector) Connect(ctx context.Context, target remote.Target) (remote.Session, error) {
	c.mu.Lock()
	c.targets = append(c.targets, target)
	c.mu.Unlock()
	return fakeSession{}, nil
}

type captureObserver struct {
	mu     sync.Mutex
	events []observability.Event
}

func (c *captureObserver) OnEvent(ctx context.Context, event observability.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureObserver) count(typ observability.EventType) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

type fixture struct {
	service  *service.Service
	runner   *fakeRunner
	chat     *mock.Producer
	store    *history.MemoryStore
	observer *captureObserver
}

func newFixture(t *testing.T, runner service.Runner, chat *mock.Producer) *fixture {
	t.Helper()

	f := &fixture{
		chat:     chat,
		store:    history.NewMemoryStore(),
		observer: &captureObserver{},
	}
	if fr, ok := runner.(*fakeRunner); ok {
		f.runner = fr
	}

	svc, err := service.New(nil, service.Dependencies{
		Runner:  runner,
		Chat:    chat,
		History: f.store,
		Devices: device.NewMemoryRegistry(kitchen),
	}, service.WithObserver(f.observer))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	f.service = svc
	return f
}

func (f *fixture) stored(t *testing.T, id string) []protocol.Message {
	t.Helper()
	msgs, err := f.store.Load(context.Background(), id)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return msgs
}

// --- Execute ---

func TestExecute_PersistsCompressedOutcome(t *testing.T) {
	producer := mock.Replies(
		`{"ExecuteCommand": "uname -r"}`,
		`{"Complete": "kernel is 6.1"}`,
	)
	connector := &fakeConnector{}

	cfg := kernel.DefaultConfig()
	k, err := kernel.New(&cfg,
		kernel.WithProducer(producer),
		kernel.WithConnector(connector),
		kernel.WithObserver(observability.NoOpObserver{}),
	)
	if err != nil {
		t.Fatalf("kernel.New failed: %v", err)
	}

	f := newFixture(t, k, mock.NewProducer())

	resp, err := f.service.Execute(context.Background(), &service.ExecuteRequest{
		ConversationID: "c1",
		DeviceID:       "pi-kitchen",
		TaskMarkdown:   "which kernel is running?",
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if resp.Status != kernel.StatusComplete {
		t.Errorf("got status %q, want %q", resp.Status, kernel.StatusComplete)
	}
	if resp.Detail != "kernel is 6.1" {
		t.Errorf("got detail %q, want %q", resp.Detail, "kernel is 6.1")
	}
	if resp.Commands != 1 {
		t.Errorf("got %d commands, want 1", resp.Commands)
	}

	want := "Outcome Complete:\nkernel is 6.1"
	if len(resp.UpdatedHistory) != 1 || resp.UpdatedHistory[0].Content != want {
		t.Fatalf("got updated history %+v, want one %q message", resp.UpdatedHistory, want)
	}

	stored := f.stored(t, "c1")
	if len(stored) != 1 {
		t.Fatalf("got %d stored messages, want 1", len(stored))
	}
	if stored[0].Role != protocol.RoleAssistant || stored[0].Content != want {
		t.Errorf("got stored %+v", stored[0])
	}

	if len(connector.targets) != 1 || connector.targets[0] != kitchen.Target {
		t.Errorf("got targets %+v, want the kitchen device", connector.targets)
	}
}

func TestExecute_FailureOutcome(t *testing.T) {
	runner := &fakeRunner{
		run: func(ctx context.Context, task string) (*kernel.Outcome, error) {
			return &kernel.Outcome{Status: kernel.StatusExceeded, Detail: "budget"}, nil
		},
	}
	f := newFixture(t, runner, mock.NewProducer())

	resp, err := f.service.Execute(context.Background(), &service.ExecuteRequest{
		ConversationID: "c1",
		DeviceID:       "pi-kitchen",
		TaskMarkdown:   "loop forever",
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if resp.Status != kernel.StatusExceeded {
		t.Errorf("got status %q, want %q", resp.Status, kernel.StatusExceeded)
	}
	if got := f.stored(t, "c1"); len(got) != 1 || got[0].Content != "Outcome Exceeded:\nbudget" {
		t.Errorf("got stored %+v", got)
	}
}

func TestExecute_SeedsRunWithoutSystemMessages(t *testing.T) {
	runner := &fakeRunner{}
	f := newFixture(t, runner, mock.NewProducer())
	ctx := context.Background()

	prior := []protocol.Message{
		protocol.NewMessage(protocol.RoleSystem, service.ChatPrompt),
		protocol.NewMessage(protocol.RoleUser, "how do I list files?"),
		protocol.NewMessage(protocol.RoleAssistant, "run ls"),
	}
	if err := f.store.Append(ctx, "c1", prior...); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	resp, err := f.service.Execute(ctx, &service.ExecuteRequest{
		ConversationID: "c1",
		DeviceID:       "pi-kitchen",
		TaskMarkdown:   "list files",
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	seed := runner.histories[0]
	if len(seed) != 2 {
		t.Fatalf("got %d seed messages, want 2", len(seed))
	}
	for _, m := range seed {
		if m.Role == protocol.RoleSystem {
			t.Errorf("system message passed to the run: %q", m.Content)
		}
	}

	if len(resp.UpdatedHistory) != 4 {
		t.Errorf("got %d messages in updated history, want 4", len(resp.UpdatedHistory))
	}
	if got := f.stored(t, "c1"); len(got) != 4 {
		t.Errorf("got %d stored messages, want 4", len(got))
	}
}

func TestExecute_Errors(t *testing.T) {
	runErr := errors.New("dial tcp: connection refused")

	tests := []struct {
		name    string
		req     service.ExecuteRequest
		run     func(ctx context.Context, task string) (*kernel.Outcome, error)
		wantErr error
	}{
		{
			name:    "empty device",
			req:     service.ExecuteRequest{ConversationID: "c1", TaskMarkdown: "x"},
			wantErr: device.ErrEmptyID,
		},
		{
			name:    "empty task",
			req:     service.ExecuteRequest{ConversationID: "c1", DeviceID: "pi-kitchen"},
			wantErr: service.ErrEmptyTask,
		},
		{
			name:    "unknown device",
			req:     service.ExecuteRequest{ConversationID: "c1", DeviceID: "pi-garage", TaskMarkdown: "x"},
			wantErr: device.ErrNotFound,
		},
		{
			name: "run failure",
			req:  service.ExecuteRequest{ConversationID: "c1", DeviceID: "pi-kitchen", TaskMarkdown: "x"},
			run: func(ctx context.Context, task string) (*kernel.Outcome, error) {
				return &kernel.Outcome{Status: kernel.StatusError, Detail: "connection failed"}, runErr
			},
			wantErr: runErr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, &fakeRunner{run: tt.run}, mock.NewProducer())

			_, err := f.service.Execute(context.Background(), &tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
			if got := f.stored(t, "c1"); len(got) != 0 {
				t.Errorf("got %d stored messages after a failure, want 0", len(got))
			}
		})
	}
}

// --- Chat and History ---

func TestChat_SeedsAndPersistsTurn(t *testing.T) {
	chat := mock.Replies("```bash\ncd /home/pi && ls\n```", "```bash\ncd /tmp\n```")
	f := newFixture(t, &fakeRunner{}, chat)
	ctx := context.Background()

	resp, err := f.service.Chat(ctx, &service.ChatRequest{ConversationID: "c1", UserMessage: "list my files"})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if !strings.Contains(resp.AssistantMarkdown, "ls") {
		t.Errorf("got reply %q", resp.AssistantMarkdown)
	}
	if resp.ConversationID != "c1" {
		t.Errorf("got conversation %q, want %q", resp.ConversationID, "c1")
	}

	first := chat.Request(0)
	if len(first) != 2 || first[0].Role != protocol.RoleSystem || first[1].Content != "list my files" {
		t.Errorf("got first request %+v", first)
	}

	if _, err := f.service.Chat(ctx, &service.ChatRequest{ConversationID: "c1", UserMessage: "and tmp?"}); err != nil {
		t.Fatalf("second Chat failed: %v", err)
	}
	if got := len(chat.Request(1)); got != 4 {
		t.Errorf("got %d messages in second request, want 4", got)
	}

	stored := f.stored(t, "c1")
	wantRoles := []protocol.Role{
		protocol.RoleSystem,
		protocol.RoleUser, protocol.RoleAssistant,
		protocol.RoleUser, protocol.RoleAssistant,
	}
	if len(stored) != len(wantRoles) {
		t.Fatalf("got %d stored messages, want %d", len(stored), len(wantRoles))
	}
	for i, role := range wantRoles {
		if stored[i].Role != role {
			t.Errorf("message %d: got role %q, want %q", i, stored[i].Role, role)
		}
	}
}

func TestChat_ProducerErrorPersistsNothing(t *testing.T) {
	chat := mock.NewProducer(mock.Fail(errors.New("rate limited")))
	f := newFixture(t, &fakeRunner{}, chat)

	_, err := f.service.Chat(context.Background(), &service.ChatRequest{ConversationID: "c1", UserMessage: "hi"})
	if !errors.Is(err, service.ErrChatFailed) {
		t.Fatalf("got %v, want ErrChatFailed", err)
	}

	stored := f.stored(t, "c1")
	if len(stored) != 1 || stored[0].Role != protocol.RoleSystem {
		t.Errorf("got stored %+v, want only the seeded prompt", stored)
	}
}

func TestChat_EmptyMessage(t *testing.T) {
	f := newFixture(t, &fakeRunner{}, mock.NewProducer())

	_, err := f.service.Chat(context.Background(), &service.ChatRequest{ConversationID: "c1"})
	if !errors.Is(err, service.ErrEmptyMessage) {
		t.Errorf("got %v, want ErrEmptyMessage", err)
	}
}

func TestHistory_SeedsOnce(t *testing.T) {
	f := newFixture(t, &fakeRunner{}, mock.NewProducer())
	ctx := context.Background()

	for range 2 {
		resp, err := f.service.History(ctx, &service.HistoryRequest{ConversationID: "c1"})
		if err != nil {
			t.Fatalf("History failed: %v", err)
		}
		if len(resp.History) != 1 {
			t.Fatalf("got %d messages, want 1", len(resp.History))
		}
		if resp.History[0].Role != protocol.RoleSystem || resp.History[0].Content != service.ChatPrompt {
			t.Errorf("got %+v, want the chat prompt", resp.History[0])
		}
	}

	if got := f.observer.count(service.EventHistorySeeded); got != 1 {
		t.Errorf("got %d seed events, want 1", got)
	}
}

func TestDefaultConversation(t *testing.T) {
	f := newFixture(t, &fakeRunner{}, mock.Replies("hello"))

	resp, err := f.service.Chat(context.Background(), &service.ChatRequest{UserMessage: "hi"})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.ConversationID != "default" {
		t.Errorf("got conversation %q, want %q", resp.ConversationID, "default")
	}
	if got := f.stored(t, "default"); len(got) != 3 {
		t.Errorf("got %d stored messages, want 3", len(got))
	}
}

// --- Session table ---

func TestCancel_StopsRunningExecute(t *testing.T) {
	started := make(chan struct{})
	runner := &fakeRunner{
		run: func(ctx context.Context, task string) (*kernel.Outcome, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	f := newFixture(t, runner, mock.NewProducer())

	errs := make(chan error, 1)
	go func() {
		_, err := f.service.Execute(context.Background(), &service.ExecuteRequest{
			ConversationID: "c1",
			DeviceID:       "pi-kitchen",
			TaskMarkdown:   "sleep",
		})
		errs <- err
	}()

	<-started
	resp, err := f.service.Cancel(context.Background(), &service.CancelRequest{ConversationID: "c1"})
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if !resp.Cancelled {
		t.Error("expected Cancelled to be true")
	}

	select {
	case err := <-errs:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("got %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Execute did not return after Cancel")
	}

	if got := f.service.Active(); got != 0 {
		t.Errorf("got %d active conversations, want 0", got)
	}
	if got := len(f.stored(t, "c1")); got != 0 {
		t.Errorf("got %d stored messages, want 0", got)
	}
}

func TestCancel_Idle(t *testing.T) {
	f := newFixture(t, &fakeRunner{}, mock.NewProducer())

	resp, err := f.service.Cancel(context.Background(), &service.CancelRequest{ConversationID: "c1"})
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if resp.Cancelled {
		t.Error("expected Cancelled to be false")
	}
}

func TestExecute_SerializesPerConversation(t *testing.T) {
	var running, peak atomic.Int32
	release := make(chan struct{})
	entered := make(chan string, 4)

	runner := &fakeRunner{
		run: func(ctx context.Context, task string) (*kernel.Outcome, error) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			entered <- task
			<-release
			running.Add(-1)
			return &kernel.Outcome{Status: kernel.StatusComplete, Detail: task}, nil
		},
	}
	f := newFixture(t, runner, mock.NewProducer())

	var wg sync.WaitGroup
	for _, task := range []string{"first", "second"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.Execute(context.Background(), &service.ExecuteRequest{
				ConversationID: "shared",
				DeviceID:       "pi-kitchen",
				TaskMarkdown:   task,
			})
			if err != nil {
				t.Errorf("Execute %s failed: %v", task, err)
			}
		}()
	}

	<-entered
	select {
	case task := <-entered:
		t.Fatalf("%s entered while another run held the conversation", task)
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	wg.Wait()

	if got := peak.Load(); got != 1 {
		t.Errorf("got peak concurrency %d, want 1", got)
	}
	if got := len(f.stored(t, "shared")); got != 2 {
		t.Errorf("got %d stored messages, want 2", got)
	}
}

func TestExecute_ConcurrentConversations(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan string, 2)

	runner := &fakeRunner{
		run: func(ctx context.Context, task string) (*kernel.Outcome, error) {
			entered <- task
			<-release
			return &kernel.Outcome{Status: kernel.StatusComplete, Detail: task}, nil
		},
	}
	f := newFixture(t, runner, mock.NewProducer())

	var wg sync.WaitGroup
	for _, id := range []string{"a", "b"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.service.Execute(context.Background(), &service.ExecuteRequest{
				ConversationID: id,
				DeviceID:       "pi-kitchen",
				TaskMarkdown:   id,
			})
		}()
	}

	for range 2 {
		select {
		case <-entered:
		case <-time.After(5 * time.Second):
			t.Fatal("runs on different conversations did not overlap")
		}
	}
	close(release)
	wg.Wait()

	if got := f.service.Active(); got != 0 {
		t.Errorf("got %d active conversations, want 0", got)
	}
}

func TestExecute_WaitingRequestHonorsContext(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	runner := &fakeRunner{
		run: func(ctx context.Context, task string) (*kernel.Outcome, error) {
			close(started)
			<-release
			return &kernel.Outcome{Status: kernel.StatusComplete}, nil
		},
	}
	f := newFixture(t, runner, mock.NewProducer())

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.service.Execute(context.Background(), &service.ExecuteRequest{
			ConversationID: "c1", DeviceID: "pi-kitchen", TaskMarkdown: "hold",
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := f.service.History(ctx, &service.HistoryRequest{ConversationID: "c1"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("got %v, want context.DeadlineExceeded", err)
	}

	close(release)
	<-done
}

// --- Construction ---

func TestNew_MissingDependency(t *testing.T) {
	deps := service.Dependencies{
		Runner:  &fakeRunner{},
		Chat:    mock.NewProducer(),
		History: history.NewMemoryStore(),
	}

	_, err := service.New(nil, deps)
	if !errors.Is(err, service.ErrMissingDependency) {
		t.Errorf("got %v, want ErrMissingDependency", err)
	}
}

func TestConfig_Merge(t *testing.T) {
	cfg := service.DefaultConfig()
	cfg.Merge(&service.Config{DefaultConversation: "lab"})

	if cfg.DefaultConversation != "lab" {
		t.Errorf("got %q, want %q", cfg.DefaultConversation, "lab")
	}
	if cfg.ChatPrompt != service.ChatPrompt {
		t.Error("empty ChatPrompt overrode the default")
	}
}
