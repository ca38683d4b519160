package agent_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tailored-agentic-units/shellpilot/agent"
	"github.com/tailored-agentic-units/shellpilot/core/protocol"
)

func newProducer(t *testing.T, handler http.HandlerFunc) *agent.OpenAIProducer {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := agent.DefaultConfig()
	cfg.BaseURL = srv.URL + "/v1"
	cfg.APIKey = "test-key"
	cfg.Model = "test-model"
	return agent.NewOpenAIProducer(cfg)
}

func TestOpenAIProducer_Complete(t *testing.T) {
	var got struct {
		Model       string             `json:"model"`
		Temperature float64            `json:"temperature"`
		Messages    []protocol.Message `json:"messages"`
	}
	var auth string

	p := newProducer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "cmpl-1",
			"object": "chat.completion",
			"model":  "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": `{"ExecuteCommand":"pwd"}`},
			}},
		})
	})

	messages := append(
		protocol.InitMessages(protocol.RoleSystem, "instructions"),
		protocol.NewMessage(protocol.RoleUser, "task"),
		protocol.NewMessage(protocol.RoleAssistant, "earlier"),
	)

	reply, err := p.Complete(context.Background(), messages)
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if reply != `{"ExecuteCommand":"pwd"}` {
		t.Errorf("got reply %q", reply)
	}

	if auth != "Bearer test-key" {
		t.Errorf("got Authorization %q, want %q", auth, "Bearer test-key")
	}
	if got.Model != "test-model" {
		t.Errorf("got model %q, want %q", got.Model, "test-model")
	}
	if got.Temperature != 0.7 {
		t.Errorf("got temperature %v, want 0.7", got.Temperature)
	}
	if len(got.Messages) != 3 {
		t.Fatalf("got %d messages, want 3", len(got.Messages))
	}
	for i, want := range messages {
		if got.Messages[i] != want {
			t.Errorf("message %d: got %+v, want %+v", i, got.Messages[i], want)
		}
	}
}

func TestOpenAIProducer_NoChoices(t *testing.T) {
	p := newProducer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cmpl-2","object":"chat.completion","choices":[]}`))
	})

	_, err := p.Complete(context.Background(), nil)
	if !errors.Is(err, agent.ErrEmptyReply) {
		t.Errorf("got %v, want ErrEmptyReply", err)
	}
}

func TestOpenAIProducer_ServerError(t *testing.T) {
	calls := 0
	p := newProducer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	})

	_, err := p.Complete(context.Background(), []protocol.Message{
		protocol.NewMessage(protocol.RoleUser, "hi"),
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("got %d calls, want 1 (no retries)", calls)
	}
}

func TestOpenAIProducer_Models(t *testing.T) {
	p := newProducer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","data":[
			{"id":"gpt-3.5-turbo","object":"model","created":1,"owned_by":"openai"},
			{"id":"qwen3:8b","object":"model","created":2,"owned_by":"local"}
		]}`))
	})

	models, err := p.Models(context.Background())
	if err != nil {
		t.Fatalf("Models failed: %v", err)
	}
	if len(models) != 2 || models[0] != "gpt-3.5-turbo" || models[1] != "qwen3:8b" {
		t.Errorf("got %v", models)
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := agent.New(&agent.Config{Provider: "smoke-signal"})
	if !errors.Is(err, agent.ErrUnknownProvider) {
		t.Errorf("got %v, want ErrUnknownProvider", err)
	}
}

func TestConfig_Merge(t *testing.T) {
	cfg := agent.DefaultConfig()
	zero := 0.0

	cfg.Merge(&agent.Config{Model: "other", Temperature: &zero, MaxRetries: 3})

	if cfg.Model != "other" {
		t.Errorf("got model %q, want %q", cfg.Model, "other")
	}
	if cfg.Temperature == nil || *cfg.Temperature != 0 {
		t.Errorf("got temperature %v, want 0", cfg.Temperature)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("got MaxRetries %d, want 3", cfg.MaxRetries)
	}
	if cfg.Provider != agent.ProviderOpenAI {
		t.Errorf("got provider %q, want default %q", cfg.Provider, agent.ProviderOpenAI)
	}

	zero = 1
	if *cfg.Temperature != 0 {
		t.Error("Merge aliased the source temperature")
	}
}
