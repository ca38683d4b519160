package agent_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/tailored-agentic-units/shellpilot/agent"
)

func openAIConfig(model string) agent.Config {
	return agent.Config{
		Provider: agent.ProviderOpenAI,
		BaseURL:  "http://localhost:11434/v1",
		APIKey:   "test",
		Model:    model,
	}
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := agent.NewRegistry()

	if err := r.Register("planner", openAIConfig("qwen3:8b")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	p, err := r.Get("planner")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if p == nil {
		t.Fatal("Get returned nil producer")
	}

	p2, err := r.Get("planner")
	if err != nil {
		t.Fatalf("second Get failed: %v", err)
	}
	if p != p2 {
		t.Error("second Get returned a different instance")
	}

	openai, ok := p.(*agent.OpenAIProducer)
	if !ok {
		t.Fatalf("got %T, want *agent.OpenAIProducer", p)
	}
	if openai.Model() != "qwen3:8b" {
		t.Errorf("got model %q, want %q", openai.Model(), "qwen3:8b")
	}
}

func TestRegistry_RegisterEmptyName(t *testing.T) {
	r := agent.NewRegistry()

	err := r.Register("", agent.Config{})
	if !errors.Is(err, agent.ErrEmptyProducerName) {
		t.Errorf("got %v, want ErrEmptyProducerName", err)
	}
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	r := agent.NewRegistry()

	if err := r.Register("planner", openAIConfig("a")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	err := r.Register("planner", openAIConfig("b"))
	if !errors.Is(err, agent.ErrProducerExists) {
		t.Errorf("got %v, want ErrProducerExists", err)
	}
}

func TestRegistry_GetNotFound(t *testing.T) {
	r := agent.NewRegistry()

	_, err := r.Get("nonexistent")
	if !errors.Is(err, agent.ErrProducerNotFound) {
		t.Errorf("got %v, want ErrProducerNotFound", err)
	}
}

func TestRegistry_GetUnknownProvider(t *testing.T) {
	r := agent.NewRegistry()
	r.Register("odd", agent.Config{Provider: "carrier-pigeon"})

	_, err := r.Get("odd")
	if !errors.Is(err, agent.ErrUnknownProvider) {
		t.Errorf("got %v, want ErrUnknownProvider", err)
	}
}

func TestRegistry_Replace(t *testing.T) {
	r := agent.NewRegistry()
	r.Register("planner", openAIConfig("small"))

	p1, err := r.Get("planner")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if err := r.Replace("planner", openAIConfig("large")); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}

	p2, err := r.Get("planner")
	if err != nil {
		t.Fatalf("Get after Replace failed: %v", err)
	}
	if p1 == p2 {
		t.Error("expected new producer instance after Replace")
	}
	if got := p2.(*agent.OpenAIProducer).Model(); got != "large" {
		t.Errorf("got model %q, want %q", got, "large")
	}
}

func TestRegistry_ReplaceErrors(t *testing.T) {
	r := agent.NewRegistry()

	if err := r.Replace("", agent.Config{}); !errors.Is(err, agent.ErrEmptyProducerName) {
		t.Errorf("got %v, want ErrEmptyProducerName", err)
	}
	if err := r.Replace("missing", agent.Config{}); !errors.Is(err, agent.ErrProducerNotFound) {
		t.Errorf("got %v, want ErrProducerNotFound", err)
	}
}

func TestRegistry_List(t *testing.T) {
	r := agent.NewRegistry()
	r.Register("zeta", openAIConfig("z-model"))
	r.Register("alpha", agent.Config{})

	infos := r.List()
	if len(infos) != 2 {
		t.Fatalf("got %d entries, want 2", len(infos))
	}
	if infos[0].Name != "alpha" || infos[1].Name != "zeta" {
		t.Errorf("got order %q, %q, want alpha, zeta", infos[0].Name, infos[1].Name)
	}
	if infos[0].Model != "gpt-3.5-turbo" {
		t.Errorf("got default model %q, want %q", infos[0].Model, "gpt-3.5-turbo")
	}
	if infos[1].Provider != agent.ProviderOpenAI {
		t.Errorf("got provider %q, want %q", infos[1].Provider, agent.ProviderOpenAI)
	}
}

func TestRegistry_Unregister(t *testing.T) {
	r := agent.NewRegistry()
	r.Register("planner", openAIConfig("m"))
	r.Get("planner")

	if err := r.Unregister("planner"); err != nil {
		t.Fatalf("Unregister failed: %v", err)
	}
	if _, err := r.Get("planner"); !errors.Is(err, agent.ErrProducerNotFound) {
		t.Errorf("got %v, want ErrProducerNotFound after Unregister", err)
	}
	if err := r.Unregister("planner"); !errors.Is(err, agent.ErrProducerNotFound) {
		t.Errorf("got %v, want ErrProducerNotFound", err)
	}
}

func TestRegistry_ConcurrentGet(t *testing.T) {
	r := agent.NewRegistry()
	r.Register("planner", openAIConfig("m"))

	var wg sync.WaitGroup
	results := make([]agent.Producer, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := r.Get("planner")
			if err != nil {
				t.Errorf("Get failed: %v", err)
				return
			}
			results[i] = p
		}(i)
	}
	wg.Wait()

	for i, p := range results {
		if p != results[0] {
			t.Errorf("result %d is a different instance", i)
		}
	}
}
