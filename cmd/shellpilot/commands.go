package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tailored-agentic-units/shellpilot/agent"
	"github.com/tailored-agentic-units/shellpilot/api"
	"github.com/tailored-agentic-units/shellpilot/device"
	"github.com/tailored-agentic-units/shellpilot/remote"
	"github.com/tailored-agentic-units/shellpilot/service"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func (c *ServeCmd) Run(g *Globals) error {
	a, err := openApp(g)
	if err != nil {
		return err
	}
	defer a.Close()

	if c.Addr != "" {
		a.cfg.Server.Addr = c.Addr
	}

	ctx, stop := signalContext()
	defer stop()

	return api.Serve(ctx, &a.cfg.Server, a.service, func(addr string) {
		a.logger.Info("serving", "addr", addr, "service", api.ServiceName)
	})
}

func (c *RunCmd) Run(g *Globals) error {
	svc, closeFn, err := assistant(g)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, stop := signalContext()
	defer stop()

	resp, err := svc.Execute(ctx, &service.ExecuteRequest{
		ConversationID: c.Conversation,
		DeviceID:       c.Device,
		TaskMarkdown:   c.Task,
	})
	if err != nil {
		return err
	}
	renderOutcome(os.Stdout, resp)
	return nil
}

func (c *ChatCmd) Run(g *Globals) error {
	svc, closeFn, err := assistant(g)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, stop := signalContext()
	defer stop()

	resp, err := svc.Chat(ctx, &service.ChatRequest{
		ConversationID: c.Conversation,
		UserMessage:    c.Message,
	})
	if err != nil {
		return err
	}
	fmt.Println(resp.AssistantMarkdown)
	return nil
}

func (c *HistoryCmd) Run(g *Globals) error {
	svc, closeFn, err := assistant(g)
	if err != nil {
		return err
	}
	defer closeFn()

	resp, err := svc.History(context.Background(), &service.HistoryRequest{ConversationID: c.Conversation})
	if err != nil {
		return err
	}

	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	renderHistory(os.Stdout, resp.ConversationID, resp.History)
	return nil
}

func (c *CancelCmd) Run(g *Globals) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	if cfg.Server.ServerURL == "" {
		return fmt.Errorf("cancel needs a server; set --server or server.server_url")
	}

	svc, closeFn, err := assistant(g)
	if err != nil {
		return err
	}
	defer closeFn()

	resp, err := svc.Cancel(context.Background(), &service.CancelRequest{ConversationID: c.Conversation})
	if err != nil {
		return err
	}
	if resp.Cancelled {
		fmt.Println(successStyle.Render("cancelled"))
	} else {
		fmt.Println(labelStyle.Render("nothing running"))
	}
	return nil
}

func (c *DeviceAddCmd) Run(g *Globals) error {
	d := device.Device{
		ID: c.ID,
		Target: remote.Target{
			Host:       c.Host,
			Port:       c.Port,
			Username:   c.User,
			Password:   c.Password,
			Passphrase: c.Passphrase,
		},
	}
	if c.KeyFile != "" {
		key, err := os.ReadFile(c.KeyFile)
		if err != nil {
			return fmt.Errorf("failed to read key file: %w", err)
		}
		d.PrivateKey = string(key)
	}

	catalog, err := openCatalog(g)
	if err != nil {
		return err
	}
	defer catalog.Close()

	if err := catalog.Put(context.Background(), d); err != nil {
		return err
	}
	fmt.Println(successStyle.Render("saved"), d.ID)
	return nil
}

func (c *DeviceListCmd) Run(g *Globals) error {
	catalog, err := openCatalog(g)
	if err != nil {
		return err
	}
	defer catalog.Close()

	devices, err := catalog.List(context.Background())
	if err != nil {
		return err
	}
	renderDevices(os.Stdout, devices)
	return nil
}

func (c *DeviceRemoveCmd) Run(g *Globals) error {
	catalog, err := openCatalog(g)
	if err != nil {
		return err
	}
	defer catalog.Close()

	if err := catalog.Remove(context.Background(), c.ID); err != nil {
		return err
	}
	fmt.Println(successStyle.Render("removed"), c.ID)
	return nil
}

func (c *ModelsCmd) Run(g *Globals) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	registry, err := newProducers(&cfg)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	for _, info := range registry.List() {
		fmt.Printf("%s  %s\n", headerStyle.Render(info.Name), labelStyle.Render(info.Provider+" "+info.Model))

		producer, err := registry.Get(info.Name)
		if err != nil {
			return err
		}
		lister, ok := producer.(agent.ModelLister)
		if !ok {
			continue
		}
		models, err := lister.Models(ctx)
		if err != nil {
			return fmt.Errorf("list models for %s: %w", info.Name, err)
		}
		for _, m := range models {
			fmt.Println("  " + valueStyle.Render(m))
		}
	}
	return nil
}
