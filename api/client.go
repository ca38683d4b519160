package api

import (
	"context"
	"strings"

	"connectrpc.com/connect"

	"github.com/tailored-agentic-units/shellpilot/service"
)

// Client calls a remote AssistantService.
type Client struct {
	execute *connect.Client[service.ExecuteRequest, service.ExecuteResponse]
	chat    *connect.Client[service.ChatRequest, service.ChatResponse]
	history *connect.Client[service.HistoryRequest, service.HistoryResponse]
	cancel  *connect.Client[service.CancelRequest, service.CancelResponse]
}

// NewClient creates a client for the server at baseURL.
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)

	return &Client{
		execute: connect.NewClient[service.ExecuteRequest, service.ExecuteResponse](httpClient, baseURL+ExecuteProcedure, opts...),
		chat:    connect.NewClient[service.ChatRequest, service.ChatResponse](httpClient, baseURL+ChatProcedure, opts...),
		history: connect.NewClient[service.HistoryRequest, service.HistoryResponse](httpClient, baseURL+HistoryProcedure, opts...),
		cancel:  connect.NewClient[service.CancelRequest, service.CancelResponse](httpClient, baseURL+CancelProcedure, opts...),
	}
}

func (c *Client) Execute(ctx context.Context, req *service.ExecuteRequest) (*service.ExecuteResponse, error) {
	return call(ctx, c.execute, req)
}

func (c *Client) Chat(ctx context.Context, req *service.ChatRequest) (*service.ChatResponse, error) {
	return call(ctx, c.chat, req)
}

func (c *Client) History(ctx context.Context, req *service.HistoryRequest) (*service.HistoryResponse, error) {
	return call(ctx, c.history, req)
}

func (c *Client) Cancel(ctx context.Context, req *service.CancelRequest) (*service.CancelResponse, error) {
	return call(ctx, c.cancel, req)
}

func call[Req, Res any](ctx context.Context, client *connect.Client[Req, Res], req *Req) (*Res, error) {
	res, err := client.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}
