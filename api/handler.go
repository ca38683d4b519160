// Package api exposes the service over Connect unary RPCs with a JSON codec.
//
//	path, handler := api.NewHandler(svc)
//	mux.Handle(path, handler)
package api

import (
	"context"
	"net/http"

	"connectrpc.com/connect"

	"github.com/tailored-agentic-units/shellpilot/service"
)

// ServiceName is the fully-qualified RPC service name.
const ServiceName = "shellpilot.v1.AssistantService"

// Procedure paths.
const (
	ExecuteProcedure = "/" + ServiceName + "/Execute"
	ChatProcedure    = "/" + ServiceName + "/Chat"
	HistoryProcedure = "/" + ServiceName + "/History"
	CancelProcedure  = "/" + ServiceName + "/Cancel"
)

// Assistant is the RPC surface. *service.Service and *Client implement it.
type Assistant interface {
	Execute(ctx context.Context, req *service.ExecuteRequest) (*service.ExecuteResponse, error)
	Chat(ctx context.Context, req *service.ChatRequest) (*service.ChatResponse, error)
	History(ctx context.Context, req *service.HistoryRequest) (*service.HistoryResponse, error)
	Cancel(ctx context.Context, req *service.CancelRequest) (*service.CancelResponse, error)
}

// NewHandler builds the Connect handlers for svc and returns the path prefix
// to mount them on.
func NewHandler(svc Assistant, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(ExecuteProcedure, connect.NewUnaryHandler(ExecuteProcedure, unary(svc.Execute), opts...))
	mux.Handle(ChatProcedure, connect.NewUnaryHandler(ChatProcedure, unary(svc.Chat), opts...))
	mux.Handle(HistoryProcedure, connect.NewUnaryHandler(HistoryProcedure, unary(svc.History), opts...))
	mux.Handle(CancelProcedure, connect.NewUnaryHandler(CancelProcedure, unary(svc.Cancel), opts...))

	return "/" + ServiceName + "/", mux
}

func unary[Req, Res any](fn func(context.Context, *Req) (*Res, error)) func(context.Context, *connect.Request[Req]) (*connect.Response[Res], error) {
	return func(ctx context.Context, req *connect.Request[Req]) (*connect.Response[Res], error) {
		res, err := fn(ctx, req.Msg)
		if err != nil {
			return nil, toConnectError(err)
		}
		return connect.NewResponse(res), nil
	}
}
