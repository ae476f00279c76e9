package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/matheus3301/imsg/internal/poll"
	"github.com/matheus3301/imsg/internal/send"
	"github.com/matheus3301/imsg/internal/status"
	"go.uber.org/zap"
)

// Service binds the send dispatcher and poll engine to the protocol
// method table.
type Service struct {
	dispatcher *send.Dispatcher
	engine     *poll.Engine
	machine    *status.Machine
	logger     *zap.Logger
}

// NewService creates the method service.
func NewService(d *send.Dispatcher, e *poll.Engine, m *status.Machine, logger *zap.Logger) *Service {
	return &Service{dispatcher: d, engine: e, machine: m, logger: logger}
}

// Register installs all protocol methods on the server.
func (svc *Service) Register(s *Server) {
	s.Register("send", svc.handleSend)
	s.Register("chats.list", svc.handleChatsList)
	s.Register("watch.subscribe", svc.handleSubscribe)
	s.Register("watch.unsubscribe", svc.handleUnsubscribe)
}

func (svc *Service) handleSend(ctx context.Context, params json.RawMessage) (any, error) {
	var req send.Request
	if len(params) > 0 {
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, invalidParams{fmt.Errorf("invalid send params: %w", err)}
		}
	}
	res, err := svc.dispatcher.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"ok":         true,
		"message_id": res.MessageID,
	}, nil
}

// handleChatsList is a stub: chat listing is out of scope, but the method
// exists so clients can probe for it without a method-not-found error.
func (svc *Service) handleChatsList(context.Context, json.RawMessage) (any, error) {
	return map[string]any{
		"chats": []any{},
		"count": 0,
	}, nil
}

type subscribeParams struct {
	Attachments bool `json:"attachments"`
}

func (svc *Service) handleSubscribe(ctx context.Context, params json.RawMessage) (any, error) {
	var p subscribeParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, invalidParams{fmt.Errorf("invalid subscribe params: %w", err)}
		}
	}
	// The loop must outlive this request; it stops on unsubscribe or
	// daemon shutdown, not when the request context ends.
	svc.engine.Subscribe(context.WithoutCancel(ctx), p.Attachments)
	if err := svc.machine.Transition(status.Watching); err != nil {
		svc.logger.Warn("status transition", zap.Error(err))
	}
	return map[string]any{
		"subscription": uuid.NewString(),
	}, nil
}

func (svc *Service) handleUnsubscribe(context.Context, json.RawMessage) (any, error) {
	svc.engine.Unsubscribe()
	if err := svc.machine.Transition(status.Idle); err != nil {
		svc.logger.Warn("status transition", zap.Error(err))
	}
	return map[string]any{"ok": true}, nil
}
