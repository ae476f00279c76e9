package send

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/imsg/internal/bus"
	"github.com/matheus3301/imsg/internal/fallback"
	"github.com/matheus3301/imsg/internal/imessage"
	"go.uber.org/zap"
)

// captionPlaceholder is the literal some hosts put in text to mean
// "attachment with no caption". It is stripped so no human ever sees it.
const captionPlaceholder = "[attachment]"

// invocationTimeout bounds one automation script run.
const invocationTimeout = 30 * time.Second

// ChatResolver resolves the store's numeric chat row id to a stable GUID.
type ChatResolver interface {
	ChatGUIDForRowID(id int64) (string, error)
}

// Dispatcher delivers outbound messages through the Messages application,
// tolerating addressing ambiguity and transient automation failures via an
// escalating strategy ladder.
type Dispatcher struct {
	runner  imessage.Runner
	chats   ChatResolver
	policy  Policy
	stager  *Stager
	service imessage.Service // empty means try iMessage then SMS
	bus     *bus.Bus
	logger  *zap.Logger
}

// NewDispatcher creates a send dispatcher. chats may be nil, in which case
// numeric chat ids are passed through unresolved.
func NewDispatcher(runner imessage.Runner, chats ChatResolver, policy Policy, stager *Stager, preferred string, b *bus.Bus, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		runner:  runner,
		chats:   chats,
		policy:  policy,
		stager:  stager,
		service: imessage.Service(preferred),
		bus:     b,
		logger:  logger,
	}
}

// Result reports a completed send.
type Result struct {
	MessageID string `json:"message_id"`
	Strategy  string `json:"-"`
}

// Send validates, stages and delivers one message. It returns the first
// validation or policy error synchronously; automation failures are only
// surfaced after every strategy in the ladder has failed, wrapped around
// the last underlying error.
func (d *Dispatcher) Send(ctx context.Context, req Request) (*Result, error) {
	target, err := ClassifyTarget(req)
	if err != nil {
		return nil, err
	}
	if req.Text == "" && req.File == "" {
		return nil, ErrEmptyMessage
	}

	text := req.Text
	file := ""
	if req.File != "" {
		if text == captionPlaceholder {
			text = ""
		}
		if err := d.policy.CheckSource(req.File); err != nil {
			return nil, err
		}
		staged, err := d.stager.Stage(req.File)
		if err != nil {
			return nil, fmt.Errorf("stage attachment: %w", err)
		}
		file = staged
	}

	target = d.resolveNumericChatID(target)

	winner, err := fallback.First(ctx, d.ladder(target, text, file))
	if err != nil {
		d.bus.Emit(bus.KindSendFailed, err.Error())
		return nil, fmt.Errorf("all delivery strategies exhausted: %w", err)
	}

	res := &Result{MessageID: uuid.NewString(), Strategy: winner}
	d.logger.Info("message sent",
		zap.String("message_id", res.MessageID),
		zap.String("strategy", winner))
	d.bus.Emit(bus.KindSendOK, res.MessageID)
	return res, nil
}

// resolveNumericChatID swaps a numeric chat row id for its stable GUID
// when the store knows it. Lookup failure keeps the numeric id; the chat
// ladder will try it as-is.
func (d *Dispatcher) resolveNumericChatID(t Target) Target {
	if t.Kind != TargetChatID || d.chats == nil {
		return t
	}
	id, err := strconv.ParseInt(t.Value, 10, 64)
	if err != nil {
		return t
	}
	guid, err := d.chats.ChatGUIDForRowID(id)
	if err != nil || guid == "" {
		if err != nil {
			d.logger.Warn("chat id lookup failed", zap.Int64("chat_id", id), zap.Error(err))
		}
		return t
	}
	return Target{Kind: TargetChatGUID, Value: guid}
}

// services returns the service preference order for handle targets.
func (d *Dispatcher) services() []imessage.Service {
	if d.service != "" {
		return []imessage.Service{d.service}
	}
	return []imessage.Service{imessage.ServiceIMessage, imessage.ServiceSMS}
}

// ladder builds the ordered strategy list for a target. Chat targets are
// already service-bound, so they get a single direct attempt; handle
// targets escalate from service-scoped conversations down to a generic
// buddy send.
func (d *Dispatcher) ladder(target Target, text, file string) []fallback.Step {
	run := func(script string) func(ctx context.Context) error {
		return func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, invocationTimeout)
			defer cancel()
			return d.runner.Run(ctx, script)
		}
	}

	if target.IsChat() {
		return []fallback.Step{{
			Name: "chat",
			Run:  run(imessage.ChatSend(target.Value, text, file)),
		}}
	}

	var steps []fallback.Step
	for _, svc := range d.services() {
		steps = append(steps, fallback.Step{
			Name: "conversation/" + string(svc),
			Run:  run(imessage.ConversationSend(svc, target.Value, text, file)),
		})
	}
	for _, svc := range d.services() {
		steps = append(steps, fallback.Step{
			Name: "direct/" + string(svc),
			Run:  run(imessage.BuddySend(svc, target.Value, text, file)),
		})
	}
	steps = append(steps, fallback.Step{
		Name: "generic",
		Run:  run(imessage.GenericBuddySend(target.Value, text, file)),
	})
	return steps
}
