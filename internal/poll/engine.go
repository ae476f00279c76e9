package poll

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/matheus3301/imsg/internal/attachment"
	"github.com/matheus3301/imsg/internal/bus"
	"github.com/matheus3301/imsg/internal/chatdb"
	"github.com/matheus3301/imsg/internal/status"
	"go.uber.org/zap"
)

// errorStateThreshold is how many consecutive query failures put the
// daemon into the Error state. One failed tick is routine (the store is
// briefly locked during Messages writes); a run of them is not.
const errorStateThreshold = 3

// Querier is the read-only range query against the message store.
type Querier interface {
	MessagesSince(since chatdb.AppleTime, includeAttachments bool, limit int) ([]chatdb.MessageRow, error)
}

// Resolver resolves one raw attachment row into a display-ready record.
type Resolver interface {
	Resolve(ctx context.Context, attachmentID int64, rawPath, declaredMime string) attachment.Record
}

// Message is one fully resolved inbound message as emitted on the bus and
// serialized into the `message` notification.
type Message struct {
	ID             string              `json:"id"`
	Text           string              `json:"text"`
	Timestamp      int64               `json:"timestamp"` // unix milliseconds
	Sender         string              `json:"sender"`
	ChatID         int64               `json:"chat_id,omitempty"`
	ChatIdentifier string              `json:"chat_identifier,omitempty"`
	DisplayName    string              `json:"display_name,omitempty"`
	IsGroup        bool                `json:"is_group"`
	Attachments    []attachment.Record `json:"attachments"`
}

// Engine polls the store on a timer and emits each newly visible message
// exactly once (best effort: the SeenSet, not the checkpoint, is the
// source of truth for "already emitted").
type Engine struct {
	store    Querier
	resolver Resolver
	cpStore  CheckpointStore
	machine  *status.Machine
	bus      *bus.Bus
	logger   *zap.Logger
	interval time.Duration

	// failures counts consecutive query errors. Only tick touches it,
	// and ticks are serialized by the inFlight guard.
	failures int

	mu          sync.Mutex
	cancel      context.CancelFunc
	bootstraped bool
	cp          Checkpoint
	seen        *SeenSet

	includeAttachments atomic.Bool
	inFlight           atomic.Bool
}

// NewEngine creates a poll engine. It starts idle; Subscribe starts the
// timer loop. machine may be nil, in which case repeated failures are
// logged but no state transition happens.
func NewEngine(store Querier, resolver Resolver, cpStore CheckpointStore, machine *status.Machine, b *bus.Bus, logger *zap.Logger, interval time.Duration) *Engine {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Engine{
		store:    store,
		resolver: resolver,
		cpStore:  cpStore,
		machine:  machine,
		bus:      b,
		logger:   logger,
		interval: interval,
		seen:     NewSeenSet(),
	}
}

// Subscribe starts the timer loop if it is not already running and sets
// whether future queries include attachment rows. The SeenSet survives
// subscribe/unsubscribe cycles; the checkpoint is bootstrapped once per
// process.
func (e *Engine) Subscribe(ctx context.Context, attachments bool) {
	e.includeAttachments.Store(attachments)

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.bootstraped {
		e.cp = Bootstrap(e.cpStore, time.Now())
		e.bootstraped = true
		e.logger.Info("poll checkpoint bootstrapped",
			zap.Int64("last_seen", int64(e.cp.LastSeen)))
	}
	if e.cancel != nil {
		return
	}
	ctx, e.cancel = context.WithCancel(ctx)
	go e.loop(ctx)
	e.logger.Info("poll engine started", zap.Duration("interval", e.interval))
}

// Unsubscribe stops the timer loop. Safe to call when not running.
func (e *Engine) Unsubscribe() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
		e.logger.Info("poll engine stopped")
	}
}

// Stop shuts the engine down. Alias of Unsubscribe, kept for lifecycle
// symmetry with the other daemon components.
func (e *Engine) Stop() {
	e.Unsubscribe()
}

func (e *Engine) loop(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// A slow tick is skipped rather than overlapped: the timer
			// keeps firing and the guard in tick drops re-entrant runs.
			go e.tick(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// tick runs one poll pass: query, group, filter, dedup-emit, persist.
func (e *Engine) tick(ctx context.Context) {
	if !e.inFlight.CompareAndSwap(false, true) {
		return
	}
	defer e.inFlight.Store(false)

	e.mu.Lock()
	since := e.cp.LastSeen
	e.mu.Unlock()

	rows, err := e.store.MessagesSince(since, e.includeAttachments.Load(), chatdb.MaxRowsPerQuery)
	if err != nil {
		e.failures++
		e.logger.Error("poll query failed",
			zap.Int("consecutive", e.failures), zap.Error(err))
		e.bus.Emit(bus.KindPollError, "poll query failed: "+err.Error())
		if e.failures == errorStateThreshold && e.machine != nil {
			if terr := e.machine.Transition(status.Error); terr != nil {
				e.logger.Warn("status transition", zap.Error(terr))
			}
		}
		return
	}
	if e.failures >= errorStateThreshold && e.machine != nil {
		if terr := e.machine.Transition(status.Watching); terr != nil {
			e.logger.Warn("status transition", zap.Error(terr))
		}
	}
	e.failures = 0
	if len(rows) == 0 {
		return
	}

	records, maxSeen := e.group(ctx, rows, since)

	for _, rec := range records {
		id, _ := strconv.ParseInt(rec.ID, 10, 64)
		e.mu.Lock()
		dup := e.seen.Has(id)
		if !dup {
			e.seen.Add(id)
		}
		e.mu.Unlock()
		if dup {
			continue
		}
		e.bus.Emit(bus.KindPollMessage, rec)
	}

	if maxSeen > since {
		e.mu.Lock()
		if maxSeen > e.cp.LastSeen {
			e.cp.LastSeen = maxSeen
		}
		cp := e.cp
		e.mu.Unlock()
		if err := e.cpStore.Save(cp); err != nil {
			e.logger.Error("checkpoint save failed", zap.Error(err))
		}
	}
}

// group collapses flat query rows into ordered messages. Every row seen
// advances the candidate checkpoint, including rows discarded as
// reactions or unaddressable. Filtering and dedup must never stall
// checkpoint progress.
func (e *Engine) group(ctx context.Context, rows []chatdb.MessageRow, since chatdb.AppleTime) ([]*Message, chatdb.AppleTime) {
	maxSeen := since
	byID := make(map[int64]*Message)
	var order []*Message

	for _, row := range rows {
		if row.Date > maxSeen {
			maxSeen = row.Date
		}
		// Reactions and other associated events are not messages.
		if row.AssociatedType != 0 {
			continue
		}
		// Rows without a sender are not addressable by store convention.
		if row.Sender == "" {
			continue
		}

		rec, ok := byID[row.MessageID]
		if !ok {
			rec = &Message{
				ID:             strconv.FormatInt(row.MessageID, 10),
				Text:           row.Text,
				Timestamp:      row.Date.WallClock().UnixMilli(),
				Sender:         row.Sender,
				ChatID:         row.ChatID,
				ChatIdentifier: row.ChatIdentifier,
				DisplayName:    row.DisplayName,
				IsGroup:        chatdb.IsGroupIdentifier(row.ChatIdentifier),
				Attachments:    []attachment.Record{},
			}
			byID[row.MessageID] = rec
			order = append(order, rec)
		}
		if row.AttachmentID != 0 {
			rec.Attachments = append(rec.Attachments,
				e.resolver.Resolve(ctx, row.AttachmentID, row.AttachmentPath, row.AttachmentMime))
		}
	}
	return order, maxSeen
}
