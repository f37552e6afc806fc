// Package dispatch routes parsed client frames to the owning room
// manager by message tag prefix: mc_* to the board manager, wf_* to
// the warfront manager, and so on, with un-prefixed tags falling
// through to the default (rhythm) manager. A registration table keeps
// the routing open to new modes instead of one giant switch.
package dispatch

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ridgelinegames/corehost/internal/logging"
	"github.com/ridgelinegames/corehost/internal/metrics"
	"github.com/ridgelinegames/corehost/internal/tracing"
	"github.com/ridgelinegames/corehost/internal/wire"
)

// Handler is what every mode exposes to the dispatcher: a single
// entry point that reports whether it consumed the message.
// The envelope's Type has its mode prefix already stripped so handlers
// switch on bare action names ("move", "join_room") regardless of which
// prefix reached them.
type Handler interface {
	Handle(sessionID string, env wire.Envelope) bool
}

// Replier is how the dispatcher reaches the originating client with
// error frames; connreg.Registry satisfies it.
type Replier interface {
	Send(sessionID string, v any)
}

type route struct {
	prefix  string
	handler Handler
}

// Dispatcher owns the prefix routing table. Registration happens once
// at boot before any frame arrives, so Route reads without locking.
type Dispatcher struct {
	routes   []route // longest prefix first
	fallback Handler
	replier  Replier
}

// New builds a Dispatcher that reports unroutable frames back to the
// client through replier.
func New(replier Replier) *Dispatcher {
	return &Dispatcher{replier: replier}
}

// Register binds a tag prefix (including its trailing underscore, e.g.
// "mc_") to a mode handler. Longer prefixes win over shorter ones so
// "wf_" and a hypothetical "wfx_" cannot shadow each other.
func (d *Dispatcher) Register(prefix string, h Handler) {
	d.routes = append(d.routes, route{prefix: prefix, handler: h})
	sort.SliceStable(d.routes, func(i, j int) bool {
		return len(d.routes[i].prefix) > len(d.routes[j].prefix)
	})
}

// RegisterDefault binds the handler for un-prefixed tags (the rhythm
// mode).
func (d *Dispatcher) RegisterDefault(h Handler) {
	d.fallback = h
}

// Route finds the owning handler for env.Type, strips the prefix, and
// invokes the handler. An unrecognized or unconsumed tag is answered
// with an UNKNOWN_TYPE error frame; unknown tags are a handled case,
// not a silent drop.
func (d *Dispatcher) Route(sessionID string, env wire.Envelope) {
	ctx := logging.WithSession(context.Background(), sessionID)
	ctx, span := tracing.StartSpan(ctx, "dispatch."+env.Type)
	defer span.End()

	start := time.Now()
	handled := d.route(sessionID, env)
	metrics.MessageProcessingDuration.WithLabelValues(env.Type).Observe(time.Since(start).Seconds())
	if handled {
		metrics.WebsocketEvents.WithLabelValues(env.Type, "ok").Inc()
		return
	}
	metrics.WebsocketEvents.WithLabelValues(env.Type, "unknown").Inc()
	logging.Warn(ctx, "unroutable message", zap.String("type", env.Type))
	d.replier.Send(sessionID, wire.NewError(wire.CodeUnknownType, "unknown message type: "+env.Type))
}

func (d *Dispatcher) route(sessionID string, env wire.Envelope) bool {
	for _, r := range d.routes {
		if strings.HasPrefix(env.Type, r.prefix) {
			stripped := env
			stripped.Type = env.Type[len(r.prefix):]
			return r.handler.Handle(sessionID, stripped)
		}
	}
	if d.fallback != nil {
		return d.fallback.Handle(sessionID, env)
	}
	return false
}
