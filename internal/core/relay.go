package core

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/Ap1297/Random-Chat-Application/internal/audit"
	"github.com/benbjohnson/clock"
)

const (
	msgWaiting         = "Waiting for a chat partner..."
	msgLookingForNew   = "Looking for a new chat partner..."
	msgNotConnected    = "You are not connected to a chat partner yet."
	msgPartnerGone     = "Your chat partner has disconnected."
	msgTooFast         = "You are sending messages too fast."
	partnerFallback    = "Your partner"
	anonymousName      = "Anonymous"
	partnerLeftSuffix  = " has disconnected. Waiting for a new partner..."
	partnerJoinedLabel = "You are now chatting with "
)

type Config struct {
	Clock   clock.Clock
	Logger  *slog.Logger
	Journal audit.Journal
	Metrics *Metrics
}

type delivery struct {
	to  string
	env Envelope
}

// Relay owns all pairing state. Every compound operation runs under mu, and
// the envelopes it produces are queued to recipients only after the state
// change is complete.
type Relay struct {
	mu sync.Mutex

	clock   clock.Clock
	log     *slog.Logger
	journal audit.Journal
	metrics *Metrics

	registry *Registry
	pool     *WaitingPool
	pairs    *PairingTable
	// avoid maps a session to the partner it split from via FIND_NEW. Entries
	// come in symmetric pairs.
	avoid  map[string]string
	outbox []delivery

	pairsCreated      uint64
	messagesForwarded uint64
}

func NewRelay(cfg Config) *Relay {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Journal == nil {
		cfg.Journal = audit.Nop()
	}
	return &Relay{
		clock:    cfg.Clock,
		log:      cfg.Logger,
		journal:  cfg.Journal,
		metrics:  cfg.Metrics,
		registry: NewRegistry(),
		pool:     NewWaitingPool(),
		pairs:    NewPairingTable(),
		avoid:    make(map[string]string),
	}
}

func (r *Relay) Close() error {
	return r.journal.Close()
}

// Connect registers a freshly opened connection.
func (r *Relay) Connect(id string, sender Sender) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.registry.Register(id, sender); err != nil {
		return fmt.Errorf("connect %s: %w", id, err)
	}
	r.log.Info("chat session connected", "session_id", id)
	r.journal.Record(audit.Event{Kind: audit.KindConnect, SessionID: id})
	r.commitLocked()
	return nil
}

// HandleMessage decodes one inbound frame and applies it. Undecodable frames
// are dropped; the connection stays open.
func (r *Relay) HandleMessage(id string, raw []byte) {
	cmd, err := DecodeCommand(raw)
	if err != nil {
		r.log.Warn("dropping inbound frame", "session_id", id, "err", err)
		r.metrics.protocolError()
		return
	}
	r.Handle(id, cmd)
}

func (r *Relay) Handle(id string, cmd Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.registry.Lookup(id); !ok {
		r.log.Warn("command for unknown session", "session_id", id)
		return
	}
	switch c := cmd.(type) {
	case JoinCommand:
		r.joinLocked(id, c.Name)
	case FindNewCommand:
		r.findNewLocked(id)
	case LeaveCommand:
		r.leaveLocked(id)
	case ForwardCommand:
		r.forwardLocked(id, c.Envelope)
	default:
		r.log.Warn("unhandled command", "session_id", id, "command", fmt.Sprintf("%T", cmd))
	}
	r.commitLocked()
}

// Notify sends a SYSTEM envelope to one session outside any state change.
func (r *Relay) Notify(id, content string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emit(id, NewSystemEnvelope(r.clock, TypeSystem, content))
	r.commitLocked()
}

// NotifyThrottled tells a session its last message was dropped by a limiter.
func (r *Relay) NotifyThrottled(id string) {
	r.Notify(id, msgTooFast)
}

// Disconnect runs when the transport has closed the connection. Local
// cleanup happens even when the partner can no longer be notified.
func (r *Relay) Disconnect(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.registry.Lookup(id); !ok {
		return
	}
	name := r.registry.ClearDisplayName(id)
	if name == "" {
		name = partnerFallback
	}
	if partner, ok := r.pairs.Unpair(id); ok {
		r.journal.Record(audit.Event{Kind: audit.KindUnpair, SessionID: id, PartnerID: partner, Meta: map[string]any{"reason": "disconnect"}})
		r.releasePartnerLocked(partner, name)
	}
	r.pool.Remove(id)
	r.registry.Deregister(id)
	r.clearAvoidLocked(id)
	r.journal.Record(audit.Event{Kind: audit.KindDisconnect, SessionID: id})
	r.log.Info("chat session disconnected", "session_id", id)
	r.drainWaitingLocked()
	r.commitLocked()
}

func (r *Relay) joinLocked(id, name string) {
	r.registry.SetDisplayName(id, name)
	r.journal.Record(audit.Event{Kind: audit.KindJoin, SessionID: id, Meta: map[string]any{"name": name}})
	if _, paired := r.pairs.PartnerOf(id); paired {
		r.log.Debug("join from paired session treated as rename", "session_id", id)
		return
	}
	r.pool.Enqueue(id)
	r.emit(id, NewSystemEnvelope(r.clock, TypeSystem, msgWaiting))
	r.drainWaitingLocked()
}

func (r *Relay) findNewLocked(id string) {
	name := r.displayNameOr(id, partnerFallback)
	partner, wasPaired := r.pairs.Unpair(id)
	r.pool.Enqueue(id)
	if wasPaired {
		r.avoid[id] = partner
		r.avoid[partner] = id
		r.journal.Record(audit.Event{Kind: audit.KindUnpair, SessionID: id, PartnerID: partner, Meta: map[string]any{"reason": "find_new"}})
		r.releasePartnerLocked(partner, name)
	}
	r.emit(id, NewSystemEnvelope(r.clock, TypeSystem, msgLookingForNew))
	r.drainWaitingLocked()
}

func (r *Relay) leaveLocked(id string) {
	name := r.displayNameOr(id, partnerFallback)
	if partner, ok := r.pairs.Unpair(id); ok {
		r.journal.Record(audit.Event{Kind: audit.KindUnpair, SessionID: id, PartnerID: partner, Meta: map[string]any{"reason": "leave"}})
		r.releasePartnerLocked(partner, name)
	}
	r.pool.Remove(id)
	r.registry.ClearDisplayName(id)
	r.clearAvoidLocked(id)
	r.journal.Record(audit.Event{Kind: audit.KindLeave, SessionID: id})
	r.drainWaitingLocked()
}

func (r *Relay) forwardLocked(id string, env Envelope) {
	partner, ok := r.pairs.PartnerOf(id)
	if !ok {
		r.emit(id, NewSystemEnvelope(r.clock, TypeSystem, msgNotConnected))
		return
	}
	if !r.registry.IsOpen(partner) {
		r.emit(id, NewSystemEnvelope(r.clock, TypeSystem, msgPartnerGone))
		return
	}
	r.emit(partner, env)
	r.messagesForwarded++
	r.metrics.messageForwarded()
}

// releasePartnerLocked tells a live former partner it is alone again and
// puts it back in the pool. A partner that is already gone is left to its
// own disconnect path.
func (r *Relay) releasePartnerLocked(partner, leaverName string) {
	if !r.registry.IsOpen(partner) {
		return
	}
	r.emit(partner, NewSystemEnvelope(r.clock, TypePartnerDisconnected, leaverName+partnerLeftSuffix))
	r.pool.Enqueue(partner)
}

func (r *Relay) displayNameOr(id, fallback string) string {
	if name := r.registry.DisplayName(id); name != "" {
		return name
	}
	return fallback
}

func (r *Relay) emit(to string, env Envelope) {
	r.outbox = append(r.outbox, delivery{to: to, env: env})
}

// commitLocked queues the outbox to recipients. Send never blocks, so
// holding mu here keeps per-recipient order without stalling other sessions.
func (r *Relay) commitLocked() {
	for _, d := range r.outbox {
		if err := r.deliver(d); err != nil {
			r.metrics.deliveryFailed(d.env.Type)
			r.log.Warn("delivery failed", "session_id", d.to, "type", d.env.Type, "err", err)
		}
	}
	r.outbox = r.outbox[:0]
	r.metrics.observeState(r.registry.Len(), r.pool.Size(), r.pairs.Len())
}

func (r *Relay) deliver(d delivery) error {
	sess, ok := r.registry.Lookup(d.to)
	if !ok || sess.Sender == nil {
		return ErrUnknownSession
	}
	if err := sess.Sender.Send(d.env); err != nil {
		return fmt.Errorf("send %s: %w", d.env.Type, err)
	}
	return nil
}

// State reports which of waiting, paired or idle a session is in.
func (r *Relay) State(id string) SessionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pairs.PartnerOf(id); ok {
		return StatePaired
	}
	if r.pool.Contains(id) {
		return StateWaiting
	}
	return StateIdle
}

func (r *Relay) PartnerOf(id string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pairs.PartnerOf(id)
}

func (r *Relay) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{
		Connections:       r.registry.Len(),
		Waiting:           r.pool.Size(),
		Pairs:             r.pairs.Len(),
		PairsCreated:      r.pairsCreated,
		MessagesForwarded: r.messagesForwarded,
	}
}
