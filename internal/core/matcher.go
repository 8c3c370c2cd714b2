package core

import "github.com/Ap1297/Random-Chat-Application/internal/audit"

type matchOutcome int

const (
	matchIdle matchOutcome = iota
	matchPaired
	matchStale
)

// tryPairWaitingUsersLocked takes the earliest compatible two sessions from
// the pool. If both are still open they become partners; otherwise the live
// one goes back to the tail and the stale one is dropped. It never retries on
// its own.
func (r *Relay) tryPairWaitingUsersLocked() matchOutcome {
	if r.pool.Size() < 2 {
		return matchIdle
	}
	a, b, ok := r.pool.DequeuePair(r.compatible)
	if !ok {
		return matchIdle
	}

	aLive, bLive := r.registry.IsOpen(a), r.registry.IsOpen(b)
	if !aLive || !bLive {
		if aLive {
			r.pool.Enqueue(a)
		}
		if bLive {
			r.pool.Enqueue(b)
		}
		r.log.Debug("dropped stale waiting session", "first", a, "first_open", aLive, "second", b, "second_open", bLive)
		return matchStale
	}

	if err := r.pairs.Pair(a, b); err != nil {
		r.log.Error("pairing invariant violated", "first", a, "second", b, "err", err)
	}
	r.clearAvoidLocked(a)
	r.clearAvoidLocked(b)
	r.pairsCreated++
	r.metrics.pairCreated()
	r.journal.Record(audit.Event{Kind: audit.KindPair, SessionID: a, PartnerID: b})

	aName := r.displayNameOr(a, anonymousName)
	bName := r.displayNameOr(b, anonymousName)
	r.emit(a, NewSystemEnvelope(r.clock, TypePartnerConnected, partnerJoinedLabel+bName))
	r.emit(b, NewSystemEnvelope(r.clock, TypePartnerConnected, partnerJoinedLabel+aName))
	r.emit(a, NewUsersEnvelope(r.clock, aName, bName))
	r.emit(b, NewUsersEnvelope(r.clock, bName, aName))
	r.log.Info("chat sessions paired", "first", a, "second", b)
	return matchPaired
}

// drainWaitingLocked repeats matching while it makes progress. Every step
// that is not idle shrinks the pool, so the loop ends.
func (r *Relay) drainWaitingLocked() {
	for r.tryPairWaitingUsersLocked() != matchIdle {
	}
}

func (r *Relay) compatible(a, b string) bool {
	return r.avoid[a] != b && r.avoid[b] != a
}

// clearAvoidLocked forgets the FIND_NEW split involving id, on both sides.
func (r *Relay) clearAvoidLocked(id string) {
	other, ok := r.avoid[id]
	if !ok {
		return
	}
	delete(r.avoid, id)
	if r.avoid[other] == id {
		delete(r.avoid, other)
	}
}
