package core

import "sync"

// PairingTable is the symmetric partner mapping.
type PairingTable struct {
	mu       sync.RWMutex
	partners map[string]string
}

func NewPairingTable() *PairingTable {
	return &PairingTable{partners: make(map[string]string)}
}

// Pair installs a <-> b. Callers must ensure neither side is paired; if one
// is, the stale mapping is dropped first and ErrAlreadyPaired is returned so
// the caller can log the sequencing bug.
func (t *PairingTable) Pair(a, b string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var err error
	for _, id := range []string{a, b} {
		if old, ok := t.partners[id]; ok {
			err = ErrAlreadyPaired
			delete(t.partners, old)
			delete(t.partners, id)
		}
	}
	t.partners[a] = b
	t.partners[b] = a
	return err
}

func (t *PairingTable) PartnerOf(id string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.partners[id]
	return p, ok
}

// Unpair removes both directions of the mapping that includes id.
func (t *PairingTable) Unpair(id string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.partners[id]
	if !ok {
		return "", false
	}
	delete(t.partners, id)
	if t.partners[p] == id {
		delete(t.partners, p)
	}
	return p, true
}

// Len is the number of pairs.
func (t *PairingTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.partners) / 2
}
