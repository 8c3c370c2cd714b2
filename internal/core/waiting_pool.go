package core

import (
	"sync"

	"github.com/samber/lo"
)

// WaitingPool is a FIFO of session ids; an id is queued at most once.
type WaitingPool struct {
	mu  sync.Mutex
	ids []string
}

func NewWaitingPool() *WaitingPool {
	return &WaitingPool{}
}

func (p *WaitingPool) Enqueue(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if lo.Contains(p.ids, id) {
		return
	}
	p.ids = append(p.ids, id)
}

func (p *WaitingPool) DequeueOne() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.ids) == 0 {
		return "", false
	}
	id := p.ids[0]
	p.ids = p.ids[1:]
	return id, true
}

// DequeuePair removes the earliest (i, j), i < j, accepted by compatible.
// With a compatible that always says yes this is the two head entries.
func (p *WaitingPool) DequeuePair(compatible func(a, b string) bool) (string, string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := 0; i < len(p.ids); i++ {
		for j := i + 1; j < len(p.ids); j++ {
			a, b := p.ids[i], p.ids[j]
			if compatible != nil && !compatible(a, b) {
				continue
			}
			p.ids = lo.Without(p.ids, a, b)
			return a, b, true
		}
	}
	return "", "", false
}

func (p *WaitingPool) Remove(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = lo.Without(p.ids, id)
}

func (p *WaitingPool) Contains(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return lo.Contains(p.ids, id)
}

func (p *WaitingPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ids)
}

func (p *WaitingPool) Snapshot() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.ids...)
}
