// Package audit records session lifecycle events: connects, joins, pairings
// and disconnects. Message content is never journaled.
package audit

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

type Kind string

const (
	KindConnect    Kind = "connect"
	KindJoin       Kind = "join"
	KindPair       Kind = "pair"
	KindUnpair     Kind = "unpair"
	KindLeave      Kind = "leave"
	KindDisconnect Kind = "disconnect"
)

type Event struct {
	TsMS      int64          `json:"ts_ms"`
	Kind      Kind           `json:"kind"`
	SessionID string         `json:"session_id"`
	PartnerID string         `json:"partner_id,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
}

type Journal interface {
	Record(event Event)
	Close() error
}

type nopJournal struct{}

func (nopJournal) Record(Event) {}
func (nopJournal) Close() error { return nil }

// Nop discards every event.
func Nop() Journal { return nopJournal{} }

// FileJournal appends one JSON object per line.
type FileJournal struct {
	mu   sync.Mutex
	file *os.File
}

func NewFileJournal(path string) (*FileJournal, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return &FileJournal{file: f}, nil
}

func (j *FileJournal) Close() error {
	if j == nil || j.file == nil {
		return nil
	}
	return j.file.Close()
}

func (j *FileJournal) Record(event Event) {
	if j == nil || j.file == nil {
		return
	}
	if event.TsMS == 0 {
		event.TsMS = time.Now().UnixMilli()
	}
	line, err := json.Marshal(event)
	if err != nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	_, _ = j.file.Write(append(line, '\n'))
}
