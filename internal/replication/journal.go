package replication

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
)

var keyLastSeq = []byte("journal_last_seq")

// JournalConfig configura el journal.
type JournalConfig struct {
	Driver string // "memory" | "bolt"
	Dir    string // directorio del archivo bolt
	Retain uint64 // entradas a conservar; 0 = todas
}

// Journal es el log ordenado de payloads replicados por el active. Cada
// entrada es un raft.Log con Index = secuencia.
type Journal struct {
	logs   raft.LogStore
	stable raft.StableStore
	close  func() error
	retain uint64

	mu  sync.Mutex
	seq uint64
}

// OpenJournal abre (o crea) el journal según cfg.
func OpenJournal(cfg JournalConfig) (*Journal, error) {
	switch cfg.Driver {
	case "", "memory":
		s := raft.NewInmemStore()
		return newJournal(s, s, func() error { return nil }, cfg.Retain)
	case "bolt":
		if cfg.Dir == "" {
			return nil, errors.New("journal: bolt driver requires a directory")
		}
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("journal: mkdir: %w", err)
		}
		// log + stable en la misma Bolt DB
		bs, err := raftboltdb.NewBoltStore(filepath.Join(cfg.Dir, "journal.db"))
		if err != nil {
			return nil, fmt.Errorf("journal: bolt store: %w", err)
		}
		j, err := newJournal(bs, bs, bs.Close, cfg.Retain)
		if err != nil {
			_ = bs.Close()
			return nil, err
		}
		return j, nil
	default:
		return nil, fmt.Errorf("journal: unknown driver %q", cfg.Driver)
	}
}

func newJournal(logs raft.LogStore, stable raft.StableStore, closeFn func() error, retain uint64) (*Journal, error) {
	last, err := stable.GetUint64(keyLastSeq)
	if err != nil && !errors.Is(err, raftboltdb.ErrKeyNotFound) {
		return nil, fmt.Errorf("journal: read last seq: %w", err)
	}
	idx, err := logs.LastIndex()
	if err != nil {
		return nil, fmt.Errorf("journal: last index: %w", err)
	}
	if idx > last {
		last = idx
	}
	return &Journal{logs: logs, stable: stable, close: closeFn, retain: retain, seq: last}, nil
}

// Append escribe payload con la siguiente secuencia y la devuelve.
func (j *Journal) Append(payload []byte) (uint64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	next := j.seq + 1
	entry := &raft.Log{
		Index:      next,
		Term:       1,
		Type:       raft.LogCommand,
		Data:       payload,
		AppendedAt: time.Now(),
	}
	if err := j.logs.StoreLog(entry); err != nil {
		return 0, fmt.Errorf("journal: store seq %d: %w", next, err)
	}
	if err := j.stable.SetUint64(keyLastSeq, next); err != nil {
		return 0, fmt.Errorf("journal: persist seq %d: %w", next, err)
	}
	j.seq = next
	return next, j.trimLocked()
}

func (j *Journal) trimLocked() error {
	if j.retain == 0 || j.seq <= j.retain {
		return nil
	}
	first, err := j.logs.FirstIndex()
	if err != nil {
		return fmt.Errorf("journal: first index: %w", err)
	}
	upTo := j.seq - j.retain
	if first == 0 || first > upTo {
		return nil
	}
	if err := j.logs.DeleteRange(first, upTo); err != nil {
		return fmt.Errorf("journal: trim [%d,%d]: %w", first, upTo, err)
	}
	return nil
}

// LastSeq es la última secuencia asignada (0 si nunca se escribió).
func (j *Journal) LastSeq() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.seq
}

// Covers reporta si el journal tiene todas las entradas posteriores a after.
func (j *Journal) Covers(after uint64) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if after > j.seq {
		return false
	}
	if after == j.seq {
		return true
	}
	first, err := j.logs.FirstIndex()
	if err != nil || first == 0 {
		return false
	}
	return first <= after+1
}

// Replay llama fn con cada entrada de (after, upTo] en orden.
func (j *Journal) Replay(after, upTo uint64, fn func(seq uint64, payload []byte) error) error {
	for seq := after + 1; seq <= upTo; seq++ {
		// BoltStore decodifica sobre el Data existente: una entrada nueva por seq
		var entry raft.Log
		if err := j.logs.GetLog(seq, &entry); err != nil {
			return fmt.Errorf("journal: get seq %d: %w", seq, err)
		}
		if err := fn(seq, entry.Data); err != nil {
			return err
		}
	}
	return nil
}

// Close libera el store subyacente.
func (j *Journal) Close() error {
	return j.close()
}
