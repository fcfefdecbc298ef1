package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"github.com/solswap/router/internal/model"
)

// Sink appends quote-evaluation records to a JSONL file for offline
// reconciliation. Writes go through a bounded channel drained by one writer
// goroutine, so a slow or broken destination can never add latency or
// failure risk to the quoting path. Records are dropped, not queued
// unboundedly, when the writer falls behind.
type Sink struct {
	ch   chan model.AuditRecord
	log  zerolog.Logger
	done chan struct{}
	once sync.Once
}

const queueDepth = 64

func NewSink(path string, log zerolog.Logger) *Sink {
	s := &Sink{
		ch:   make(chan model.AuditRecord, queueDepth),
		log:  log,
		done: make(chan struct{}),
	}
	go s.writeLoop(path)
	return s
}

// Record enqueues without blocking. Fire-and-forget: a full queue drops the
// record with a debug log and the evaluation proceeds untouched.
func (s *Sink) Record(record model.AuditRecord) {
	select {
	case s.ch <- record:
	default:
		s.log.Debug().Msg("audit queue full, dropping record")
	}
}

// Close stops accepting records and flushes what is queued.
func (s *Sink) Close() {
	s.once.Do(func() {
		close(s.ch)
		<-s.done
	})
}

func (s *Sink) writeLoop(path string) {
	defer close(s.done)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		s.log.Warn().Err(err).Msg("audit directory unavailable, discarding records")
		for range s.ch {
		}
		return
	}

	for record := range s.ch {
		if err := appendRecord(path, record); err != nil {
			s.log.Warn().Err(err).Msg("audit append failed")
		}
	}
}

func appendRecord(path string, record model.AuditRecord) error {
	buf, err := json.Marshal(record)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	buf = append(buf, '\n')
	_, err = f.Write(buf)
	return err
}
