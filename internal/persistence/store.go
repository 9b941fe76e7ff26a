// Package persistence keeps an exam tab's in-progress state (answers,
// remaining time, fullscreen resume intent) so a reload or reconnect can
// resume where the student left off.
package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/eptportal/ept-backend/internal/clock"
	"github.com/rs/zerolog"
)

const opTimeout = 3 * time.Second

// Store is a debounced key-value writer. Bursts of writes to one key
// collapse into a single backend write; the last scheduled value wins.
type Store struct {
	backend Backend
	clock   clock.Clock
	log     zerolog.Logger

	mu      sync.Mutex
	pending map[string]*pendingWrite
	gen     map[string]uint64
	closed  bool

	// writeMu serialises backend writes so an older generation can never
	// land after a newer one.
	writeMu sync.Mutex
	written map[string]uint64
}

type pendingWrite struct {
	value string
	gen   uint64
	timer clock.Timer
}

// NewStore creates a Store over backend.
func NewStore(backend Backend, clk clock.Clock, log zerolog.Logger) *Store {
	return &Store{
		backend: backend,
		clock:   clk,
		log:     log.With().Str("component", "session_persistence").Logger(),
		pending: make(map[string]*pendingWrite),
		gen:     make(map[string]uint64),
		written: make(map[string]uint64),
	}
}

// SetDebounced schedules value for key. The first call opens a window of
// delay; later calls inside the window replace the value without extending
// it, so a steady stream of updates still lands once per window. After
// Close the value is written immediately.
func (s *Store) SetDebounced(key, value string, delay time.Duration) {
	s.mu.Lock()
	s.gen[key]++
	gen := s.gen[key]
	if s.closed {
		if p, ok := s.pending[key]; ok {
			p.timer.Stop()
			delete(s.pending, key)
		}
		s.mu.Unlock()
		s.write(key, value, gen)
		return
	}
	if p, ok := s.pending[key]; ok {
		p.value = value
		p.gen = gen
		s.mu.Unlock()
		return
	}
	p := &pendingWrite{value: value, gen: gen}
	p.timer = s.clock.AfterFunc(delay, func() { s.flushPending(key, p) })
	s.pending[key] = p
	s.mu.Unlock()
}

// Set writes value for key now, superseding any pending write.
func (s *Store) Set(key, value string) {
	s.mu.Lock()
	s.gen[key]++
	gen := s.gen[key]
	if p, ok := s.pending[key]; ok {
		p.timer.Stop()
		delete(s.pending, key)
	}
	s.mu.Unlock()

	s.write(key, value, gen)
}

// SetJSONDebounced encodes v and schedules it like SetDebounced.
func (s *Store) SetJSONDebounced(key string, v any, delay time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	s.SetDebounced(key, string(data), delay)
	return nil
}

// Get returns the latest value for key, including a write that is still
// pending. Backend failures are logged and reported as absent.
func (s *Store) Get(key string) (string, bool) {
	s.mu.Lock()
	if p, ok := s.pending[key]; ok {
		v := p.value
		s.mu.Unlock()
		return v, true
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	v, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Read failed, treating as absent")
		return "", false
	}
	return v, ok
}

// GetJSON decodes the value for key into dst. It returns false when the
// key is absent or the stored value does not parse.
func (s *Store) GetJSON(key string, dst any) bool {
	raw, ok := s.Get(key)
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Discarding unparseable value")
		return false
	}
	return true
}

// Remove cancels any pending write for key and deletes the stored value.
func (s *Store) Remove(key string) {
	s.mu.Lock()
	s.gen[key]++
	gen := s.gen[key]
	if p, ok := s.pending[key]; ok {
		p.timer.Stop()
		delete(s.pending, key)
	}
	s.mu.Unlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.written[key] = gen

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := s.backend.Delete(ctx, key); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Delete failed")
	}
}

// Flush writes every pending value now.
func (s *Store) Flush() {
	s.mu.Lock()
	batch := make(map[string]*pendingWrite, len(s.pending))
	for k, p := range s.pending {
		p.timer.Stop()
		batch[k] = p
	}
	s.pending = make(map[string]*pendingWrite)
	s.mu.Unlock()

	for k, p := range batch {
		s.write(k, p.value, p.gen)
	}
}

// Close flushes pending writes. Later writes go straight to the backend.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.Flush()
}

func (s *Store) flushPending(key string, p *pendingWrite) {
	s.mu.Lock()
	if s.pending[key] != p {
		s.mu.Unlock()
		return
	}
	delete(s.pending, key)
	value, gen := p.value, p.gen
	s.mu.Unlock()

	s.write(key, value, gen)
}

func (s *Store) write(key, value string, gen uint64) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.written[key] > gen {
		return
	}
	s.written[key] = gen

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := s.backend.Set(ctx, key, value); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Write failed")
	}
}
