// Package memory keeps the short-term turn log and the consolidated core
// memory of every (persona, user) pair.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/moby/locker"
	"github.com/rs/zerolog"
	"github.com/sandevgo/companion/internal/core"
	"github.com/sandevgo/companion/internal/observability"
	"github.com/sandevgo/companion/pkg/log"
)

type Options struct {
	MaxGroups int
	Clock     clockwork.Clock
	Metrics   *observability.Metrics
}

type Store struct {
	kv           core.KVStore
	consolidator *Consolidator
	maxGroups    int
	clock        clockwork.Clock
	metrics      *observability.Metrics

	locks *locker.Locker

	mu       sync.Mutex
	counters map[string]int
}

var _ core.MemoryService = (*Store)(nil)

func NewStore(kv core.KVStore, consolidator *Consolidator, opts Options) *Store {
	if opts.MaxGroups <= 0 {
		opts.MaxGroups = 10
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Store{
		kv:           kv,
		consolidator: consolidator,
		maxGroups:    opts.MaxGroups,
		clock:        opts.Clock,
		metrics:      opts.Metrics,
		locks:        locker.New(),
		counters:     make(map[string]int),
	}
}

func pairKey(persona, userID string) string {
	return core.EscapeSegment(persona) + "/" + core.EscapeSegment(userID)
}

// RecordTurn appends a turn and runs consolidation every
// core.ConsolidationEvery turns. System turns and error replies are ignored.
func (s *Store) RecordTurn(ctx context.Context, persona, userID, userMsg, botReply string, isSystem bool) {
	logger := s.logger(ctx, persona, userID)

	if isSystem || core.IsErrorReply(botReply) {
		logger.Debug().Bool("system", isSystem).Msg("turn not recorded")
		return
	}

	key := pairKey(persona, userID)
	unlock := s.lock(key)
	defer unlock()

	turns := s.loadTurns(ctx, persona, userID)
	turns = append(turns, core.Turn{
		Timestamp: s.clock.Now().Format(core.TimestampLayout),
		User:      userMsg,
		Bot:       botReply,
	})
	if len(turns) > core.MaxShortTermTurns {
		turns = turns[len(turns)-core.MaxShortTermTurns:]
	}

	if err := s.put(ctx, core.MemoryKey{Persona: persona, UserID: userID, Kind: core.KindShortTerm}, turns); err != nil {
		logger.Error().Err(err).Msg("failed to save short-term memory")
		return
	}
	s.metrics.TurnRecorded()

	count := s.increment(key)
	logger.Debug().Int("count", count).Int("every", core.ConsolidationEvery).Msg("turn recorded")
	if count < core.ConsolidationEvery {
		return
	}

	logger.Info().Msg("consolidating core memory")
	s.consolidate(ctx, persona, userID, turns)
	s.resetCounter(key)
}

func (s *Store) consolidate(ctx context.Context, persona, userID string, turns []core.Turn) {
	logger := s.logger(ctx, persona, userID)

	if len(turns) == 0 || s.consolidator == nil {
		return
	}
	if len(turns) > core.ConsolidationEvery {
		turns = turns[len(turns)-core.ConsolidationEvery:]
	}

	current := s.loadCore(ctx, persona, userID)
	content, ok := s.consolidator.Summarize(ctx, persona, userID, turns, current.Content)
	if !ok {
		return
	}

	mem := core.CoreMemory{
		Timestamp: s.clock.Now().Format(core.TimestampLayout),
		Content:   content,
	}
	if err := s.put(ctx, core.MemoryKey{Persona: persona, UserID: userID, Kind: core.KindCore}, mem); err != nil {
		logger.Error().Err(err).Msg("failed to save core memory")
		return
	}
	logger.Info().Int("length", len(content)).Msg("core memory updated")
}

func (s *Store) GetCoreMemory(ctx context.Context, persona, userID string) string {
	return s.loadCore(ctx, persona, userID).Content
}

// GetRecentContext returns the last max_groups turns as alternating user
// and assistant messages, for cold-start hydration.
func (s *Store) GetRecentContext(ctx context.Context, persona, userID string) []core.Message {
	turns := s.RecentTurns(ctx, persona, userID, s.maxGroups)

	msgs := make([]core.Message, 0, len(turns)*2)
	for _, t := range turns {
		msgs = append(msgs,
			core.Message{Role: core.RoleUser, Content: t.User},
			core.Message{Role: core.RoleAssistant, Content: t.Bot},
		)
	}
	return msgs
}

func (s *Store) RecentTurns(ctx context.Context, persona, userID string, n int) []core.Turn {
	turns := s.loadTurns(ctx, persona, userID)
	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	return turns
}

func (s *Store) ResetShortTerm(ctx context.Context, persona, userID string) error {
	key := pairKey(persona, userID)
	unlock := s.lock(key)
	defer unlock()

	s.resetCounter(key)
	return s.kv.Delete(ctx, core.MemoryKey{Persona: persona, UserID: userID, Kind: core.KindShortTerm})
}

func (s *Store) ClearCore(ctx context.Context, persona, userID string) error {
	unlock := s.lock(pairKey(persona, userID))
	defer unlock()

	return s.kv.Delete(ctx, core.MemoryKey{Persona: persona, UserID: userID, Kind: core.KindCore})
}

// lock serializes read-modify-write cycles of one pair.
func (s *Store) lock(key string) func() {
	s.locks.Lock(key)
	return func() { _ = s.locks.Unlock(key) }
}

func (s *Store) loadTurns(ctx context.Context, persona, userID string) []core.Turn {
	var turns []core.Turn
	s.get(ctx, core.MemoryKey{Persona: persona, UserID: userID, Kind: core.KindShortTerm}, &turns)
	return turns
}

func (s *Store) loadCore(ctx context.Context, persona, userID string) core.CoreMemory {
	var mem core.CoreMemory
	s.get(ctx, core.MemoryKey{Persona: persona, UserID: userID, Kind: core.KindCore}, &mem)
	return mem
}

// get decodes the value for key into dst. Missing or unreadable values
// leave dst at its zero value.
func (s *Store) get(ctx context.Context, key core.MemoryKey, dst any) {
	logger := log.FromCtx(ctx)

	data, err := s.kv.Get(ctx, key)
	switch {
	case errors.Is(err, core.ErrNotFound):
		return
	case err != nil:
		logger.Warn().Err(err).Str("key", key.String()).Msg("failed to read memory, using empty state")
		return
	}

	if err := json.Unmarshal(data, dst); err != nil {
		logger.Warn().Err(err).Str("key", key.String()).Msg("corrupt memory value, using empty state")
		// Reset whatever a partial decode left behind.
		switch v := dst.(type) {
		case *[]core.Turn:
			*v = nil
		case *core.CoreMemory:
			*v = core.CoreMemory{}
		case *[]DiaryEntry:
			*v = nil
		}
	}
}

func (s *Store) put(ctx context.Context, key core.MemoryKey, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return s.kv.Put(ctx, key, data)
}

func (s *Store) increment(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[key]++
	return s.counters[key]
}

func (s *Store) resetCounter(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counters, key)
}

// Counter returns the number of turns recorded since the last consolidation.
func (s *Store) Counter(persona, userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[pairKey(persona, userID)]
}

func (s *Store) logger(ctx context.Context, persona, userID string) *zerolog.Logger {
	l := log.FromCtx(ctx).With().Str("persona", persona).Str("user", userID).Logger()
	return &l
}
