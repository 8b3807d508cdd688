package chat

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/onnwee/barrens-chat/backend/telemetry"
)

// Generator is the content-generation collaborator. An empty string with a
// nil error means the generator chose not to post.
type Generator interface {
	Generate(ctx context.Context, persona Persona, recent []ChatMessage) (string, error)
}

// contextMessageCount is how much recent history a persona sees per post.
const contextMessageCount = 10

// Scheduler posts persona messages on a randomized interval while at least
// one human is in the room. Exactly one scheduler runs per process.
//
// The loop is an explicit two-state machine: idle (timer armed) and tick
// (evaluating whether to post). Every tick re-arms the timer exactly once,
// success or failure, by iterating rather than self-invoking, so the
// schedule can never stall or recurse unboundedly.
type Scheduler struct {
	store    Store
	gen      Generator
	router   *Router
	registry *Registry
	min, max time.Duration
	log      *slog.Logger
}

// NewScheduler wires a persona scheduler. min and max bound the uniform
// random delay between ticks.
func NewScheduler(store Store, gen Generator, router *Router, registry *Registry, min, max time.Duration, log *slog.Logger) *Scheduler {
	if max < min {
		max = min
	}
	return &Scheduler{store: store, gen: gen, router: router, registry: registry, min: min, max: max, log: log}
}

// Run registers the active personas in the roster, then loops until ctx is
// cancelled. On return the personas are deregistered and the pending timer
// released.
func (s *Scheduler) Run(ctx context.Context) {
	s.registerPersonas(ctx)
	defer s.registry.ClearPersonas()

	s.log.Info("persona scheduler started",
		slog.Duration("min_interval", s.min),
		slog.Duration("max_interval", s.max))

	timer := time.NewTimer(s.nextDelay())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("persona scheduler stopped")
			return
		case <-timer.C:
			s.tick(ctx)
			timer.Reset(s.nextDelay())
		}
	}
}

func (s *Scheduler) nextDelay() time.Duration {
	if s.max == s.min {
		return s.min
	}
	return s.min + rand.N(s.max-s.min+1)
}

// registerPersonas makes the active personas visible in rosters as non-human
// participants. A fetch failure is logged and leaves the roster human-only.
func (s *Scheduler) registerPersonas(ctx context.Context) {
	personas, err := s.store.ListActivePersonas(ctx)
	if err != nil {
		s.log.Error("failed to list personas for roster", slog.Any("err", err))
		return
	}
	for _, p := range personas {
		s.registry.AddPersona(Participant{ID: p.ID, DisplayName: p.Name, IsPersona: true})
	}
	s.log.Info("personas registered", slog.Int("count", len(personas)))
}

// tick evaluates whether to post. Every failure is logged and swallowed; the
// recurring schedule never aborts.
func (s *Scheduler) tick(ctx context.Context) {
	telemetry.PersonaTicks.Inc()

	// An empty room gets no persona traffic, and no persona choice is
	// consumed for it.
	if s.registry.HumanCount() == 0 {
		return
	}

	personas, err := s.store.ListActivePersonas(ctx)
	if err != nil {
		s.log.Error("persona tick: list personas", slog.Any("err", err))
		return
	}
	if len(personas) == 0 {
		return
	}
	persona := personas[rand.IntN(len(personas))]

	recent, err := s.store.RecentMessages(ctx, contextMessageCount)
	if err != nil {
		s.log.Error("persona tick: recent messages", slog.Any("err", err), slog.String("persona", persona.Name))
		return
	}

	content, err := s.gen.Generate(ctx, persona, recent)
	if err != nil {
		telemetry.PersonaFailures.Inc()
		s.log.Error("persona generation failed", slog.Any("err", err), slog.String("persona", persona.Name))
		return
	}
	if content == "" {
		return
	}

	msg, err := s.router.Inject(ctx, persona.Name, content)
	if err != nil {
		telemetry.PersonaFailures.Inc()
		s.log.Error("persona injection failed", slog.Any("err", err), slog.String("persona", persona.Name))
		return
	}
	telemetry.PersonaPosts.Inc()
	s.log.Info("persona posted",
		slog.String("persona", persona.Name),
		slog.String("message_id", msg.ID))
}
