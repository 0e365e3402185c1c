// Package skills implements the idle skill loop: one active skill accrues
// experience and currency in proportion to simulated time.
package skills

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/roach88/idlecore/internal/resources"
	"github.com/roach88/idlecore/internal/scheduler"
	"github.com/roach88/idlecore/internal/simerr"
)

const (
	// ConsumerID is the scheduler id of the skill tick consumer.
	ConsumerID = "statistics.skills.runtime"

	// DefaultPriority runs skills after the resource economy.
	DefaultPriority = 100

	// ModuleID and StateKey address the persisted progress payload.
	ModuleID = "statistics"
	StateKey = "skill-progress"

	// MaxLevel caps Level.
	MaxLevel = 120
)

// StateStore persists opaque module payloads. Implemented by store.Store.
type StateStore interface {
	SaveModuleState(ctx context.Context, moduleID, key string, payload []byte) error
	LoadModuleState(ctx context.Context, moduleID, key string) ([]byte, bool, error)
}

// Definition describes a registered skill.
type Definition struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Description       string  `json:"description"`
	CurrencyPerSecond float64 `json:"currency_per_second"`
}

// Progress is one skill's accumulated progress.
type Progress struct {
	SkillID        string  `json:"skill_id"`
	Experience     float64 `json:"experience"`
	Level          int     `json:"level"`
	BankedCurrency float64 `json:"banked_currency"`
}

// State is a point-in-time view of the whole skill loop.
type State struct {
	ActiveSkillID string     `json:"active_skill_id"`
	TotalCurrency float64    `json:"total_currency"`
	Skills        []Progress `json:"skills"`
}

// Level converts experience into a level in [1, MaxLevel].
func Level(experience float64) int {
	if experience <= 0 || math.IsNaN(experience) {
		return 1
	}
	scaled := math.Floor(math.Sqrt(experience/100) * 10)
	return int(math.Min(math.Max(scaled, 1), MaxLevel))
}

// Service tracks skill definitions and progress.
//
// Thread-safety: all methods are safe for concurrent use. Persisted
// payloads reach the store in the order their changes were made.
type Service struct {
	// saveMu is held from capture to write so a stale payload never
	// overwrites a newer one. Acquired before mu.
	saveMu sync.Mutex

	mu       sync.Mutex
	defs     map[string]Definition
	progress map[string]*progress
	active   string // normalized id, empty when no skill is active
	total    float64

	store  StateStore
	logger *slog.Logger
}

type progress struct {
	id         string
	experience float64
	currency   float64
}

// Option configures a Service.
type Option func(*Service)

// WithStateStore enables persistence of progress after every change.
func WithStateStore(store StateStore) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithLogger sets the service logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates an empty service.
func New(opts ...Option) *Service {
	s := &Service{
		defs:     make(map[string]Definition),
		progress: make(map[string]*progress),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// key normalizes a skill id the same way node ids are normalized.
func key(id string) string {
	return resources.Key(id)
}

// RegisterSkill adds a skill definition.
//
// Returns an invalid-argument error for blank id or name, or a non-positive
// or non-finite currency rate, and an invalid-operation error for a duplicate id.
func (s *Service) RegisterSkill(ctx context.Context, def Definition) error {
	if strings.TrimSpace(def.ID) == "" {
		return simerr.InvalidArgument("RegisterSkill", "skill id is empty")
	}
	if strings.TrimSpace(def.Name) == "" {
		return simerr.InvalidArgument("RegisterSkill", "skill name is empty", "skill", def.ID)
	}
	if !(def.CurrencyPerSecond > 0) || math.IsInf(def.CurrencyPerSecond, 0) {
		return simerr.InvalidArgument("RegisterSkill", "currency per second must be positive",
			"skill", def.ID, "currency_per_second", fmt.Sprint(def.CurrencyPerSecond))
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	k := key(def.ID)
	if _, exists := s.defs[k]; exists {
		s.mu.Unlock()
		return simerr.InvalidOperation("RegisterSkill", "skill already registered", "skill", def.ID)
	}
	s.defs[k] = def
	if _, ok := s.progress[k]; !ok {
		s.progress[k] = &progress{id: def.ID}
	}
	payload := s.persistenceModelLocked()
	s.mu.Unlock()

	s.persistBestEffort(ctx, payload)
	return nil
}

// Registered reports whether a skill with id exists.
func (s *Service) Registered(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.defs[key(id)]
	return ok
}

// ActiveSkill returns the display id of the active skill, or "".
func (s *Service) ActiveSkill() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if def, ok := s.defs[s.active]; ok {
		return def.ID
	}
	return ""
}

// Definitions lists registered skills ordered by name.
func (s *Service) Definitions() []Definition {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Definition, 0, len(s.defs))
	for _, d := range s.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Activate makes id the skill that accrues progress.
func (s *Service) Activate(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return simerr.InvalidArgument("Activate", "skill id is empty")
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	k := key(id)
	if _, ok := s.defs[k]; !ok {
		s.mu.Unlock()
		return simerr.InvalidOperation("Activate", "skill not registered", "skill", id)
	}
	s.active = k
	payload := s.persistenceModelLocked()
	s.mu.Unlock()

	s.logger.Debug("skill activated", "skill", id)
	s.persistBestEffort(ctx, payload)
	return nil
}

// ProcessTick grants the active skill currencyPerSecond*d of experience and
// currency. Without an active skill it does nothing.
//
// Returns the persistence error, if any, when a state store is configured.
func (s *Service) ProcessTick(ctx context.Context, d time.Duration) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	def, ok := s.defs[s.active]
	if s.active == "" || !ok {
		s.mu.Unlock()
		return nil
	}

	award := def.CurrencyPerSecond * d.Seconds()
	p := s.progress[s.active]
	p.experience += award
	p.currency += award
	s.total += award
	payload := s.persistenceModelLocked()
	s.mu.Unlock()

	if s.store == nil {
		return nil
	}
	// A tick that has been granted is persisted even if ctx is cancelled
	// mid-tick.
	if err := s.save(context.WithoutCancel(ctx), payload); err != nil {
		return fmt.Errorf("persist skill progress: %w", err)
	}
	return nil
}

// Snapshot returns the current state with skills sorted by normalized id.
func (s *Service) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.progress))
	for k := range s.progress {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	st := State{TotalCurrency: s.total, Skills: make([]Progress, 0, len(keys))}
	if def, ok := s.defs[s.active]; ok {
		st.ActiveSkillID = def.ID
	}
	for _, k := range keys {
		p := s.progress[k]
		st.Skills = append(st.Skills, Progress{
			SkillID:        p.id,
			Experience:     p.experience,
			Level:          Level(p.experience),
			BankedCurrency: p.currency,
		})
	}
	return st
}

// Consumer returns the tick consumer that feeds ProcessTick with each
// invocation's effective duration.
func (s *Service) Consumer() scheduler.Consumer {
	return consumer{s: s, id: ConsumerID}
}

type consumer struct {
	s  *Service
	id string
}

func (c consumer) ID() string { return c.id }

func (c consumer) OnTick(ctx context.Context, tc scheduler.TickContext) error {
	return c.s.ProcessTick(ctx, tc.EffectiveDuration)
}
