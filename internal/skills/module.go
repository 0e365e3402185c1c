package skills

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/roach88/idlecore/internal/scheduler"
	"github.com/roach88/idlecore/internal/simerr"
)

// IdleSkillID is the skill every module registers, so the loop always has
// something to train.
const IdleSkillID = "skill.idle"

// IdleSkill is the definition registered for IdleSkillID.
var IdleSkill = Definition{
	ID:                IdleSkillID,
	Name:              "Idling",
	Description:       "Channel ambient cosmic energy while doing absolutely nothing.",
	CurrencyPerSecond: 1,
}

// HealthStatus reports whether the module has anything to train.
type HealthStatus string

const (
	Healthy  HealthStatus = "healthy"
	Degraded HealthStatus = "degraded"
)

// Health is the module health report.
type Health struct {
	Status HealthStatus      `json:"status"`
	Detail map[string]string `json:"detail"`
}

// Module binds a Service to a scheduler. It owns the skill consumer's
// registration so the tick multiplier can be changed while running.
//
// Thread-safety: all methods are safe for concurrent use.
type Module struct {
	svc   *Service
	sched *scheduler.Scheduler

	mu         sync.Mutex
	consumerID string
	priority   int
	multiplier float64
	registered bool
}

// ModuleOption configures a Module.
type ModuleOption func(*Module)

// WithConsumerID sets the scheduler id of the skill consumer.
// Default: ConsumerID.
func WithConsumerID(id string) ModuleOption {
	return func(m *Module) {
		if id != "" {
			m.consumerID = id
		}
	}
}

// WithPriority sets the consumer priority. Default: DefaultPriority.
func WithPriority(p int) ModuleOption {
	return func(m *Module) {
		m.priority = p
	}
}

// WithTickMultiplier sets the initial relative speed, clamped like
// SetTickMultiplier. Non-finite values are ignored. Default: 1.
func WithTickMultiplier(v float64) ModuleOption {
	return func(m *Module) {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			m.multiplier = clampSpeed(v)
		}
	}
}

// NewModule returns a module for svc driven by sched. Nothing is
// registered until Initialize.
func NewModule(svc *Service, sched *scheduler.Scheduler, opts ...ModuleOption) *Module {
	m := &Module{
		svc:        svc,
		sched:      sched,
		consumerID: ConsumerID,
		priority:   DefaultPriority,
		multiplier: scheduler.NormalRate.RelativeSpeed(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Service returns the underlying skill service.
func (m *Module) Service() *Service { return m.svc }

// Initialize registers the idle skill if it is missing, activates it when
// no other skill is active, and registers the tick consumer once.
func (m *Module) Initialize(ctx context.Context) error {
	if !m.svc.Registered(IdleSkillID) {
		if err := m.svc.RegisterSkill(ctx, IdleSkill); err != nil {
			return fmt.Errorf("register idle skill: %w", err)
		}
	}
	if m.svc.ActiveSkill() == "" {
		if err := m.svc.Activate(ctx, IdleSkillID); err != nil {
			return fmt.Errorf("activate idle skill: %w", err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.registered {
		return nil
	}

	profile, err := scheduler.NewRateProfile(m.multiplier, "")
	if err != nil {
		return err
	}
	c := consumer{s: m.svc, id: m.consumerID}
	if err := m.sched.RegisterConsumer(c,
		scheduler.WithPriority(m.priority),
		scheduler.WithRate(profile),
	); err != nil {
		return err
	}
	m.registered = true
	return nil
}

// TickMultiplier returns the skill loop's relative speed.
func (m *Module) TickMultiplier() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.multiplier
}

// SetTickMultiplier clamps v to the scheduler's speed range and applies it.
// Once the consumer is registered the change takes effect from the next
// tick, with the consumer's accumulator reset. Returns the applied value.
func (m *Module) SetTickMultiplier(v float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, simerr.InvalidArgument("SetTickMultiplier", "multiplier must be finite",
			"value", strconv.FormatFloat(v, 'g', -1, 64))
	}
	clamped := clampSpeed(v)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.multiplier = clamped
	if m.registered {
		profile, err := scheduler.NewRateProfile(clamped, "")
		if err != nil {
			return 0, err
		}
		m.sched.UpdateConsumerRate(m.consumerID, profile)
	}
	return clamped, nil
}

// Health reports Degraded while no skill definitions exist.
func (m *Module) Health() Health {
	n := len(m.svc.Definitions())
	status := Healthy
	if n == 0 {
		status = Degraded
	}
	return Health{Status: status, Detail: map[string]string{"skills": strconv.Itoa(n)}}
}

func clampSpeed(v float64) float64 {
	return math.Min(math.Max(v, scheduler.MinRelativeSpeed), scheduler.MaxRelativeSpeed)
}
