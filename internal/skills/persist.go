package skills

import (
	"context"
	"encoding/json"
	"sort"
)

type persistedState struct {
	ActiveSkillID string           `json:"activeSkillId"`
	TotalCurrency float64          `json:"totalCurrency"`
	Skills        []persistedSkill `json:"skills"`
}

type persistedSkill struct {
	SkillID        string  `json:"skillId"`
	Experience     float64 `json:"experience"`
	BankedCurrency float64 `json:"bankedCurrency"`
}

// persistenceModelLocked captures the state to persist. Caller holds s.mu.
func (s *Service) persistenceModelLocked() persistedState {
	m := persistedState{TotalCurrency: s.total, Skills: make([]persistedSkill, 0, len(s.progress))}
	if def, ok := s.defs[s.active]; ok {
		m.ActiveSkillID = def.ID
	}
	for _, p := range s.progress {
		m.Skills = append(m.Skills, persistedSkill{
			SkillID:        p.id,
			Experience:     p.experience,
			BankedCurrency: p.currency,
		})
	}
	sort.Slice(m.Skills, func(i, j int) bool {
		return m.Skills[i].SkillID < m.Skills[j].SkillID
	})
	return m
}

func (s *Service) save(ctx context.Context, m persistedState) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return s.store.SaveModuleState(ctx, ModuleID, StateKey, payload)
}

// persistBestEffort saves m and logs failures.
func (s *Service) persistBestEffort(ctx context.Context, m persistedState) {
	if s.store == nil {
		return
	}
	if err := s.save(ctx, m); err != nil {
		s.logger.Warn("failed to persist skill progress", "error", err)
	}
}

// Restore loads persisted progress from the state store.
//
// Missing or corrupt payloads are logged and ignored; the service keeps its
// current state. Returns whether state was restored. The persisted active
// skill only takes effect once a skill with that id is registered.
func (s *Service) Restore(ctx context.Context) bool {
	if s.store == nil {
		return false
	}

	payload, ok, err := s.store.LoadModuleState(ctx, ModuleID, StateKey)
	if err != nil {
		s.logger.Warn("failed to load skill progress", "error", err)
		return false
	}
	if !ok || len(payload) == 0 {
		return false
	}

	var m persistedState
	if err := json.Unmarshal(payload, &m); err != nil {
		s.logger.Warn("ignoring corrupt skill progress", "error", err)
		return false
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = key(m.ActiveSkillID)
	s.total = m.TotalCurrency
	for _, sk := range m.Skills {
		if sk.SkillID == "" {
			continue
		}
		k := key(sk.SkillID)
		p, exists := s.progress[k]
		if !exists {
			p = &progress{id: sk.SkillID}
			s.progress[k] = p
		}
		p.experience = sk.Experience
		p.currency = sk.BankedCurrency
	}

	s.logger.Debug("skill progress restored", "skills", len(m.Skills), "active", m.ActiveSkillID)
	return true
}
