package service

import (
	"fmt"
	"sort"

	"github.com/sunsoc/sunsoc/internal/core/domain"
	"github.com/sunsoc/sunsoc/internal/core/port"

	"go.uber.org/zap"
)

// SequencerService decides load switching from an ordered rule set.
// Rules are evaluated by ascending priority and the first match per
// load wins. Loads with no matching rule hold their state.
type SequencerService struct {
	rules  []domain.Rule
	logger *zap.Logger
}

// NewSequencerService takes a rule set that already passed
// ValidateRules, so priorities are unique. The rules are kept sorted
// by priority.
func NewSequencerService(rules []domain.Rule, logger *zap.Logger) *SequencerService {
	sorted := make([]domain.Rule, len(rules))
	copy(sorted, rules)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})
	return &SequencerService{
		rules:  sorted,
		logger: logger,
	}
}

func (s *SequencerService) Evaluate(snapshot domain.TelemetrySnapshot, prior map[string]domain.LoadState) (map[string]domain.LoadState, []domain.LoadTransition) {
	next := make(map[string]domain.LoadState, len(prior))
	for k, v := range prior {
		next[k] = v
	}

	decided := make(map[string]bool)
	var transitions []domain.LoadTransition
	for _, rule := range s.rules {
		if decided[rule.Load] {
			continue
		}
		if !rule.When.Matches(snapshot) {
			continue
		}
		decided[rule.Load] = true

		want := rule.Action == domain.RuleActionOn
		cur, known := next[rule.Load]
		if known && cur.On == want {
			continue
		}
		next[rule.Load] = domain.LoadState{
			Load:      rule.Load,
			On:        want,
			ChangedAt: snapshot.Time,
		}
		transitions = append(transitions, domain.LoadTransition{Load: rule.Load, On: want})
		s.logger.Debug("load transition",
			zap.String("load", rule.Load), zap.Bool("on", want),
			zap.Int("priority", rule.Priority))
	}

	sort.Slice(transitions, func(i, j int) bool {
		return transitions[i].Load < transitions[j].Load
	})
	return next, transitions
}

// ValidateRules rejects a rule set that references unknown loads,
// carries invalid actions, duplicates a priority or has contradictory
// predicates. knownLoads may be nil to skip the load check.
func ValidateRules(rules []domain.Rule, knownLoads []string) error {
	known := make(map[string]bool, len(knownLoads))
	for _, l := range knownLoads {
		known[l] = true
	}
	seen := make(map[int]int, len(rules))
	for i, rule := range rules {
		if j, dup := seen[rule.Priority]; dup {
			return fmt.Errorf("%w: rules %d and %d share priority %d", domain.ErrInvalidRuleConfiguration, j, i, rule.Priority)
		}
		seen[rule.Priority] = i
		if rule.Load == "" {
			return fmt.Errorf("%w: rule %d has no load", domain.ErrInvalidRuleConfiguration, i)
		}
		if knownLoads != nil && !known[rule.Load] {
			return fmt.Errorf("%w: rule %d references unknown load %q", domain.ErrInvalidRuleConfiguration, i, rule.Load)
		}
		if rule.Action != domain.RuleActionOn && rule.Action != domain.RuleActionOff {
			return fmt.Errorf("%w: rule %d has invalid action %q", domain.ErrInvalidRuleConfiguration, i, rule.Action)
		}
		if rule.Priority < 0 {
			return fmt.Errorf("%w: rule %d has negative priority", domain.ErrInvalidRuleConfiguration, i)
		}
		if err := validateCondition(rule.When); err != nil {
			return fmt.Errorf("%w: rule %d: %s", domain.ErrInvalidRuleConfiguration, i, err)
		}
	}
	return nil
}

func validateCondition(c domain.RuleCondition) error {
	if err := validateMinute(c.FromMinute, "from"); err != nil {
		return err
	}
	if err := validateMinute(c.UntilMinute, "until"); err != nil {
		return err
	}
	if c.SoCBelow != nil && c.SoCAtLeast != nil && *c.SoCBelow <= *c.SoCAtLeast {
		return fmt.Errorf("soc bounds can never match (below %.1f, at least %.1f)", *c.SoCBelow, *c.SoCAtLeast)
	}
	if c.TempBelowC != nil && c.TempAtLeastC != nil && *c.TempBelowC <= *c.TempAtLeastC {
		return fmt.Errorf("temperature bounds can never match (below %.1f, at least %.1f)", *c.TempBelowC, *c.TempAtLeastC)
	}
	if c.CarbonBelow != nil && c.CarbonAtLeast != nil && *c.CarbonBelow <= *c.CarbonAtLeast {
		return fmt.Errorf("carbon bounds can never match (below %.1f, at least %.1f)", *c.CarbonBelow, *c.CarbonAtLeast)
	}
	return nil
}

func validateMinute(m *int, field string) error {
	if m != nil && (*m < 0 || *m >= 24*60) {
		return fmt.Errorf("%s minute %d out of range", field, *m)
	}
	return nil
}

// ensure interface compliance
var _ port.LoadSequencer = (*SequencerService)(nil)
