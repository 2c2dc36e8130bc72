package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mahdirajaee/iot-ongoingv1/internal/models"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

const (
	OperatorGreater = "gt"
	OperatorLess    = "lt"

	ActionOpenValve  = "openValve"
	ActionCloseValve = "closeValve"
	ActionNotify     = "notify"
)

var (
	ErrInvalidRule  = errors.New("invalid rule")
	ErrRuleNotFound = errors.New("rule not found")
)

var operatorSymbols = map[string]string{
	OperatorGreater: ">",
	OperatorLess:    "<",
}

// RuleService keeps automation rules in memory, newest first.
type RuleService struct {
	mu      sync.RWMutex
	rules   []models.AutomationRule
	journal *journal
	now     func() time.Time
}

func NewRuleService(j *journal) *RuleService {
	return &RuleService{journal: j, now: time.Now}
}

func (s *RuleService) Create(ctx context.Context, p RuleParams) (models.AutomationRule, error) {
	rule, err := buildRule(p)
	if err != nil {
		return models.AutomationRule{}, err
	}
	rule.ID = "RULE-" + uuid.NewString()
	rule.Enabled = true
	rule.CreatedAt = s.now().UTC()

	s.mu.Lock()
	s.rules = append([]models.AutomationRule{rule}, s.rules...)
	s.mu.Unlock()

	s.journal.append(ctx, models.EventRule, "Rule created: "+rule.Condition+" → "+rule.ActionText, map[string]any{"id": rule.ID})
	return rule, nil
}

func (s *RuleService) List() []models.AutomationRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.AutomationRule(nil), s.rules...)
}

// Toggle flips the enabled flag.
func (s *RuleService) Toggle(ctx context.Context, id string) (models.AutomationRule, error) {
	s.mu.Lock()
	_, idx, ok := lo.FindIndexOf(s.rules, func(r models.AutomationRule) bool { return r.ID == id })
	if !ok {
		s.mu.Unlock()
		return models.AutomationRule{}, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	s.rules[idx].Enabled = !s.rules[idx].Enabled
	rule := s.rules[idx]
	s.mu.Unlock()

	state := "disabled"
	if rule.Enabled {
		state = "enabled"
	}
	s.journal.append(ctx, models.EventRule, "Rule "+state+": "+rule.Condition, map[string]any{"id": rule.ID, "enabled": rule.Enabled})
	return rule, nil
}

func (s *RuleService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	rule, ok := lo.Find(s.rules, func(r models.AutomationRule) bool { return r.ID == id })
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	s.rules = lo.Reject(s.rules, func(r models.AutomationRule, _ int) bool { return r.ID == id })
	s.mu.Unlock()

	s.journal.append(ctx, models.EventRule, "Rule deleted: "+rule.Condition, map[string]any{"id": id})
	return nil
}

// buildRule validates p and renders the display texts.
func buildRule(p RuleParams) (models.AutomationRule, error) {
	metric := models.Metric(strings.ToLower(strings.TrimSpace(p.Metric)))
	if !metric.Valid() {
		return models.AutomationRule{}, fmt.Errorf("%w: unknown metric %q", ErrInvalidRule, p.Metric)
	}
	op := strings.ToLower(strings.TrimSpace(p.Operator))
	symbol, ok := operatorSymbols[op]
	if !ok {
		return models.AutomationRule{}, fmt.Errorf("%w: unknown operator %q", ErrInvalidRule, p.Operator)
	}
	target := strings.TrimSpace(p.Target)

	var actionText string
	switch p.Action {
	case ActionOpenValve, ActionCloseValve:
		if target == "" {
			return models.AutomationRule{}, fmt.Errorf("%w: %s needs a target valve", ErrInvalidRule, p.Action)
		}
		verb := "Open"
		if p.Action == ActionCloseValve {
			verb = "Close"
		}
		actionText = fmt.Sprintf("%s valve %s", verb, target)
	case ActionNotify:
		target = ""
		actionText = "Send notification"
	default:
		return models.AutomationRule{}, fmt.Errorf("%w: unknown action %q", ErrInvalidRule, p.Action)
	}

	return models.AutomationRule{
		Metric:     metric,
		Operator:   op,
		Threshold:  p.Threshold,
		Action:     p.Action,
		Target:     target,
		Condition:  fmt.Sprintf("%s %s %s", metricTitle(metric), symbol, strconv.FormatFloat(p.Threshold, 'f', -1, 64)),
		ActionText: actionText,
	}, nil
}

func metricTitle(m models.Metric) string {
	s := string(m)
	return strings.ToUpper(s[:1]) + s[1:]
}
