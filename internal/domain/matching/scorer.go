package matching

import "github.com/okian/backr/internal/domain/types"

// Match is the scored comparison of one candidate against the source.
type Match struct {
	Score     int
	Reasons   []string
	MatchType types.MatchType
}

// Scorer compares a candidate profile with a source profile.
type Scorer interface {
	// Strategy names the scoring approach, reported alongside results.
	Strategy() string
	Score(src, cand *Profile) Match
}

// Option applies a configuration option to the RuleScorer.
type Option func(*RuleScorer)

// WithRules replaces the evaluation order. An empty list keeps DefaultRules.
func WithRules(rules ...Rule) Option {
	return func(s *RuleScorer) {
		if len(rules) > 0 {
			s.rules = rules
		}
	}
}

// RuleScorer implements Scorer as a weighted sum of independent rules.
type RuleScorer struct {
	rules []Rule
}

// NewRuleScorer creates a scorer using DefaultRules unless overridden.
func NewRuleScorer(opts ...Option) *RuleScorer {
	s := &RuleScorer{rules: DefaultRules}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Strategy implements Scorer.
func (s *RuleScorer) Strategy() string { return types.StrategyRules }

// Score implements Scorer.
func (s *RuleScorer) Score(src, cand *Profile) Match {
	outcomes := make([]Outcome, 0, len(s.rules))
	for _, rule := range s.rules {
		outcomes = append(outcomes, rule(src, cand))
	}
	return Reduce(outcomes)
}

// Reduce folds rule outcomes in order: points are summed, reasons of fired
// rules are kept in order and the match type is taken from the last
// dominant outcome, not from the one worth the most points.
func Reduce(outcomes []Outcome) Match {
	m := Match{Reasons: []string{}}
	for _, o := range outcomes {
		if o.Points == 0 && o.Reason == "" {
			continue
		}
		m.Score += o.Points
		if o.Reason != "" {
			m.Reasons = append(m.Reasons, o.Reason)
		}
		if o.Dominant {
			m.MatchType = o.Tag
		}
	}
	return m
}
