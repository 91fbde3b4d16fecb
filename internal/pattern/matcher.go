package pattern

import (
	"regexp"
	"sort"
	"strings"
)

// MatcherImpl implements Matcher for a fixed set of rules.
type MatcherImpl struct {
	compiledRegex map[int64]*regexp.Regexp
	rules         []Rule
}

// NewMatcher creates a new matcher with the given rules.
// Regex rules that fail to compile never match.
func NewMatcher(rules []Rule) *MatcherImpl {
	m := &MatcherImpl{
		rules:         rules,
		compiledRegex: make(map[int64]*regexp.Regexp),
	}

	for _, rule := range rules {
		if rule.MatchType == MatchRegex && rule.Pattern != "" {
			if re, err := regexp.Compile("(?i)" + rule.Pattern); err == nil {
				m.compiledRegex[rule.ID] = re
			}
		}
	}

	return m
}

// Match evaluates the counterparty against all active rules. When the counterparty is
// empty the description is used instead. Results are ordered by confidence, then by
// most recent update.
func (m *MatcherImpl) Match(counterparty, description string) []Rule {
	subject := strings.TrimSpace(counterparty)
	if subject == "" {
		subject = strings.TrimSpace(description)
	}
	if subject == "" {
		return nil
	}

	lowered := strings.ToLower(subject)
	tokens := make(map[string]struct{})
	for _, tok := range Tokenize(subject) {
		tokens[tok] = struct{}{}
	}

	var matches []Rule
	for _, rule := range m.rules {
		if !rule.IsActive {
			continue
		}
		if m.matchesRule(rule, lowered, tokens) {
			matches = append(matches, rule)
		}
	}

	sortByStrength(matches)
	return matches
}

// Best returns the strongest matching rule.
func (m *MatcherImpl) Best(counterparty, description string) (Rule, bool) {
	matches := m.Match(counterparty, description)
	if len(matches) == 0 {
		return Rule{}, false
	}
	return matches[0], true
}

func (m *MatcherImpl) matchesRule(rule Rule, lowered string, tokens map[string]struct{}) bool {
	pattern := strings.ToLower(strings.TrimSpace(rule.Pattern))
	if pattern == "" {
		return false
	}

	switch rule.MatchType {
	case MatchExact:
		return pattern == lowered
	case MatchKeyword:
		if _, ok := tokens[pattern]; ok {
			return true
		}
		// Multi-word keywords match as a phrase.
		return strings.Contains(pattern, " ") && strings.Contains(lowered, pattern)
	case MatchRegex:
		if re, ok := m.compiledRegex[rule.ID]; ok {
			return re.MatchString(lowered)
		}
	}
	return false
}

// sortByStrength orders rules by confidence (highest first), breaking ties by the
// most recently updated rule.
func sortByStrength(rules []Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Confidence != rules[j].Confidence {
			return rules[i].Confidence > rules[j].Confidence
		}
		return rules[i].UpdatedAt.After(rules[j].UpdatedAt)
	})
}
