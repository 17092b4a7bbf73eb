package compliance

import (
	"regexp"
	"strings"

	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/model"
)

// ContentRule is one prohibited-content category backed by a pattern set.
// The filter iterates rules generically so the table can be replaced or
// extended at startup without code changes.
type ContentRule struct {
	Category string
	Patterns []*regexp.Regexp
}

// ContentFilter is a stateless classifier of message text against the
// prohibited-category table (SHAFT) plus per-use-case rules.
type ContentFilter struct {
	rules []ContentRule

	promoPatterns []*regexp.Regexp
	optOutPhrases []string
}

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(`(?i)` + e)
	}
	return out
}

// DefaultContentRules covers the SHAFT categories: sexual content, hate
// speech, alcohol, firearms, tobacco.
func DefaultContentRules() []ContentRule {
	return []ContentRule{
		{Category: "sexual", Patterns: compileAll(
			`\bxxx\b`, `\bporn\w*\b`, `\bnude[sz]?\b`, `\bexplicit (?:pics|photos|content)\b`,
		)},
		{Category: "hate", Patterns: compileAll(
			`\bwhite power\b`, `\bethnic cleansing\b`, `\bgas the\b`,
		)},
		{Category: "alcohol", Patterns: compileAll(
			`\bbeer\b`, `\bwine\b`, `\bvodka\b`, `\bwhiske?y\b`, `\bhappy hour\b`, `\bbooze\b`,
		)},
		{Category: "firearms", Patterns: compileAll(
			`\bguns?\b`, `\bammo\b`, `\bammunition\b`, `\brifles?\b`, `\bpistols?\b`, `\bfirearms?\b`,
		)},
		{Category: "tobacco", Patterns: compileAll(
			`\bcigarettes?\b`, `\btobacco\b`, `\bvap(?:e|ing|es)\b`, `\be-?cigs?\b`, `\bnicotine\b`,
		)},
	}
}

func NewContentFilter(rules []ContentRule) *ContentFilter {
	if rules == nil {
		rules = DefaultContentRules()
	}
	return &ContentFilter{
		rules: rules,
		promoPatterns: compileAll(
			`\b\d{1,3}% off\b`, `\bdiscount\b`, `\blimited time\b`, `\bbuy now\b`,
			`\bfree gift\b`, `\bsale\b`, `\bcoupon\b`, `\bpromo\b`,
		),
		optOutPhrases: []string{"reply stop", "text stop", "stop to opt out", "stop to unsubscribe"},
	}
}

// Violations returns the violated category names for a body under the
// campaign's use case. Empty means the content check passes.
func (f *ContentFilter) Violations(body, useCase string) []string {
	violated := f.ruleViolations(body)

	switch useCase {
	case model.UseCaseAuthentication:
		// OTP traffic must not carry promotional language.
		for _, p := range f.promoPatterns {
			if p.MatchString(body) {
				violated = append(violated, "promotional_language_in_authentication")
				break
			}
		}
	case model.UseCasePromotional:
		if !f.containsOptOutInstruction(body) {
			violated = append(violated, "missing_opt_out_instruction")
		}
	}

	return violated
}

// ReplyViolations checks a system-generated keyword reply. The
// prohibited categories still apply, but the per-use-case rules do
// not: an opt-out confirmation cannot itself carry an opt-out
// instruction, and the reply bodies are operator-configured rather
// than campaign content.
func (f *ContentFilter) ReplyViolations(body string) []string {
	return f.ruleViolations(body)
}

func (f *ContentFilter) ruleViolations(body string) []string {
	var violated []string
	for _, rule := range f.rules {
		for _, p := range rule.Patterns {
			if p.MatchString(body) {
				violated = append(violated, rule.Category)
				break
			}
		}
	}
	return violated
}

func (f *ContentFilter) containsOptOutInstruction(body string) bool {
	lower := strings.ToLower(body)
	for _, phrase := range f.optOutPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
