// Package classify maps the free-form error text reported by a phase runner
// onto a small set of failure categories that drive the retry policy.
//
// Classification walks a fixed, ordered table of (category, patterns). The
// first pattern that matches wins, so the order of both the categories and
// the patterns inside each category is part of the contract: "phase timeout"
// is transient, not timeout, because the transient "timeout" pattern is
// evaluated first.
package classify

import (
	"regexp"
	"slices"
)

// Category is the class of a phase failure.
type Category string

// Failure categories, in table order.
const (
	Transient Category = "transient"
	Resource  Category = "resource"
	Logic     Category = "logic"
	Permanent Category = "permanent"
	Timeout   Category = "timeout"
	Unknown   Category = "unknown"
)

// Categories returns every category, in table order, followed by Unknown.
func Categories() []Category {
	return []Category{Transient, Resource, Logic, Permanent, Timeout, Unknown}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return slices.Contains(Categories(), c)
}

// Confidence reports whether a category came from a pattern match.
type Confidence string

const (
	High Confidence = "high"
	Low  Confidence = "low"
)

// Result is the outcome of classifying one error message.
type Result struct {
	Category   Category   `json:"category"`
	Confidence Confidence `json:"confidence"`
	// MatchedPattern is the source of the winning pattern, nil when nothing matched.
	MatchedPattern *string `json:"matchedPattern"`
}

// Rule is one row of the classification table.
type Rule struct {
	Category Category
	// Pattern is the expression as reported in Result.MatchedPattern.
	Pattern string
	// CaseSensitive disables the default case-insensitive match.
	CaseSensitive bool

	re *regexp.Regexp
}

func rule(c Category, pattern string) Rule {
	return Rule{Category: c, Pattern: pattern, re: regexp.MustCompile("(?i)" + pattern)}
}

func exact(c Category, pattern string) Rule {
	return Rule{Category: c, Pattern: pattern, CaseSensitive: true, re: regexp.MustCompile(pattern)}
}

var table = []Rule{
	rule(Transient, `rate.?limit`),
	rule(Transient, `timeout`),
	rule(Transient, `ETIMEDOUT`),
	rule(Transient, `ECONNRESET`),
	rule(Transient, `ECONNREFUSED`),
	exact(Transient, `503|502|504`),
	rule(Transient, `temporarily unavailable`),
	rule(Transient, `try again`),
	rule(Transient, `overloaded`),
	rule(Transient, `too many requests`),

	rule(Resource, `ENOENT`),
	rule(Resource, `file not found`),
	rule(Resource, `no such file`),
	rule(Resource, `permission denied`),
	rule(Resource, `EACCES`),
	rule(Resource, `cannot find`),
	rule(Resource, `does not exist`),

	rule(Logic, `assertion failed`),
	rule(Logic, `test.*(failed|error)`),
	rule(Logic, `expected.*but got`),
	rule(Logic, `typecheck.*error`),
	rule(Logic, `type error`),
	rule(Logic, `lint.*error`),
	rule(Logic, `eslint`),
	rule(Logic, `tsc.*error`),

	rule(Permanent, `invalid configuration`),
	rule(Permanent, `missing required`),
	rule(Permanent, `dependency.*not installed`),
	rule(Permanent, `syntax error`),
	rule(Permanent, `syntaxerror`),
	rule(Permanent, `cannot resolve`),
	rule(Permanent, `module not found`),
	rule(Permanent, `invalid.*json`),

	rule(Timeout, `phase timeout`),
	rule(Timeout, `execution timeout`),
	rule(Timeout, `max.?turns exceeded`),
	rule(Timeout, `timed out`),
	rule(Timeout, `deadline exceeded`),
}

// Rules returns a copy of the classification table in evaluation order.
func Rules() []Rule {
	return slices.Clone(table)
}

// Matches reports whether the rule's pattern matches msg.
func (r Rule) Matches(msg string) bool {
	return r.re.MatchString(msg)
}

// Classify returns the category of the first rule matching msg, or Unknown
// with low confidence when no rule matches (including the empty message).
func Classify(msg string) Result {
	if msg == "" {
		return Result{Category: Unknown, Confidence: Low}
	}
	for _, r := range table {
		if r.Matches(msg) {
			p := r.Pattern
			return Result{Category: r.Category, Confidence: High, MatchedPattern: &p}
		}
	}
	return Result{Category: Unknown, Confidence: Low}
}

// Retryable reports whether c is listed in the policy's retryable categories.
func Retryable(c Category, retryable []Category) bool {
	return slices.Contains(retryable, c)
}
