// Package filter describes tag pre-filters applied to a KNN ranking query.
package filter

import "fmt"

const (
	// MaxConditionsPerGroup is the maximum number of conditions per filter group.
	MaxConditionsPerGroup = 32
	// MaxValuesPerCondition bounds the alternatives a single tag condition may carry.
	MaxValuesPerCondition = 128
)

// Expression is a structured filter with must/should/must_not boolean semantics.
type Expression struct {
	must    []Condition
	should  []Condition
	mustNot []Condition
}

// NewExpression validates and creates a filter Expression.
func NewExpression(must, should, mustNot []Condition) (Expression, error) {
	if len(must) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must conditions (max %d)", MaxConditionsPerGroup)
	}
	if len(should) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many should conditions (max %d)", MaxConditionsPerGroup)
	}
	if len(mustNot) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must_not conditions (max %d)", MaxConditionsPerGroup)
	}
	return Expression{must: must, should: should, mustNot: mustNot}, nil
}

// Must returns the must conditions.
func (e Expression) Must() []Condition { return e.must }

// Should returns the should conditions.
func (e Expression) Should() []Condition { return e.should }

// MustNot returns the must-not conditions.
func (e Expression) MustNot() []Condition { return e.mustNot }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool {
	return len(e.must) == 0 && len(e.should) == 0 && len(e.mustNot) == 0
}

// Condition matches a tag field against any of its values.
type Condition struct {
	key    string
	values []string
}

// NewMatch creates a tag condition that holds when the field equals any of values.
func NewMatch(key string, values ...string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if len(values) == 0 {
		return Condition{}, fmt.Errorf("at least one value is required for key %q", key)
	}
	if len(values) > MaxValuesPerCondition {
		return Condition{}, fmt.Errorf("too many values for key %q (max %d)", key, MaxValuesPerCondition)
	}
	for _, v := range values {
		if v == "" {
			return Condition{}, fmt.Errorf("empty value for key %q", key)
		}
	}
	return Condition{key: key, values: values}, nil
}

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Values returns the accepted alternatives.
func (c Condition) Values() []string { return c.values }

// Matches evaluates the condition against a set of field values held by a record.
// Used where the store cannot apply the filter itself.
func (c Condition) Matches(fieldValues []string) bool {
	for _, fv := range fieldValues {
		for _, v := range c.values {
			if fv == v {
				return true
			}
		}
	}
	return false
}

// Eval applies the whole expression to a record. fields maps a tag field name to its values.
func (e Expression) Eval(fields map[string][]string) bool {
	for _, c := range e.must {
		if !c.Matches(fields[c.key]) {
			return false
		}
	}
	for _, c := range e.mustNot {
		if c.Matches(fields[c.key]) {
			return false
		}
	}
	if len(e.should) == 0 {
		return true
	}
	for _, c := range e.should {
		if c.Matches(fields[c.key]) {
			return true
		}
	}
	return false
}
