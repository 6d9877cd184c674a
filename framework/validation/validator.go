package validation

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	alphaDash = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	slug      = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)
)

// ── Errors ────────────────────────────────────────────────────────────────────

// Errors holds messages per field. JSON: {"errors": {"field": ["msg"]}}
type Errors struct {
	Bag map[string][]string `json:"errors"`
}

func (e *Errors) add(field, msg string) {
	if e.Bag == nil {
		e.Bag = make(map[string][]string)
	}
	e.Bag[field] = append(e.Bag[field], msg)
}

// Has reports whether any field failed.
func (e *Errors) Has() bool { return len(e.Bag) > 0 }

// First returns the first message for field, or "".
func (e *Errors) First(field string) string {
	if msgs := e.Bag[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// Fields lists the failed fields in sorted order.
func (e *Errors) Fields() []string {
	fields := make([]string, 0, len(e.Bag))
	for f := range e.Bag {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

func (e *Errors) Error() string {
	msgs := make([]string, 0, len(e.Bag))
	for _, f := range e.Fields() {
		msgs = append(msgs, e.Bag[f]...)
	}
	return strings.Join(msgs, "; ")
}

// ── Validator ─────────────────────────────────────────────────────────────────

// Rules maps a field to its pipe-separated rule string.
type Rules map[string]string

// Validator validates a flat map of values. It runs once; later calls
// return the same result.
type Validator struct {
	data   map[string]string
	rules  Rules
	errors *Errors
	ran    bool
}

// Make creates a Validator for data.
func Make(data map[string]string, rules Rules) *Validator {
	return &Validator{data: data, rules: rules, errors: &Errors{}}
}

// Fails reports whether any rule failed.
func (v *Validator) Fails() bool {
	v.run()
	return v.errors.Has()
}

// Passes reports whether every rule passed.
func (v *Validator) Passes() bool { return !v.Fails() }

// Errors returns the error bag.
func (v *Validator) Errors() *Errors {
	v.run()
	return v.errors
}

// Validate returns the error bag as an error, or nil.
func (v *Validator) Validate() error {
	if v.Fails() {
		return v.errors
	}
	return nil
}

func (v *Validator) run() {
	if v.ran {
		return
	}
	v.ran = true
	for field, ruleset := range v.rules {
		value := v.data[field]
		for _, rule := range strings.Split(ruleset, "|") {
			rule = strings.TrimSpace(rule)
			if rule == "" {
				continue
			}
			name, param, _ := strings.Cut(rule, ":")
			if !v.apply(field, value, name, param) {
				break
			}
		}
	}
}

// apply returns false when processing of field should stop.
func (v *Validator) apply(field, value, rule, param string) bool {
	fail := func(format string, args ...any) bool {
		v.errors.add(field, fmt.Sprintf(format, args...))
		return false
	}

	switch rule {
	case "required":
		if strings.TrimSpace(value) == "" {
			return fail("The %s field is required.", field)
		}

	case "nullable":
		if value == "" {
			return false
		}

	case "min":
		n, _ := strconv.Atoi(param)
		if utf8.RuneCountInString(value) < n {
			return fail("The %s must be at least %d characters.", field, n)
		}

	case "max":
		n, _ := strconv.Atoi(param)
		if utf8.RuneCountInString(value) > n {
			return fail("The %s may not be greater than %d characters.", field, n)
		}

	case "between":
		lo, hi, ok := strings.Cut(param, ",")
		if !ok {
			break
		}
		min, _ := strconv.Atoi(strings.TrimSpace(lo))
		max, _ := strconv.Atoi(strings.TrimSpace(hi))
		if l := utf8.RuneCountInString(value); l < min || l > max {
			return fail("The %s must be between %d and %d characters.", field, min, max)
		}

	case "integer":
		if _, err := strconv.Atoi(value); err != nil {
			return fail("The %s must be an integer.", field)
		}

	case "numeric":
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return fail("The %s must be a number.", field)
		}

	case "gte", "lte":
		f, err := strconv.ParseFloat(value, 64)
		bound, _ := strconv.ParseFloat(param, 64)
		if rule == "gte" && (err != nil || f < bound) {
			return fail("The %s must be greater than or equal to %s.", field, param)
		}
		if rule == "lte" && (err != nil || f > bound) {
			return fail("The %s must be less than or equal to %s.", field, param)
		}

	case "boolean":
		switch strings.ToLower(value) {
		case "true", "false", "1", "0", "yes", "no":
		default:
			return fail("The %s field must be true or false.", field)
		}

	case "in":
		for _, allowed := range strings.Split(param, ",") {
			if strings.TrimSpace(allowed) == value {
				return true
			}
		}
		return fail("The selected %s is invalid.", field)

	case "alpha_dash":
		if !alphaDash.MatchString(value) {
			return fail("The %s may only contain letters, numbers, dashes and underscores.", field)
		}

	case "slug":
		if !slug.MatchString(value) {
			return fail("The %s may only contain letters, numbers, dots, dashes and underscores.", field)
		}

	case "regex":
		re, err := regexp.Compile(param)
		if err != nil || !re.MatchString(value) {
			return fail("The %s format is invalid.", field)
		}
	}
	return true
}
