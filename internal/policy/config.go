package policy

import "fmt"

// RawRule is the config-file shape of one allowed_queries element:
// a 3-element array [base, scope, filter].
type RawRule = [3]string

// BuildEntry converts a config-file allowed_queries list (nil meaning
// the key was absent) into an Entry.
func BuildEntry(allowedQueries []RawRule, present bool) Entry {
	if !present {
		return Entry{HasAllowedQueries: false}
	}
	rules := make([]Rule, 0, len(allowedQueries))
	for _, rq := range allowedQueries {
		rules = append(rules, Rule{Base: rq[0], Scope: rq[1], Filter: rq[2]})
	}
	return Entry{HasAllowedQueries: true, AllowedQueries: rules}
}

// ValidateScope checks that scope is one of the three recognized
// SearchRequest scope tokens, returning an error naming the offending
// value for inclusion in a config-load failure.
func ValidateScope(scope string) error {
	switch scope {
	case "base", "one", "subtree":
		return nil
	default:
		return fmt.Errorf("policy: invalid scope %q (want base, one or subtree)", scope)
	}
}
