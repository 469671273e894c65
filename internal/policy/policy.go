// Package policy implements the bind-map authorization engine: given a
// bound DN and a candidate search or bind attempt, decide whether the
// operation is allowed to reach the upstream directory.
package policy

// Query is a candidate search, reduced to the three fields the
// bind-map compares against: base DN, scope and canonical filter text.
type Query struct {
	Base   string
	Scope  string
	Filter string
}

// Rule is one entry of a DN's allowed_queries list.
type Rule struct {
	Base   string
	Scope  string
	Filter string
}

// matches reports whether q is an exact match for r: DN string
// case-sensitive as configured, filter already in canonical textual
// form by the time it reaches the engine.
func (r Rule) matches(q Query) bool {
	return r.Base == q.Base && r.Scope == q.Scope && r.Filter == q.Filter
}

// Entry is one bind-map entry for a bound DN.
type Entry struct {
	// HasAllowedQueries distinguishes "allowed_queries present but
	// empty" (deny everything) from "allowed_queries absent" (allow
	// everything for this DN) — an empty config array still counts as
	// present.
	HasAllowedQueries bool
	AllowedQueries    []Rule
}

// Map is the immutable, read-mostly bind-map loaded from configuration.
// It is safe for concurrent use by many sessions once built: nothing
// mutates it after Load returns.
type Map struct {
	entries       map[string]Entry
	allowAllBinds bool
}

// NewMap builds a Map from a DN->Entry table and the allow_all_bind_dns
// flag.
func NewMap(entries map[string]Entry, allowAllBinds bool) *Map {
	m := &Map{entries: make(map[string]Entry, len(entries)), allowAllBinds: allowAllBinds}
	for dn, e := range entries {
		m.entries[dn] = e
	}
	return m
}

// CanBind reports whether dn is admitted to bind at all: present in the
// map, or allow_all_bind_dns is set.
func (m *Map) CanBind(dn string) bool {
	if _, ok := m.entries[dn]; ok {
		return true
	}
	return m.allowAllBinds
}

// CheckSearch decides allow/deny for a search under the bound DN dn,
// applying the four ordered rules of the bind-map policy.
func (m *Map) CheckSearch(dn string, q Query) bool {
	entry, ok := m.entries[dn]
	if !ok {
		return m.allowAllBinds
	}
	if !entry.HasAllowedQueries {
		return true
	}
	for _, r := range entry.AllowedQueries {
		if r.matches(q) {
			return true
		}
	}
	return false
}
