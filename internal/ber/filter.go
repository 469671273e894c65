package ber

import (
	"fmt"
	"sort"
	"strings"

	asn1ber "github.com/go-asn1-ber/asn1-ber"
)

// FilterType is the Filter CHOICE tag (RFC 4511 §4.5.1.7).
type FilterType uint8

const (
	FilterAnd             FilterType = 0
	FilterOr              FilterType = 1
	FilterNot             FilterType = 2
	FilterEqualityMatch   FilterType = 3
	FilterSubstrings      FilterType = 4
	FilterGreaterOrEqual  FilterType = 5
	FilterLessOrEqual     FilterType = 6
	FilterPresent         FilterType = 7
	FilterApproxMatch     FilterType = 8
	FilterExtensibleMatch FilterType = 9
)

// AttributeValueAssertion is the operand of equalityMatch, greaterOrEqual,
// lessOrEqual and approxMatch.
type AttributeValueAssertion struct {
	Attribute string
	Value     string
}

// SubstringFilter is the operand of the substrings filter choice.
type SubstringFilter struct {
	Attribute string
	Initial   string
	Any       []string
	Final     string
}

// MatchingRuleAssertion is the operand of the extensibleMatch filter
// choice (RFC 4511 §4.5.1.7.8).
type MatchingRuleAssertion struct {
	MatchingRule string
	Attribute    string
	Value        string
	DNAttributes bool
}

// Filter is a decoded LDAP search Filter CHOICE. Exactly one of the
// typed fields is populated, selected by Type.
type Filter struct {
	Type FilterType

	Children []*Filter              // And, Or
	Not      *Filter                // Not
	AVA      *AttributeValueAssertion // EqualityMatch, GreaterOrEqual, LessOrEqual, ApproxMatch
	Sub      *SubstringFilter       // Substrings
	Present  string                 // Present
	Ext      *MatchingRuleAssertion // ExtensibleMatch
}

// DecodeFilter interprets packet as an LDAP Filter CHOICE element.
func DecodeFilter(packet *asn1ber.Packet) (*Filter, error) {
	if packet.ClassType != asn1ber.ClassContext {
		return nil, ErrMalformed
	}
	f := &Filter{Type: FilterType(packet.Tag)}

	switch f.Type {
	case FilterAnd, FilterOr:
		for _, c := range packet.Children {
			child, err := DecodeFilter(c)
			if err != nil {
				return nil, err
			}
			f.Children = append(f.Children, child)
		}
	case FilterNot:
		if len(packet.Children) != 1 {
			return nil, ErrMalformed
		}
		child, err := DecodeFilter(packet.Children[0])
		if err != nil {
			return nil, err
		}
		f.Not = child
	case FilterEqualityMatch, FilterGreaterOrEqual, FilterLessOrEqual, FilterApproxMatch:
		ava, err := decodeAVA(packet)
		if err != nil {
			return nil, err
		}
		f.AVA = ava
	case FilterSubstrings:
		sub, err := decodeSubstrings(packet)
		if err != nil {
			return nil, err
		}
		f.Sub = sub
	case FilterPresent:
		f.Present = string(packet.Data.Bytes())
	case FilterExtensibleMatch:
		ext, err := decodeExtensibleMatch(packet)
		if err != nil {
			return nil, err
		}
		f.Ext = ext
	default:
		return nil, ErrMalformed
	}
	return f, nil
}

func decodeAVA(packet *asn1ber.Packet) (*AttributeValueAssertion, error) {
	if len(packet.Children) != 2 {
		return nil, ErrMalformed
	}
	attr, ok := packet.Children[0].Value.(string)
	if !ok {
		attr = string(packet.Children[0].Data.Bytes())
	}
	val, ok := packet.Children[1].Value.(string)
	if !ok {
		val = string(packet.Children[1].Data.Bytes())
	}
	return &AttributeValueAssertion{Attribute: attr, Value: val}, nil
}

func decodeSubstrings(packet *asn1ber.Packet) (*SubstringFilter, error) {
	if len(packet.Children) != 2 {
		return nil, ErrMalformed
	}
	attr, ok := packet.Children[0].Value.(string)
	if !ok {
		attr = string(packet.Children[0].Data.Bytes())
	}
	sf := &SubstringFilter{Attribute: attr}
	for _, s := range packet.Children[1].Children {
		val := string(s.Data.Bytes())
		switch s.Tag {
		case 0:
			sf.Initial = val
		case 1:
			sf.Any = append(sf.Any, val)
		case 2:
			sf.Final = val
		default:
			return nil, ErrMalformed
		}
	}
	return sf, nil
}

func decodeExtensibleMatch(packet *asn1ber.Packet) (*MatchingRuleAssertion, error) {
	m := &MatchingRuleAssertion{}
	for _, c := range packet.Children {
		switch c.Tag {
		case 1:
			m.MatchingRule = string(c.Data.Bytes())
		case 2:
			m.Attribute = string(c.Data.Bytes())
		case 3:
			m.Value = string(c.Data.Bytes())
		case 4:
			b, ok := c.Value.(bool)
			if ok {
				m.DNAttributes = b
			}
		default:
			return nil, ErrMalformed
		}
	}
	if m.Value == "" {
		return nil, ErrMalformed
	}
	return m, nil
}

// Canonical renders f as RFC 4515 textual filter syntax, with
// attribute names case-folded to lowercase and AND/OR operands sorted
// so that semantically identical filters that differ only in operand
// order or attribute case produce identical text. This canonical form
// is the input to the cache fingerprint hash.
func (f *Filter) Canonical() string {
	var b strings.Builder
	f.writeCanonical(&b)
	return b.String()
}

func (f *Filter) writeCanonical(b *strings.Builder) {
	switch f.Type {
	case FilterAnd:
		writeJunction(b, '&', f.Children)
	case FilterOr:
		writeJunction(b, '|', f.Children)
	case FilterNot:
		b.WriteString("(!")
		f.Not.writeCanonical(b)
		b.WriteByte(')')
	case FilterEqualityMatch:
		fmt.Fprintf(b, "(%s=%s)", lower(f.AVA.Attribute), escapeFilterValue(f.AVA.Value))
	case FilterGreaterOrEqual:
		fmt.Fprintf(b, "(%s>=%s)", lower(f.AVA.Attribute), escapeFilterValue(f.AVA.Value))
	case FilterLessOrEqual:
		fmt.Fprintf(b, "(%s<=%s)", lower(f.AVA.Attribute), escapeFilterValue(f.AVA.Value))
	case FilterApproxMatch:
		fmt.Fprintf(b, "(%s~=%s)", lower(f.AVA.Attribute), escapeFilterValue(f.AVA.Value))
	case FilterPresent:
		fmt.Fprintf(b, "(%s=*)", lower(f.Present))
	case FilterSubstrings:
		writeSubstrings(b, f.Sub)
	case FilterExtensibleMatch:
		writeExtensibleMatch(b, f.Ext)
	}
}

func writeJunction(b *strings.Builder, op byte, children []*Filter) {
	parts := make([]string, len(children))
	for i, c := range children {
		parts[i] = c.Canonical()
	}
	sort.Strings(parts)
	b.WriteByte('(')
	b.WriteByte(op)
	for _, p := range parts {
		b.WriteString(p)
	}
	b.WriteByte(')')
}

func writeSubstrings(b *strings.Builder, sf *SubstringFilter) {
	b.WriteByte('(')
	b.WriteString(lower(sf.Attribute))
	b.WriteByte('=')
	if sf.Initial != "" {
		b.WriteString(escapeFilterValue(sf.Initial))
	}
	b.WriteByte('*')
	any := append([]string(nil), sf.Any...)
	for _, a := range any {
		b.WriteString(escapeFilterValue(a))
		b.WriteByte('*')
	}
	if sf.Final != "" {
		b.WriteString(escapeFilterValue(sf.Final))
	}
	b.WriteByte(')')
}

func writeExtensibleMatch(b *strings.Builder, m *MatchingRuleAssertion) {
	b.WriteByte('(')
	if m.Attribute != "" {
		b.WriteString(lower(m.Attribute))
	}
	if m.DNAttributes {
		b.WriteString(":dn")
	}
	if m.MatchingRule != "" {
		b.WriteByte(':')
		b.WriteString(lower(m.MatchingRule))
	}
	b.WriteString(":=")
	b.WriteString(escapeFilterValue(m.Value))
	b.WriteByte(')')
}

func lower(s string) string { return strings.ToLower(s) }

// escapeFilterValue applies the RFC 4515 escaping rules for the
// characters that are significant to filter syntax.
func escapeFilterValue(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '*', '(', ')', '\\':
			fmt.Fprintf(&b, "\\%02x", c)
		case 0:
			b.WriteString("\\00")
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
