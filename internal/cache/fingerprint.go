package cache

import (
	"crypto/sha256"
	"sort"
	"strconv"
	"strings"

	"github.com/sonroyaalmerol/ldap-proxy/internal/ber"
)

// ComputeFingerprint computes the deterministic cache key for req: the
// baseObject lowercased, scope, derefAliases, sizeLimit, timeLimit,
// typesOnly, the filter's canonical textual form, and the attribute
// list sorted/deduplicated/case-folded, all concatenated with field
// separators and hashed with SHA-256. Stability across processes is
// required so that a shared external backend can be used by multiple
// proxy instances; SHA-256 over the same canonical text is a small,
// well-understood way to get that.
func ComputeFingerprint(req *ber.SearchRequest) Fingerprint {
	var b strings.Builder

	b.WriteString(strings.ToLower(req.BaseObject))
	b.WriteByte('\x00')
	b.WriteString(strconv.FormatInt(int64(req.Scope), 10))
	b.WriteByte('\x00')
	b.WriteString(strconv.FormatInt(int64(req.DerefAliases), 10))
	b.WriteByte('\x00')
	b.WriteString(strconv.FormatInt(req.SizeLimit, 10))
	b.WriteByte('\x00')
	b.WriteString(strconv.FormatInt(req.TimeLimit, 10))
	b.WriteByte('\x00')
	b.WriteString(strconv.FormatBool(req.TypesOnly))
	b.WriteByte('\x00')
	if req.Filter != nil {
		b.WriteString(req.Filter.Canonical())
	}
	b.WriteByte('\x00')
	b.WriteString(normalizeAttributes(req.Attributes))

	return sha256.Sum256([]byte(b.String()))
}

// normalizeAttributes lowercases, deduplicates and sorts an attribute
// selection list so that requests differing only in attribute order or
// case produce the same fingerprint.
func normalizeAttributes(attrs []string) string {
	seen := make(map[string]struct{}, len(attrs))
	var norm []string
	for _, a := range attrs {
		lc := strings.ToLower(a)
		if _, ok := seen[lc]; ok {
			continue
		}
		seen[lc] = struct{}{}
		norm = append(norm, lc)
	}
	sort.Strings(norm)
	return strings.Join(norm, ",")
}
