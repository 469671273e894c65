package cache_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sonroyaalmerol/ldap-proxy/internal/ber"
	"github.com/sonroyaalmerol/ldap-proxy/internal/cache"
)

func baseRequest() *ber.SearchRequest {
	return &ber.SearchRequest{
		BaseObject:   "OU=People,DC=Example,DC=Com",
		Scope:        ber.ScopeWholeSubtree,
		DerefAliases: ber.DerefNever,
		SizeLimit:    0,
		TimeLimit:    0,
		TypesOnly:    false,
		Filter:       &ber.Filter{Type: ber.FilterPresent, Present: "uid"},
		Attributes:   []string{"CN", "mail"},
	}
}

func TestComputeFingerprint_Deterministic(t *testing.T) {
	a := cache.ComputeFingerprint(baseRequest())
	b := cache.ComputeFingerprint(baseRequest())
	assert.Equal(t, a, b)
}

func TestComputeFingerprint_CaseAndOrderInsensitiveBaseAndAttrs(t *testing.T) {
	r1 := baseRequest()
	r2 := baseRequest()
	r2.BaseObject = "ou=people,dc=example,dc=com"
	r2.Attributes = []string{"mail", "cn"}

	assert.Equal(t, cache.ComputeFingerprint(r1), cache.ComputeFingerprint(r2))
}

func TestComputeFingerprint_DifferentScopeDiffers(t *testing.T) {
	r1 := baseRequest()
	r2 := baseRequest()
	r2.Scope = ber.ScopeBaseObject

	assert.NotEqual(t, cache.ComputeFingerprint(r1), cache.ComputeFingerprint(r2))
}

func TestComputeFingerprint_DifferentFilterDiffers(t *testing.T) {
	r1 := baseRequest()
	r2 := baseRequest()
	r2.Filter = &ber.Filter{Type: ber.FilterPresent, Present: "mail"}

	assert.NotEqual(t, cache.ComputeFingerprint(r1), cache.ComputeFingerprint(r2))
}

func TestComputeFingerprint_DuplicateAttributesCollapse(t *testing.T) {
	r1 := baseRequest()
	r1.Attributes = []string{"cn", "cn", "mail"}
	r2 := baseRequest()
	r2.Attributes = []string{"cn", "mail"}

	assert.Equal(t, cache.ComputeFingerprint(r1), cache.ComputeFingerprint(r2))
}
