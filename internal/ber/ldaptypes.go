package ber

// Scope is the SearchRequest scope ENUMERATED value (RFC 4511 §4.5.1).
type Scope int64

const (
	ScopeBaseObject   Scope = 0
	ScopeSingleLevel  Scope = 1
	ScopeWholeSubtree Scope = 2
)

// String renders the scope the way it appears in bind-map config and in
// diagnostic logging.
func (s Scope) String() string {
	switch s {
	case ScopeBaseObject:
		return "base"
	case ScopeSingleLevel:
		return "one"
	case ScopeWholeSubtree:
		return "subtree"
	default:
		return "unknown"
	}
}

// ParseScope parses the config-file scope token ("base"/"one"/"subtree").
func ParseScope(s string) (Scope, bool) {
	switch s {
	case "base":
		return ScopeBaseObject, true
	case "one":
		return ScopeSingleLevel, true
	case "subtree":
		return ScopeWholeSubtree, true
	default:
		return 0, false
	}
}

// DerefAliases is the SearchRequest derefAliases ENUMERATED value.
type DerefAliases int64

const (
	DerefNever          DerefAliases = 0
	DerefInSearching    DerefAliases = 1
	DerefFindingBaseObj DerefAliases = 2
	DerefAlways         DerefAliases = 3
)

// ResultCode is an LDAP resultCode ENUMERATED value (RFC 4511 §4.1.9).
type ResultCode int64

const (
	Success                  ResultCode = 0
	OperationsError          ResultCode = 1
	ProtocolError            ResultCode = 2
	InsufficientAccessRights ResultCode = 50
	Unavailable              ResultCode = 52
	UnwillingToPerform       ResultCode = 53
)

// WhoAmIOID is the LDAPv3 "Who am I?" extended operation OID (RFC 4532).
const WhoAmIOID = "1.3.6.1.4.1.4203.1.11.3"

// appTag identifies the protocolOp CHOICE alternative by its
// [APPLICATION n] tag number (RFC 4511 §4.1.1).
type appTag uint8

const (
	appBindRequest           appTag = 0
	appBindResponse          appTag = 1
	appUnbindRequest         appTag = 2
	appSearchRequest         appTag = 3
	appSearchResultEntry     appTag = 4
	appSearchResultDone      appTag = 5
	appModifyRequest         appTag = 6
	appModifyResponse        appTag = 7
	appAddRequest            appTag = 8
	appAddResponse           appTag = 9
	appDelRequest            appTag = 10
	appDelResponse           appTag = 11
	appModifyDNRequest       appTag = 12
	appModifyDNResponse      appTag = 13
	appCompareRequest        appTag = 14
	appCompareResponse       appTag = 15
	appAbandonRequest        appTag = 16
	appSearchResultReference appTag = 19
	appExtendedRequest       appTag = 23
	appExtendedResponse      appTag = 24
)

// isWriteClassTag reports whether tag identifies one of the write-class
// operations that must never reach the upstream: add, delete, modify,
// modifyDN. compare is read-only but unimplemented here and rejected
// the same way.
func isWriteClassTag(t appTag) bool {
	switch t {
	case appAddRequest, appDelRequest, appModifyRequest, appModifyDNRequest, appCompareRequest:
		return true
	default:
		return false
	}
}
