package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sonroyaalmerol/ldap-proxy/internal/audit"
	"github.com/sonroyaalmerol/ldap-proxy/internal/ber"
	"github.com/sonroyaalmerol/ldap-proxy/internal/cache"
	"github.com/sonroyaalmerol/ldap-proxy/internal/policy"
	"github.com/sonroyaalmerol/ldap-proxy/internal/upstream"
)

const (
	tagSearchResultEntry     uint8 = 4
	tagSearchResultDone      uint8 = 5
	tagSearchResultReference uint8 = 19
)

const unavailableDiagnostic = "Backend LDAP server unavailable and no cached data"

// handleSearch implements the search algorithm: authorize, forward,
// stream-and-accumulate, cache-install-on-success, and fall back to a
// cached replay (or a synthesized unavailable) when the upstream cannot
// answer.
func (s *Session) handleSearch(ctx context.Context, env *ber.Envelope) error {
	req, err := ber.DecodeSearchRequest(env.Op)
	if err != nil {
		s.state = StateClosed
		return nil
	}

	q := policy.Query{Base: req.BaseObject, Scope: req.Scope.String(), Filter: canonicalFilter(req)}
	if !s.policy.CheckSearch(s.boundDN, q) {
		s.audit.Record(audit.Event{
			ConnID: s.connID, RemoteAddr: s.remoteAddr, Kind: audit.KindSearch,
			BindDN: s.boundDN, Base: q.Base, Scope: q.Scope, Filter: q.Filter,
			Decision: audit.DecisionDeny, Detail: "search not permitted for bound identity",
		})
		op := ber.EncodeSearchResultDone(ber.SearchResultDone{
			ResultCode:        ber.InsufficientAccessRights,
			DiagnosticMessage: "search not permitted for bound identity",
		})
		return s.write(ber.EncodeMessage(env.MessageID, op))
	}

	fp := cache.ComputeFingerprint(req)

	stream, err := s.upstream.Issue(ctx, env)
	if err != nil {
		s.audit.Record(audit.Event{
			ConnID: s.connID, RemoteAddr: s.remoteAddr, Kind: audit.KindSearch,
			BindDN: s.boundDN, Base: q.Base, Scope: q.Scope, Filter: q.Filter,
			Decision: audit.DecisionUnavailable, Detail: "upstream unavailable at issue",
		})
		return s.searchFallback(ctx, env.MessageID, fp, false)
	}
	s.audit.Record(audit.Event{
		ConnID: s.connID, RemoteAddr: s.remoteAddr, Kind: audit.KindSearch,
		BindDN: s.boundDN, Base: q.Base, Scope: q.Scope, Filter: q.Filter,
		Decision: audit.DecisionAllow, Detail: "forwarded to upstream",
	})

	guard := &streamGuard{}
	accum := &cache.Response{}

	for {
		respEnv, err := stream.Next(ctx)
		if err != nil {
			if errors.Is(err, upstream.ErrAborted) {
				return s.searchFallback(ctx, env.MessageID, fp, guard.hasWritten())
			}
			return err
		}

		tag := respEnv.AppTag()
		switch tag {
		case tagSearchResultEntry, tagSearchResultReference:
			body := append([]byte(nil), respEnv.Op.Bytes()...)
			if err := s.write(ber.RewriteMessageID(respEnv, env.MessageID)); err != nil {
				respEnv.Release()
				return err
			}
			guard.mark()
			accum.PDUs = append(accum.PDUs, cache.PDU{AppTag: tag, Body: body})
			respEnv.Release()

		case tagSearchResultDone:
			done, derr := ber.DecodeSearchResultDone(respEnv.Op)
			if derr != nil {
				respEnv.Release()
				s.state = StateClosed
				return nil
			}
			if done.ResultCode == ber.Success {
				accum.DoneBody = append([]byte(nil), respEnv.Op.Bytes()...)
				accum.CapturedAt = time.Now().Unix()
				if err := s.cache.Put(ctx, fp, accum); err != nil {
					s.logger.Warn("cache put failed", slog.String("conn_id", s.connID), slog.Any("error", err))
				}
			}
			werr := s.write(ber.RewriteMessageID(respEnv, env.MessageID))
			respEnv.Release()
			return werr

		default:
			respEnv.Release()
		}
	}
}

// searchFallback is reached when the upstream could not be used at all
// (Unhealthy) or aborted mid-stream. alreadyWritten enforces the
// mid-stream-abort discipline: once any entry/reference has reached the
// client for this messageID, a cache replay must never be spliced onto
// the same stream.
func (s *Session) searchFallback(ctx context.Context, messageID int64, fp cache.Fingerprint, alreadyWritten bool) error {
	if alreadyWritten {
		return s.writeUnavailableDone(messageID)
	}

	resp, ok, err := s.cache.Get(ctx, fp)
	if err != nil {
		s.logger.Warn("cache get failed", slog.String("conn_id", s.connID), slog.Any("error", err))
	}
	if err != nil || !ok {
		s.audit.Record(audit.Event{
			ConnID: s.connID, RemoteAddr: s.remoteAddr, Kind: audit.KindSearch,
			BindDN: s.boundDN, Decision: audit.DecisionUnavailable, Detail: "no cached fallback available",
		})
		return s.writeUnavailableDone(messageID)
	}
	s.audit.Record(audit.Event{
		ConnID: s.connID, RemoteAddr: s.remoteAddr, Kind: audit.KindSearch,
		BindDN: s.boundDN, Decision: audit.DecisionCacheServed, Detail: "served from cache",
	})

	for _, pdu := range resp.PDUs {
		raw, err := ber.EncodeMessageFromBytes(messageID, pdu.Body)
		if err != nil {
			return s.writeUnavailableDone(messageID)
		}
		if err := s.write(raw); err != nil {
			return err
		}
	}

	doneRaw, err := ber.EncodeMessageFromBytes(messageID, resp.DoneBody)
	if err != nil {
		return s.writeUnavailableDone(messageID)
	}
	return s.write(doneRaw)
}

func (s *Session) writeUnavailableDone(messageID int64) error {
	op := ber.EncodeSearchResultDone(ber.SearchResultDone{
		ResultCode:        ber.Unavailable,
		DiagnosticMessage: unavailableDiagnostic,
	})
	return s.write(ber.EncodeMessage(messageID, op))
}

func canonicalFilter(req *ber.SearchRequest) string {
	if req.Filter == nil {
		return ""
	}
	return req.Filter.Canonical()
}
