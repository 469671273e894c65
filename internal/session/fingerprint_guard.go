package session

// streamGuard tracks whether any SearchResultEntry/Reference has
// already been written to the client for the search currently in
// flight. The proxy handles one client operation at a time, so a
// single guard per call to handleSearch is enough to back the
// mid-stream-abort discipline: once the client has seen a partial,
// non-replayable result for a messageID, a cache replay must never be
// spliced onto it.
type streamGuard struct {
	wrote bool
}

func (g *streamGuard) mark() { g.wrote = true }

func (g *streamGuard) hasWritten() bool { return g.wrote }
