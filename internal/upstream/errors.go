package upstream

import "errors"

// ErrUnavailable is returned by Issue when the upstream connection is
// currently Unhealthy; callers fall back to the cache.
var ErrUnavailable = errors.New("upstream: unavailable")

// ErrAborted is delivered to a ResponseStream when the upstream
// connection is torn down mid-request (protocol error, TCP close)
// before a terminating PDU was observed for that request.
var ErrAborted = errors.New("upstream: aborted")

// ErrClosed is returned once the Client has been Closed.
var ErrClosed = errors.New("upstream: client closed")
