package domain

import "errors"

// Failure classes for the orchestration pipeline. CacheBackend and
// RetrievalDegraded are absorbed where they occur; the rest route the
// request onto the fixed fallback response path. None of them ever
// surface to the caller as an unhandled fault.
var (
	// ErrProviderUnavailable means no healthy provider satisfies the
	// active selection policy.
	ErrProviderUnavailable = errors.New("no healthy provider available")

	// ErrProviderTimeout means a provider call exceeded its bound.
	ErrProviderTimeout = errors.New("provider call timed out")

	// ErrRetrievalDegraded means the filtered knowledge search failed and
	// the unfiltered retry was used, or also failed.
	ErrRetrievalDegraded = errors.New("knowledge retrieval degraded")

	// ErrCacheBackend means one cache tier is unreachable. The coordinator
	// continues with the other tier.
	ErrCacheBackend = errors.New("cache backend error")

	// ErrAnalysisInconclusive means the pattern classifier produced no
	// confident result and the provider-backed fallback also failed.
	ErrAnalysisInconclusive = errors.New("message analysis inconclusive")
)
