// Package internal documents the aggregator server internals.
//
// The internal tree is organized by responsibility:
// - api: HTTP handlers, middleware, and routing
// - domain/listings: merge, dedup, ranking, and the search service
// - sources: per-marketplace adapters and their YAML configs
// - dispatch: parallel fan-out with caching and circuit breaking
// - standardize: attribute vocabulary normalization
// - storage: the Postgres seen-listing store
// - breaker, rescache, config, metrics: shared infrastructure
//
// Code in internal/ is not meant for external import.
package internal
