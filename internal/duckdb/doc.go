// Package duckdb opens the DuckDB structured store used for profile
// persistence and formats its queries for debug logs.
//
// Connection URLs take one of these forms:
//
//	duckdb:///var/lib/liveprof/profiles.duckdb
//	/var/lib/liveprof/profiles.duckdb
//	duckdb://:memory:
//	(empty)                                   in-memory database
//
// Query parameters after '?' are passed to DuckDB as configuration options.
package duckdb
