// Package caretanalyze reconstructs end-to-end latency paths from sparse
// instrumentation traces of distributed pub/sub systems.
//
// A recorded trace is a stream of timestamped events: callbacks starting and
// ending, messages being published, written to the transport, dispatched and
// consumed. No event carries a flow identifier; flows are reconstructed by
// correlating reused resource identifiers (callback objects, message
// addresses, transport-bound source timestamps) across event streams.
//
// # Architecture
//
// The analysis is built in three layers:
//
// 1. Tables: pkg/record models sparse integer tables (a missing cell is
// semantically unset, not zero) and provides the merge kernels that stitch
// event streams into flows: equality joins, per-key sequential as-of joins,
// and address-reuse tracking joins.
//
// 2. Ingestion: pkg/trace loads NDJSON event files (optionally compressed),
// filters them, accumulates per-tracepoint raw tables plus the registration
// metadata (nodes, publishers, subscriptions, timers), and composes the
// callback, publish, subscribe and communication tables.
//
// 3. Consumption: pkg/runtime exposes typed views (callbacks, publishers,
// communications) with derived latency, period and frequency tables, and
// pkg/session ties configuration, loading, caching and export together.
//
// # Quick Start
//
// Open a recorded trace and measure per-callback latency:
//
//	import (
//	    "context"
//
//	    "github.com/kminoda/CARET-analyze/pkg/config"
//	    "github.com/kminoda/CARET-analyze/pkg/session"
//	)
//
//	cfg := config.DefaultAnalysisConfig("e2e-latency")
//	cfg.Trace.Dir = "/var/trace/session-1"
//
//	sess, err := session.Open(context.Background(), cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, cb := range sess.SubscriptionCallbacks() {
//	    latency, err := cb.Latency()
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    // one row per activation: {callback_start_timestamp, latency}
//	    _ = latency
//	}
//
// # Key Packages
//
//	pkg/record      - sparse integer tables and the merge kernels
//	pkg/trace       - event decoding, filtering, data model, compositions
//	pkg/runtime     - typed callback/publisher/communication views
//	pkg/session     - configuration to composed-table orchestration
//	pkg/export      - Arrow IPC and NDJSON table export
//	pkg/config      - YAML analysis configuration
//	pkg/compression - stream codecs for trace files and caches
//	pkg/errors      - structured error taxonomy
//	pkg/logger      - structured logging
//
// # Data Model
//
// Every value in an analysis table is an int64: timestamps in nanoseconds,
// handles and addresses as opaque identifiers, flags as 0/1. A row stores
// only the columns an event actually carried; merge results keep unmatched
// rows with their missing side unset rather than inventing zeros. Derived
// views (latency, period, frequency) skip rows missing their inputs.
package caretanalyze
