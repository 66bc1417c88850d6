// Package metrics exposes ambient Prometheus counters and a duration
// histogram for the executor, never on the critical path: a scrape
// failure or a disabled metrics address must never affect a build.
package metrics
