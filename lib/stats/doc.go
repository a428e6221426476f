// Package stats collects per-client counters and timers for the dDoc data plane.
//
// Every client session owns exactly one Collector. Nothing is registered in a
// process global registry, so two clients in the same process never share or
// overwrite each other's numbers.
//
// Two backends are used side by side:
//
//   - github.com/VictoriaMetrics/metrics: a private metrics.Set holding the
//     counters (cache hits/misses/refreshes, retries per policy, dispatch
//     states, request charge). The set can be exposed in the Prometheus text
//     format with WritePrometheus.
//
//   - github.com/rcrowley/go-metrics: a private Registry with timers and
//     histograms (dispatch latency, request charge distribution). These are
//     used for in-process snapshots, e.g. by the "ddoc stats" command.
//
// A nil *Collector is valid and silently drops every observation, which keeps
// the call sites in the caches and the dispatch path free of nil checks.
package stats
