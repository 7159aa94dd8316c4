// Package reactor is a fine-grained reactivity runtime: observables,
// computed values and reactions wired into a bipartite dependency graph,
// recomputed and re-run exactly when their transitive dependencies change,
// batched inside transactions.
package reactor
