// Package issueflow drives an issue through an ordered pipeline of stages,
// from Queued to Done, with durable per-issue state, a bounded-retry quality
// gate before any mutation, and a compensating cleanup protocol that tears
// the issue's workspace down exactly once no matter how far the terminal
// commit/push/PR/merge sequence got.
//
// The pipeline itself is expressed as a flowgraph graph; stage workers,
// code hosting, issue tracking, and notification are collaborator
// interfaces implemented by the subpackages (agent, pr, jira, notify).
package issueflow
