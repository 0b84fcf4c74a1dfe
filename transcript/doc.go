// Package transcript records what the agent did during a pipeline run,
// stage by stage, and lets you search and render those records later.
//
// The recorder appends one entry per stage invocation to a
// transcript.json artifact in the run's artifact directory. Raw agent
// output lives next to it as per-stage text artifacts, so the searcher
// can grep across runs without re-running anything.
package transcript
