// Package agent runs the coding agent CLI that performs stage work.
//
// Worker adapts the CLI to the pipeline's StageWorker interface: it
// renders the stage prompt, invokes the agent inside the issue
// workspace, stores the transcript as a run artifact, and maps the
// agent's verdict to a stage outcome.
package agent
