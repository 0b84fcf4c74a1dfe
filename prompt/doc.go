// Package prompt loads and renders the stage prompt templates handed to
// the agent.
//
// Templates are plain text/template files resolved in order from
// .issueflow/prompts/ in the project, prompts/ in the project, and
// finally the embedded defaults, so projects can override any stage
// prompt by dropping a file in place.
package prompt
