// Package artifact stores the files a pipeline run produces: agent
// transcripts, stage outputs, and the final run report.
//
// Layout under the base directory:
//
//	runs/<run-id>/metadata.json
//	runs/<run-id>/<artifact files>
//	archive/<yyyy-mm>/<run-id>.tar.gz
//
// Manager handles per-run storage; LifecycleManager archives and
// eventually deletes old runs per a retention policy.
package artifact
