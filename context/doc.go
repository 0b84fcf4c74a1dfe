// Package context wires the pipeline's services together and makes them
// reachable from context.Context for graph nodes and workers.
//
// Services is the assembled service set; NewServices builds one from
// resolved settings. The WithX/X/MustX helpers inject and extract
// individual services.
package context
