// Package driving defines the inbound ports of the pipeline: the
// interfaces external collaborators (CLI, HTTP layer, task workers) call.
package driving
