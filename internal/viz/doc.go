// Package viz renders rig diagnostics for a terminal: the scheduler's task
// table, queue and share summaries, per-motor result panels and ASCII plots
// of a response.
package viz
