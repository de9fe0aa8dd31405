// Package rig assembles a motor rig from configuration: one scheduler, one
// PI-controlled simulated motor per configured channel, and an optional
// tuner task that applies reloaded gains between slices.
//
// Everything the scheduler runs executes on the goroutine that calls Run.
// Other goroutines talk to the rig only through Apply, which hands a
// configuration to the tuner over a buffered channel.
package rig
