// Package control implements the PI position loop that drives a motor.
//
// A [MotorController] reads a [PositionSource], computes a clamped duty cycle
// from the proportional and integral terms of the position error and writes
// it to a [DutyCycleSink]. Every invocation also records a (time, position)
// sample into two bounded queues, which [DrainReport] turns into a time series
// once the run is over.
//
// # Usage
//
//	times := taskshare.NewQueue[time.Duration]("time", 500, taskshare.DropNewest)
//	values := taskshare.NewQueue[float64]("value", 500, taskshare.DropNewest)
//	mc := control.New(control.Params{Kp: 0.9, Ki: 0.2, Setpoint: 15000}, driver, encoder, times, values, clock.Now())
//	// one call per scheduler slice
//	upd, err := mc.Run(clock.Now())
//
// The integral term has no anti-windup: it keeps accumulating while the output
// is saturated.
package control
