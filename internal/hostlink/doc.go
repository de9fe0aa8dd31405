// Package hostlink is the host side of the line-oriented diagnostic channel
// a motor rig streams its samples over.
//
// A session interrupts and soft-resets the remote program, waits until it
// has reported every motor done, discards whatever is still buffered and
// interrupts again. From then on each line is "<time_ms>,<value>". There is
// no framing and no checksum: a line that does not parse is logged and
// skipped.
package hostlink
