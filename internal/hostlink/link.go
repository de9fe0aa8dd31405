package hostlink

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/san-kum/motorctl/internal/control"
)

const (
	Interrupt byte = 0x03
	SoftReset byte = 0x04
)

// DefaultSentinels are the completion lines of a two-motor rig.
var DefaultSentinels = []string{"done 1", "done 2"}

// inputResetter is implemented by serial ports that can flush the driver's
// receive buffer.
type inputResetter interface {
	ResetInputBuffer() error
}

// Link runs one diagnostic session over a byte stream.
type Link struct {
	rw        io.ReadWriter
	br        *bufio.Reader
	log       zerolog.Logger
	sentinels []string
	pending   string
	skipped   int
}

type Option func(*Link)

func WithLogger(l zerolog.Logger) Option {
	return func(k *Link) { k.log = l }
}

// WithSentinels replaces the lines Handshake waits for.
func WithSentinels(lines ...string) Option {
	return func(k *Link) { k.sentinels = lines }
}

func New(rw io.ReadWriter, opts ...Option) *Link {
	k := &Link{
		rw:        rw,
		br:        bufio.NewReader(idleReader{rw}),
		log:       zerolog.Nop(),
		sentinels: DefaultSentinels,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Skipped counts data lines dropped as malformed.
func (k *Link) Skipped() int { return k.skipped }

// Handshake restarts the remote program and returns once every sentinel
// has been seen and the stream is clean.
func (k *Link) Handshake(ctx context.Context) error {
	if _, err := k.rw.Write([]byte{Interrupt, SoftReset}); err != nil {
		return fmt.Errorf("hostlink: reset: %w", err)
	}

	waiting := make(map[string]bool, len(k.sentinels))
	for _, s := range k.sentinels {
		waiting[s] = true
	}
	for len(waiting) > 0 {
		line, err := k.readLine(ctx)
		if errors.Is(err, ErrIdle) {
			continue
		}
		if err != nil {
			return fmt.Errorf("hostlink: waiting for %d sentinel(s): %w", len(waiting), err)
		}
		k.log.Debug().Str("line", line).Msg("remote")
		delete(waiting, line)
	}

	if err := k.discard(); err != nil {
		return err
	}
	if _, err := k.rw.Write([]byte{Interrupt}); err != nil {
		return fmt.Errorf("hostlink: interrupt: %w", err)
	}
	k.log.Info().Msg("remote ready; stream clean")
	return nil
}

func (k *Link) discard() error {
	if n := k.br.Buffered(); n > 0 {
		k.log.Debug().Int("bytes", n).Msg("discarding buffered input")
		if _, err := k.br.Discard(n); err != nil {
			return fmt.Errorf("hostlink: discard: %w", err)
		}
	}
	k.pending = ""
	if r, ok := k.rw.(inputResetter); ok {
		if err := r.ResetInputBuffer(); err != nil {
			return fmt.Errorf("hostlink: reset input: %w", err)
		}
	}
	return nil
}

// Capture reads samples until the stream ends, goes idle between lines
// after data has started, or ctx is done. Malformed lines are skipped.
func (k *Link) Capture(ctx context.Context) ([]control.Sample, error) {
	var out []control.Sample
	for {
		line, err := k.readLine(ctx)
		switch {
		case errors.Is(err, ErrIdle):
			if len(out) > 0 && k.pending == "" {
				return out, nil
			}
			continue
		case errors.Is(err, io.EOF):
			return out, nil
		case ctx.Err() != nil:
			return out, nil
		case err != nil:
			return out, fmt.Errorf("hostlink: read: %w", err)
		}
		if line == "" {
			continue
		}

		s, err := ParseSample(line)
		if err != nil {
			k.skipped++
			k.log.Warn().Err(err).Msg("skipping line")
			continue
		}
		out = append(out, s)
	}
}

// Session performs Handshake followed by Capture.
func (k *Link) Session(ctx context.Context) ([]control.Sample, error) {
	if err := k.Handshake(ctx); err != nil {
		return nil, err
	}
	return k.Capture(ctx)
}

// readLine returns one trimmed line. A line interrupted by an idle read is
// kept and completed by the next call.
func (k *Link) readLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s, err := k.br.ReadString('\n')
	if err != nil {
		if errors.Is(err, ErrIdle) {
			k.pending += s
			return "", ErrIdle
		}
		if errors.Is(err, io.EOF) && k.pending+s != "" {
			line := strings.TrimSpace(k.pending + s)
			k.pending = ""
			return line, nil
		}
		return "", err
	}
	line := strings.TrimSpace(k.pending + s)
	k.pending = ""
	return line, nil
}

// maxOffsetMs is the largest offset a time.Duration can hold.
const maxOffsetMs = math.MaxInt64 / float64(time.Millisecond)

// ParseSample decodes "<time_ms>,<value>". Non-finite numbers and offsets
// a time.Duration cannot hold are rejected with ErrRange.
func ParseSample(line string) (control.Sample, error) {
	at, val, ok := strings.Cut(strings.TrimSpace(line), ",")
	if !ok || strings.Contains(val, ",") {
		return control.Sample{}, &ParseError{Line: line, Err: ErrMalformed}
	}
	ms, err := strconv.ParseFloat(strings.TrimSpace(at), 64)
	if err != nil {
		return control.Sample{}, &ParseError{Line: line, Err: err}
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
	if err != nil {
		return control.Sample{}, &ParseError{Line: line, Err: err}
	}
	if math.IsNaN(ms) || math.Abs(ms) >= maxOffsetMs || math.IsNaN(v) || math.IsInf(v, 0) {
		return control.Sample{}, &ParseError{Line: line, Err: ErrRange}
	}
	return control.Sample{
		Offset: time.Duration(ms * float64(time.Millisecond)),
		Value:  v,
	}, nil
}

// idleReader turns an empty read, which serial ports return when their
// read timeout expires, into ErrIdle so callers can check for cancellation.
type idleReader struct {
	r io.Reader
}

func (i idleReader) Read(p []byte) (int, error) {
	n, err := i.r.Read(p)
	if n == 0 && err == nil {
		return 0, ErrIdle
	}
	return n, err
}
