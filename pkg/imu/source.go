package imu

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrRead indicates the sensor bus failed to produce a usable sample.
var ErrRead = errors.New("imu: sensor read failed")

// Source yields sensor readings on demand.
type Source interface {
	Read(ctx context.Context) (Reading, error)
}

type readResult struct {
	reading Reading
	err     error
}

// StreamSource decodes JSON-encoded readings, one per line, from the
// sensor bus driver's output stream. Only the freshest undelivered frame
// is kept; older frames are dropped rather than queued.
type StreamSource struct {
	results chan readResult
}

func NewStreamSource(r io.Reader) *StreamSource {
	s := &StreamSource{
		results: make(chan readResult, 1),
	}
	go s.scan(r)
	return s
}

// Read returns the next sensor frame, or an error wrapping ErrRead when
// the frame is undecodable, the stream has ended or ctx expires first.
func (s *StreamSource) Read(ctx context.Context) (Reading, error) {
	select {
	case <-ctx.Done():
		return Reading{}, fmt.Errorf("%w: %v", ErrRead, ctx.Err())
	case res, ok := <-s.results:
		if !ok {
			return Reading{}, fmt.Errorf("%w: stream closed", ErrRead)
		}
		return res.reading, res.err
	}
}

func (s *StreamSource) scan(r io.Reader) {
	defer close(s.results)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var res readResult
		if err := json.Unmarshal(line, &res.reading); err != nil {
			res = readResult{err: fmt.Errorf("%w: decode frame: %v", ErrRead, err)}
		} else if res.reading.SampledAt.IsZero() {
			res.reading.SampledAt = time.Now()
		}
		// single producer: after the drain the buffered send cannot block
		select {
		case <-s.results:
		default:
		}
		s.results <- res
	}
}
