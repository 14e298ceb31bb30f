package logger

import (
	"errors"
	"io"
	"sync"
)

var errSinkClosed = errors.New("logger: sink closed")

// lineSink fans complete log lines out to every output under one lock, so
// lines from concurrent handlers never interleave.
type lineSink struct {
	mu      sync.Mutex
	outputs []io.Writer
	closers []io.Closer
	failed  error
	closed  bool
}

func newLineSink(outputs []io.Writer, closers []io.Closer) *lineSink {
	return &lineSink{outputs: outputs, closers: closers}
}

func (s *lineSink) WriteLine(line []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSinkClosed
	}
	for _, w := range s.outputs {
		if _, err := w.Write(line); err != nil && s.failed == nil {
			s.failed = err
		}
	}
	return s.failed
}

// Close closes owned outputs and reports the first write or close error.
func (s *lineSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	errs := []error{s.failed}
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
