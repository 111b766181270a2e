// internal/protocol/prototest/transport.go

// Package prototest provides an in-memory protocol.Transport for tests.
package prototest

import (
	"errors"
	"time"

	"aac-io/internal/protocol"
)

// ErrClosed is returned by I/O on a closed fake transport
var ErrClosed = errors.New("prototest: transport closed")

type reply struct {
	line string
	err  error
}

// Transport is a scripted protocol.Transport.
//
// Writes fail while queued write errors remain. Reads are served from the
// queued replies first, then from Handler with the last written request, and
// time out when neither is available.
type Transport struct {
	PortName string
	Handler  func(request string) (string, error)

	Written  []string
	Reads    int
	Discards int
	Closes   int
	Timeouts []time.Duration

	open      bool
	writeErrs []error
	replies   []reply
	pending   []string
	closeErr  error
}

var _ protocol.Transport = (*Transport)(nil)

// New returns an open fake transport
func New(port string) *Transport {
	return &Transport{PortName: port, open: true}
}

// FailWrites makes the next n writes fail with err
func (t *Transport) FailWrites(err error, n int) {
	for i := 0; i < n; i++ {
		t.writeErrs = append(t.writeErrs, err)
	}
}

// FailReads makes the next n reads fail with err
func (t *Transport) FailReads(err error, n int) {
	for i := 0; i < n; i++ {
		t.replies = append(t.replies, reply{err: err})
	}
}

// QueueLine queues a reply line
func (t *Transport) QueueLine(line string) {
	t.replies = append(t.replies, reply{line: line})
}

// SetCloseError makes Close return err
func (t *Transport) SetCloseError(err error) {
	t.closeErr = err
}

// IO returns the number of write and read calls made
func (t *Transport) IO() int {
	return len(t.Written) + t.Reads
}

func (t *Transport) Name() string { return t.PortName }

func (t *Transport) IsOpen() bool { return t.open }

func (t *Transport) WriteLine(text string) error {
	if !t.open {
		return ErrClosed
	}
	t.Written = append(t.Written, text)
	if len(t.writeErrs) > 0 {
		err := t.writeErrs[0]
		t.writeErrs = t.writeErrs[1:]
		if err != nil {
			return err
		}
	}
	t.pending = append(t.pending, text)
	return nil
}

func (t *Transport) ReadLine(timeout time.Duration) (string, error) {
	if !t.open {
		return "", ErrClosed
	}
	t.Reads++
	t.Timeouts = append(t.Timeouts, timeout)

	var request string
	if len(t.pending) > 0 {
		request = t.pending[0]
		t.pending = t.pending[1:]
	}

	if len(t.replies) > 0 {
		r := t.replies[0]
		t.replies = t.replies[1:]
		return r.line, r.err
	}
	if t.Handler != nil && request != "" {
		return t.Handler(request)
	}
	return "", protocol.ErrReadTimeout
}

func (t *Transport) Discard() error {
	t.Discards++
	t.pending = nil
	return nil
}

func (t *Transport) Close() error {
	t.Closes++
	t.open = false
	return t.closeErr
}
