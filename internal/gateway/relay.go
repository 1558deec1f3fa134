package gateway

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
)

// Relay states. Only the transition out of stateStreaming runs cleanup.
const (
	stateStreaming int32 = iota
	stateEnded
	stateFailed
)

const relayChunkSize = 32 << 10

// relay forwards a downstream body to the caller and runs cleanup on its single
// terminal transition.
type relay struct {
	cleanup func()
	relayed int64
	state   atomic.Int32
}

func newRelay(cleanup func()) *relay {
	return &relay{cleanup: cleanup, relayed: 0, state: atomic.Int32{}}
}

// finish moves the relay to a terminal state. It returns false, and does nothing,
// if a terminal state was already reached.
func (r *relay) finish(terminal int32) bool {
	if !r.state.CompareAndSwap(stateStreaming, terminal) {
		return false
	}

	if r.cleanup != nil {
		r.cleanup()
	}

	return true
}

// pump copies src to w chunk by chunk, flushing after every write, then finishes.
func (r *relay) pump(w io.Writer, src io.Reader, observe func(int)) error {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, relayChunkSize)

	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			_, writeErr := w.Write(buf[:n])
			if writeErr != nil {
				r.finish(stateFailed)

				return fmt.Errorf("write to client: %w", writeErr)
			}

			if flusher != nil {
				flusher.Flush()
			}

			r.relayed += int64(n)
			if observe != nil {
				observe(n)
			}
		}

		if errors.Is(readErr, io.EOF) {
			r.finish(stateEnded)

			return nil
		}

		if readErr != nil {
			r.finish(stateFailed)

			return fmt.Errorf("read from downstream: %w", readErr)
		}
	}
}
