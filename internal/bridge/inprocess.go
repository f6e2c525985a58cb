package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ErrClosed is returned by transports that were shut down
var ErrClosed = errors.New("bridge transport closed")

type envelope struct {
	ctx     context.Context
	payload []byte
	reply   chan []byte
}

// InProcess runs an endpoint on its own goroutine. Requests and responses
// are marshalled to JSON on the way through so neither side can hold on to
// the other's memory. The endpoint answers one request at a time.
type InProcess struct {
	handler  Handler
	requests chan envelope
	done     chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
}

// NewInProcess starts an endpoint serving handler
func NewInProcess(handler Handler) *InProcess {
	t := &InProcess{
		handler:  handler,
		requests: make(chan envelope),
		done:     make(chan struct{}),
	}
	t.wg.Add(1)
	go t.serve()
	return t
}

func (t *InProcess) serve() {
	defer t.wg.Done()
	for {
		select {
		case <-t.done:
			return
		case env := <-t.requests:
			env.reply <- t.handle(env)
		}
	}
}

func (t *InProcess) handle(env envelope) []byte {
	var req Request
	var resp Response
	if err := json.Unmarshal(env.payload, &req); err != nil {
		resp = failure("", fmt.Errorf("malformed request: %w", err))
	} else {
		resp = t.handler(env.ctx, req)
	}

	data, err := json.Marshal(resp)
	if err != nil {
		data, _ = json.Marshal(failure(req.ID, fmt.Errorf("malformed response: %w", err)))
	}
	return data
}

// RoundTrip sends req to the endpoint and waits for its response
func (t *InProcess) RoundTrip(ctx context.Context, req Request) (Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	env := envelope{ctx: ctx, payload: payload, reply: make(chan []byte, 1)}
	select {
	case t.requests <- env:
	case <-t.done:
		return Response{}, ErrClosed
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}

	// once accepted a request runs to completion; the caller may stop waiting
	select {
	case data := <-env.reply:
		var resp Response
		if err := json.Unmarshal(data, &resp); err != nil {
			return Response{}, fmt.Errorf("failed to unmarshal response: %w", err)
		}
		return resp, nil
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

// Close stops the endpoint after any in-flight request finishes
func (t *InProcess) Close() error {
	t.once.Do(func() {
		close(t.done)
	})
	t.wg.Wait()
	return nil
}
