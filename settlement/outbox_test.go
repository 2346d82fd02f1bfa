package settlement

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func runOutbox(t *testing.T, o *Outbox) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- o.Run(context.Background()) }()
	return done
}

func TestOutboxDeliversEverything(t *testing.T) {
	signer, _ := newTestSigner(t)
	sink := &MemorySink{}
	o := NewOutbox(signer, sink, OutboxOptions{Workers: 2})

	for i := 0; i < 10; i++ {
		assert.NoError(t, o.Submit(context.Background(), testRequest(fmt.Sprintf("auction-%d", i))))
	}
	done := runOutbox(t, o)
	o.Close()
	assert.NoError(t, <-done)

	check.Equal(t, 10, len(sink.Envelopes()))
	delivered, failed := o.Stats()
	check.Equal(t, int64(10), delivered)
	check.Equal(t, int64(0), failed)
	check.Equal(t, 0, o.Pending())
}

func TestOutboxRetries(t *testing.T) {
	signer, _ := newTestSigner(t)
	sink := &flakySink{failures: 2}
	o := NewOutbox(signer, sink, OutboxOptions{MaxAttempts: 3, Backoff: time.Millisecond})

	assert.NoError(t, o.Submit(context.Background(), testRequest("auction-1")))
	done := runOutbox(t, o)
	o.Close()
	assert.NoError(t, <-done)

	check.Equal(t, 3, sink.Attempts("auction-1"))
	delivered, failed := o.Stats()
	check.Equal(t, int64(1), delivered)
	check.Equal(t, int64(0), failed)
}

func TestOutboxGivesUp(t *testing.T) {
	signer, _ := newTestSigner(t)
	sink := &flakySink{failures: 5}
	o := NewOutbox(signer, sink, OutboxOptions{MaxAttempts: 2, Backoff: time.Millisecond})

	assert.NoError(t, o.Submit(context.Background(), testRequest("auction-1")))
	done := runOutbox(t, o)
	o.Close()
	assert.NoError(t, <-done)

	check.Equal(t, 2, sink.Attempts("auction-1"))
	check.Equal(t, 0, len(sink.Envelopes()))
	_, failed := o.Stats()
	check.Equal(t, int64(1), failed)
}

func TestOutboxRejectsAfterClose(t *testing.T) {
	signer, _ := newTestSigner(t)
	o := NewOutbox(signer, &MemorySink{}, OutboxOptions{})
	o.Close()

	err := o.Submit(context.Background(), testRequest("auction-1"))
	check.True(t, err == ErrOutboxClosed)
}

func TestOutboxStopsOnCancel(t *testing.T) {
	signer, _ := newTestSigner(t)
	o := NewOutbox(signer, &MemorySink{}, OutboxOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := o.Run(ctx)
	check.True(t, err == context.Canceled)
}
