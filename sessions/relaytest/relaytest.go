// Package relaytest is a conformance suite for sessions.Relay implementations.
package relaytest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ggoodman/mcp-http-go/sessions"
)

// Pair returns two relays that share a session namespace, standing in for two
// processes.
type Pair func(t *testing.T) (a, b sessions.Relay)

// RunRelayTests runs the complete Relay test suite against the provided factory.
func RunRelayTests(t *testing.T, pair Pair) {
	t.Run("Forward_ReachesOwner", func(t *testing.T) { testForwardReachesOwner(t, pair) })
	t.Run("Forward_UnclaimedIsNotFound", func(t *testing.T) { testForwardUnclaimed(t, pair) })
	t.Run("Forward_AfterReleaseIsNotFound", func(t *testing.T) { testForwardAfterRelease(t, pair) })
	t.Run("Claim_DuplicateAcrossOwners", func(t *testing.T) { testDuplicateClaim(t, pair) })
	t.Run("Release_Idempotent", func(t *testing.T) { testReleaseIdempotent(t, pair) })
	t.Run("Listen_StopsOnCancel", func(t *testing.T) { testListenStops(t, pair) })
}

type received struct {
	sessionID string
	payload   string
}

func listen(t *testing.T, r sessions.Relay) (<-chan received, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan received, 16)
	go func() {
		_ = r.Listen(ctx, func(ctx context.Context, sessionID string, payload []byte) {
			ch <- received{sessionID: sessionID, payload: string(payload)}
		})
	}()
	t.Cleanup(cancel)
	return ch, cancel
}

// forward retries briefly: subscriptions may become active asynchronously.
func forward(ctx context.Context, r sessions.Relay, sessionID string, payload []byte) error {
	var err error
	for i := 0; i < 50; i++ {
		err = r.Forward(ctx, sessionID, payload)
		if !errors.Is(err, sessions.ErrSessionNotFound) {
			return err
		}
		time.Sleep(10 * time.Millisecond)
	}
	return err
}

func testForwardReachesOwner(t *testing.T, pair Pair) {
	a, b := pair(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, _ := listen(t, a)
	id := uuid.NewString()
	if err := a.Claim(ctx, id); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	defer a.Release(context.Background(), id)

	payload := `{"jsonrpc":"2.0","id":2,"method":"ping"}`
	if err := forward(ctx, b, id, []byte(payload)); err != nil {
		t.Fatalf("Forward: %v", err)
	}

	select {
	case got := <-ch:
		if want := id; want != got.sessionID {
			t.Fatalf("unexpected session: want %q got %q", want, got.sessionID)
		}
		if want := payload; want != got.payload {
			t.Fatalf("unexpected payload: want %s got %s", want, got.payload)
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for forwarded payload")
	}
}

func testForwardUnclaimed(t *testing.T, pair Pair) {
	_, b := pair(t)
	err := b.Forward(context.Background(), uuid.NewString(), []byte(`{}`))
	if !errors.Is(err, sessions.ErrSessionNotFound) {
		t.Fatalf("want ErrSessionNotFound, got %v", err)
	}
}

func testForwardAfterRelease(t *testing.T, pair Pair) {
	a, b := pair(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	listen(t, a)
	id := uuid.NewString()
	if err := a.Claim(ctx, id); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if err := a.Release(ctx, id); err != nil {
		t.Fatalf("Release: %v", err)
	}

	// Unsubscribe may also complete asynchronously.
	var err error
	for i := 0; i < 50; i++ {
		if err = b.Forward(ctx, id, []byte(`{}`)); errors.Is(err, sessions.ErrSessionNotFound) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("want ErrSessionNotFound after release, got %v", err)
}

func testDuplicateClaim(t *testing.T, pair Pair) {
	a, b := pair(t)
	ctx := context.Background()
	id := uuid.NewString()
	if err := a.Claim(ctx, id); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	defer a.Release(ctx, id)
	if err := b.Claim(ctx, id); !errors.Is(err, sessions.ErrDuplicateSession) {
		t.Fatalf("second owner Claim: want ErrDuplicateSession, got %v", err)
	}
}

func testReleaseIdempotent(t *testing.T, pair Pair) {
	a, b := pair(t)
	ctx := context.Background()
	id := uuid.NewString()
	if err := a.Release(ctx, id); err != nil {
		t.Fatalf("Release unclaimed: %v", err)
	}
	if err := a.Claim(ctx, id); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	// A non-owner release must not steal the claim.
	if err := b.Release(ctx, id); err != nil {
		t.Fatalf("foreign Release: %v", err)
	}
	if err := b.Claim(ctx, id); !errors.Is(err, sessions.ErrDuplicateSession) {
		t.Fatalf("claim survived foreign release: want ErrDuplicateSession, got %v", err)
	}
	if err := a.Release(ctx, id); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := a.Release(ctx, id); err != nil {
		t.Fatalf("second Release: %v", err)
	}
}

func testListenStops(t *testing.T, pair Pair) {
	a, _ := pair(t)
	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	errCh := make(chan error, 1)
	go func() {
		defer wg.Done()
		errCh <- a.Listen(ctx, func(context.Context, string, []byte) {})
	}()
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("want context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Listen did not return after cancel")
	}
	wg.Wait()
}
