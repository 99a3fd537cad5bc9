package rankid

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"

	fractaltest "github.com/Brandon-Parker9/fractal/testing"
	"github.com/Brandon-Parker9/fractal/types"
)

func newBucket(t *testing.T) jetstream.KeyValue {
	t.Helper()
	_, nc := fractaltest.StartEmbeddedNATS(t)

	return fractaltest.CreateJetStreamKV(t, nc, "fractal-ranks")
}

func TestClaimer_LowestFreeRank(t *testing.T) {
	kv := newBucket(t)

	first := NewClaimer(kv, "run", 3, time.Minute, nil)
	rank, err := first.Claim(t.Context())
	require.NoError(t, err)
	require.Equal(t, 0, rank)

	second := NewClaimer(kv, "run", 3, time.Minute, nil)
	rank, err = second.Claim(t.Context())
	require.NoError(t, err)
	require.Equal(t, 1, rank)
	require.Equal(t, 1, second.Rank())

	// Claiming again returns the held rank.
	rank, err = second.Claim(t.Context())
	require.NoError(t, err)
	require.Equal(t, 1, rank)
}

func TestClaimer_ConcurrentClaimsAreUnique(t *testing.T) {
	kv := newBucket(t)

	const size = 6
	ranks := make([]int, size)
	errs := make([]error, size)

	var wg sync.WaitGroup
	for i := range size {
		wg.Go(func() {
			c := NewClaimer(kv, "race", size, time.Minute, nil)
			ranks[i], errs[i] = c.Claim(t.Context())
		})
	}
	wg.Wait()

	for i := range size {
		require.NoError(t, errs[i])
	}
	sort.Ints(ranks)
	require.Equal(t, []int{0, 1, 2, 3, 4, 5}, ranks)
}

func TestClaimer_Exhausted(t *testing.T) {
	kv := newBucket(t)

	c := NewClaimer(kv, "full", 1, time.Minute, nil)
	_, err := c.Claim(t.Context())
	require.NoError(t, err)

	extra := NewClaimer(kv, "full", 1, time.Minute, nil)
	_, err = extra.Claim(t.Context())
	require.ErrorIs(t, err, types.ErrRankClaimFailed)
	require.Equal(t, -1, extra.Rank())
}

func TestClaimer_RunsAreIndependent(t *testing.T) {
	kv := newBucket(t)

	a, err := NewClaimer(kv, "run-a", 2, time.Minute, nil).Claim(t.Context())
	require.NoError(t, err)
	b, err := NewClaimer(kv, "run-b", 2, time.Minute, nil).Claim(t.Context())
	require.NoError(t, err)

	require.Equal(t, 0, a)
	require.Equal(t, 0, b)
}

func TestClaimer_ReleaseFreesRank(t *testing.T) {
	kv := newBucket(t)

	c := NewClaimer(kv, "reuse", 1, 3*time.Second, fractaltest.NewTestLogger(t))
	_, err := c.Claim(t.Context())
	require.NoError(t, err)
	require.NoError(t, c.StartRenewal(t.Context()))
	require.NoError(t, c.Release(t.Context()))

	next := NewClaimer(kv, "reuse", 1, time.Minute, nil)
	rank, err := next.Claim(t.Context())
	require.NoError(t, err)
	require.Equal(t, 0, rank)
}

func TestClaimer_Lifecycle(t *testing.T) {
	kv := newBucket(t)

	c := NewClaimer(kv, "life", 1, time.Minute, nil)
	require.ErrorIs(t, c.StartRenewal(t.Context()), ErrNotClaimed)
	require.ErrorIs(t, c.Release(t.Context()), ErrNotClaimed)
	require.Equal(t, -1, c.Rank())

	_, err := c.Claim(t.Context())
	require.NoError(t, err)
	require.NoError(t, c.Release(t.Context()))

	require.ErrorIs(t, c.Release(t.Context()), ErrAlreadyClosed)
	require.ErrorIs(t, c.StartRenewal(t.Context()), ErrAlreadyClosed)
	_, err = c.Claim(t.Context())
	require.ErrorIs(t, err, ErrAlreadyClosed)
}

func TestClaimer_RenewalKeepsClaim(t *testing.T) {
	_, nc := fractaltest.StartEmbeddedNATS(t)
	js := fractaltest.JetStream(t, nc)
	kv, err := js.CreateKeyValue(t.Context(), jetstream.KeyValueConfig{
		Bucket:  "fractal-ranks-ttl",
		TTL:     1500 * time.Millisecond,
		Storage: jetstream.MemoryStorage,
	})
	require.NoError(t, err)

	c := NewClaimer(kv, "lease", 1, 1500*time.Millisecond, nil)
	_, err = c.Claim(t.Context())
	require.NoError(t, err)
	require.NoError(t, c.StartRenewal(t.Context()))
	t.Cleanup(func() { _ = c.Release(context.Background()) })

	time.Sleep(3 * time.Second)

	_, err = kv.Get(t.Context(), "lease.rank-0")
	require.NoError(t, err, "renewal should keep the claim past its TTL")
}
