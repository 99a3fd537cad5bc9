// Package kvutil provides create-or-open helpers for JetStream KV buckets and streams.
package kvutil

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// EnsureKVBucketWithRetry creates or opens a KV bucket, retrying with
// exponential backoff.
//
// Every rank of a run calls this for the barrier, progress and rank-claim
// buckets at about the same moment, so losing the creation race is the
// normal case and resolves to opening the winner's bucket.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - js: JetStream context
//   - config: KV bucket configuration
//   - maxRetries: Maximum number of attempts (3 if <= 0)
//
// Returns:
//   - jetstream.KeyValue: The KV bucket instance
//   - error: Last error after all attempts
//
// Example:
//
//	kv, err := kvutil.EnsureKVBucketWithRetry(ctx, js, jetstream.KeyValueConfig{
//	    Bucket: "fractal-barrier",
//	    TTL:    10 * time.Minute,
//	}, 3)
func EnsureKVBucketWithRetry(
	ctx context.Context,
	js jetstream.JetStream,
	config jetstream.KeyValueConfig,
	maxRetries int,
) (jetstream.KeyValue, error) {
	kv, err := withRetry(ctx, maxRetries, func() (jetstream.KeyValue, error) {
		kv, err := js.CreateKeyValue(ctx, config)
		if errors.Is(err, jetstream.ErrBucketExists) {
			kv, err = js.KeyValue(ctx, config.Bucket)
			if err != nil {
				return nil, fmt.Errorf("bucket exists but failed to open: %w", err)
			}
		}

		return kv, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create/open KV bucket %s: %w", config.Bucket, err)
	}

	return kv, nil
}

// EnsureStreamWithRetry creates or opens a stream, retrying with exponential backoff.
//
// An existing stream is returned as-is; its configuration is not updated.
func EnsureStreamWithRetry(
	ctx context.Context,
	js jetstream.JetStream,
	config jetstream.StreamConfig,
	maxRetries int,
) (jetstream.Stream, error) {
	stream, err := withRetry(ctx, maxRetries, func() (jetstream.Stream, error) {
		s, err := js.CreateStream(ctx, config)
		if errors.Is(err, jetstream.ErrStreamNameAlreadyInUse) {
			s, err = js.Stream(ctx, config.Name)
			if err != nil {
				return nil, fmt.Errorf("stream exists but failed to open: %w", err)
			}
		}

		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create/open stream %s: %w", config.Name, err)
	}

	return stream, nil
}

func withRetry[T any](ctx context.Context, maxRetries int, attemptFn func() (T, error)) (T, error) {
	var zero T
	if maxRetries <= 0 {
		maxRetries = 3
	}

	var lastErr error
	for attempt := range maxRetries {
		v, err := attemptFn()
		if err == nil {
			return v, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, fmt.Errorf("context cancelled: %w", ctx.Err())
		}

		// 10ms, 20ms, 40ms...
		if attempt < maxRetries-1 {
			backoff := time.Duration(1<<uint(attempt)) * 10 * time.Millisecond //nolint:gosec // attempt is bounded by maxRetries
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return zero, fmt.Errorf("after %d attempts: %w", maxRetries, lastErr)
}
