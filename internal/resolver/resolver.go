// Package resolver implements the batched request/retry engine. It drives
// the transport port with bounded-size chunks, tracks per-key outcomes,
// retries only the failed subset, honors server-supplied wait hints, and
// gives up after a retry ceiling without aborting sibling chunks.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"siege-market-lab/internal/observability"
	"siege-market-lab/internal/ubi"
)

// Default configuration values.
const (
	DefaultBatchSize   = 10
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = 10 * time.Second
)

// Transport is the remote resolver port: one call resolves an ordered batch
// of operations into a same-length ordered batch of responses.
type Transport interface {
	Send(ctx context.Context, requests []ubi.Request) ([]ubi.Response, error)
}

// KeyError is the terminal per-key failure recorded after the retry ceiling.
type KeyError struct {
	Key      string
	Attempts int
	Err      error
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("key %s failed after %d attempts: %v", e.Key, e.Attempts, e.Err)
}

func (e *KeyError) Unwrap() error { return e.Err }

// Result maps every input key to exactly one outcome: a resolved payload or
// a terminal error. Key order is not preserved; callers must not depend on
// arrival order.
type Result[K comparable] struct {
	Resolved map[K]json.RawMessage
	Failed   map[K]error
}

// Resolver resolves sets of keys through the transport in chunks.
type Resolver[K comparable] struct {
	transport   Transport
	batchSize   int
	maxAttempts int
	baseDelay   time.Duration
	concurrency int
	logger      *log.Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

// Options configures a Resolver. Zero fields take defaults.
type Options struct {
	Transport   Transport
	BatchSize   int
	MaxAttempts int
	BaseDelay   time.Duration
	Concurrency int // chunks resolved concurrently; <=1 means sequential
	Logger      *log.Logger

	// Sleep overrides the inter-attempt wait (tests inject a recorder).
	Sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Resolver for keys of type K.
func New[K comparable](opts Options) *Resolver[K] {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	return &Resolver[K]{
		transport:   opts.Transport,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		concurrency: concurrency,
		logger:      logger,
		sleep:       sleep,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Resolve fetches a payload for every key. The returned Result accounts for
// each distinct input key exactly once, either in Resolved or in Failed.
// The only non-nil error returns are fatal: an authentication failure or a
// cancelled context; both abort the remaining work immediately.
func (r *Resolver[K]) Resolve(ctx context.Context, keys []K, build func(K) ubi.Request) (*Result[K], error) {
	result := &Result[K]{
		Resolved: make(map[K]json.RawMessage),
		Failed:   make(map[K]error),
	}

	chunks := chunkKeys(dedupeKeys(keys), r.batchSize)
	if len(chunks) == 0 {
		return result, nil
	}

	if r.concurrency <= 1 || len(chunks) == 1 {
		for _, chunk := range chunks {
			resolved, failed, err := r.resolveChunk(ctx, chunk, build)
			if err != nil {
				return nil, err
			}
			mergeInto(result, resolved, failed)
		}
		return result, nil
	}

	return r.resolveConcurrent(ctx, chunks, build)
}

// resolveConcurrent distributes chunks over a bounded worker pool. Each
// worker owns a disjoint chunk subset and private result maps; merging
// happens after all workers stop, so no fine-grained locking is needed.
func (r *Resolver[K]) resolveConcurrent(ctx context.Context, chunks [][]K, build func(K) ubi.Request) (*Result[K], error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type chunkOutcome struct {
		resolved map[K]json.RawMessage
		failed   map[K]error
		err      error
	}

	workers := r.concurrency
	if workers > len(chunks) {
		workers = len(chunks)
	}

	chunkCh := make(chan []K)
	outcomes := make(chan chunkOutcome, len(chunks))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for chunk := range chunkCh {
				resolved, failed, err := r.resolveChunk(ctx, chunk, build)
				outcomes <- chunkOutcome{resolved: resolved, failed: failed, err: err}
				if err != nil {
					cancel()
					return
				}
			}
		}()
	}

feed:
	for _, chunk := range chunks {
		select {
		case chunkCh <- chunk:
		case <-ctx.Done():
			break feed
		}
	}
	close(chunkCh)
	wg.Wait()
	close(outcomes)

	result := &Result[K]{
		Resolved: make(map[K]json.RawMessage),
		Failed:   make(map[K]error),
	}
	for outcome := range outcomes {
		if outcome.err != nil {
			return nil, outcome.err
		}
		mergeInto(result, outcome.resolved, outcome.failed)
	}
	return result, nil
}

// resolveChunk runs the attempt loop for one chunk. Transport-level failure
// marks every pending key failed for that attempt; a positional per-item
// error keeps only that key pending. The returned error is fatal only.
func (r *Resolver[K]) resolveChunk(ctx context.Context, chunk []K, build func(K) ubi.Request) (map[K]json.RawMessage, map[K]error, error) {
	observability.ChunkStarted()
	defer observability.ChunkFinished()

	resolved := make(map[K]json.RawMessage, len(chunk))
	lastErr := make(map[K]error, len(chunk))
	pending := make([]K, len(chunk))
	copy(pending, chunk)

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		requests := make([]ubi.Request, len(pending))
		for i, key := range pending {
			requests[i] = build(key)
		}

		delay := r.baseDelay
		responses, err := r.transport.Send(ctx, requests)
		switch {
		case errors.Is(err, ubi.ErrUnauthorized):
			return nil, nil, err
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, nil, err
		case err != nil:
			// Whole-call failure: every pending key failed this attempt.
			for _, key := range pending {
				lastErr[key] = err
			}
			if hint, ok := ParseRetryHint(err.Error()); ok {
				delay = hint
				observability.RecordRateLimitHit()
			}
			r.logger.Printf("[resolver] attempt %d/%d: transport failure for %d keys: %v",
				attempt, r.maxAttempts, len(pending), err)
		case len(responses) != len(pending):
			// A mis-sized response breaks positional pairing; treating it
			// as a whole-call failure keeps every key accounted for.
			sizeErr := fmt.Errorf("response count mismatch: sent %d, received %d", len(pending), len(responses))
			for _, key := range pending {
				lastErr[key] = sizeErr
			}
			r.logger.Printf("[resolver] attempt %d/%d: %v", attempt, r.maxAttempts, sizeErr)
		default:
			// Positional pairing: inspect each element independently.
			var stillPending []K
			for i, resp := range responses {
				key := pending[i]
				if respErr := resp.Err(); respErr != nil {
					lastErr[key] = respErr
					stillPending = append(stillPending, key)
					if hint, ok := ParseRetryHint(respErr.Error()); ok {
						delay = hint
						observability.RecordRateLimitHit()
					}
					continue
				}
				resolved[key] = resp.Data
			}
			pending = stillPending
		}

		if len(pending) == 0 {
			break
		}
		if attempt < r.maxAttempts {
			observability.RecordRetry()
			if err := r.sleep(ctx, delay); err != nil {
				return nil, nil, err
			}
		}
	}

	failed := make(map[K]error, len(pending))
	for _, key := range pending {
		failed[key] = &KeyError{
			Key:      fmt.Sprint(key),
			Attempts: r.maxAttempts,
			Err:      lastErr[key],
		}
	}
	observability.RecordKeysResolved(len(resolved), len(failed))
	if len(failed) > 0 {
		r.logger.Printf("[resolver] chunk done: %d resolved, %d failed terminally", len(resolved), len(failed))
	}
	return resolved, failed, nil
}

func mergeInto[K comparable](dst *Result[K], resolved map[K]json.RawMessage, failed map[K]error) {
	for k, v := range resolved {
		dst.Resolved[k] = v
	}
	for k, v := range failed {
		dst.Failed[k] = v
	}
}

func dedupeKeys[K comparable](keys []K) []K {
	seen := make(map[K]struct{}, len(keys))
	out := keys[:0:0]
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func chunkKeys[K comparable](keys []K, size int) [][]K {
	var chunks [][]K
	for start := 0; start < len(keys); start += size {
		end := start + size
		if end > len(keys) {
			end = len(keys)
		}
		chunks = append(chunks, keys[start:end])
	}
	return chunks
}
