package recording

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const defaultQueueSize = 64

// Pool converts recordings with a bounded number of concurrent transcodes.
type Pool struct {
	store   *Store
	tr      Transcoder
	workers int
	log     *zerolog.Logger

	mu     sync.Mutex
	closed bool
	jobs   chan string
}

// NewPool creates a pool running at most workers transcodes at once.
func NewPool(store *Store, tr Transcoder, workers int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Pool{
		store:   store,
		tr:      tr,
		workers: workers,
		log:     logger,
		jobs:    make(chan string, defaultQueueSize),
	}
}

// Enqueue schedules conversion of a stored recording. It reports false when
// the queue is full or the pool is closed.
func (p *Pool) Enqueue(filename string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	select {
	case p.jobs <- filename:
		return true
	default:
		p.log.Warn().Str("file", filename).Msg("transcode queue full, skipping")
		return false
	}
}

// Close stops accepting jobs. Run keeps going until the queued jobs are done
// unless its context is cancelled first.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
}

// Run processes jobs until Close is called or ctx is done, then waits for
// in-flight transcodes.
func (p *Pool) Run(ctx context.Context) error {
	var g errgroup.Group
	g.SetLimit(p.workers)

	p.log.Info().Int("workers", p.workers).Msg("transcode pool started")
	defer p.log.Info().Msg("transcode pool stopped")

	for {
		select {
		case <-ctx.Done():
			return g.Wait()
		case filename, ok := <-p.jobs:
			if !ok {
				return g.Wait()
			}
			g.Go(func() error {
				p.process(ctx, filename)
				return nil
			})
		}
	}
}

func (p *Pool) process(ctx context.Context, filename string) {
	dst := HLSDir(filename)
	if err := p.store.fs.MkdirAll(dst, 0o755); err != nil {
		p.log.Error().Err(err).Str("file", filename).Msg("create hls dir")
		return
	}
	if err := p.tr.Transcode(ctx, VideoPath(filename), dst); err != nil {
		p.log.Error().Err(fmt.Errorf("transcode: %w", err)).Str("file", filename).Msg("hls conversion failed")
		return
	}
	p.log.Info().Str("file", filename).Msg("hls conversion finished")
}
