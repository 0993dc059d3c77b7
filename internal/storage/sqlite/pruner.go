package sqlite

import (
	"context"
	"sync"
	"time"

	"github.com/yegors/neurai-voice/pkg/logger"
)

// Pruner periodically trims the transcription history to a fixed size
type Pruner struct {
	storage  *TranscriptionStorage
	keep     int
	interval time.Duration
	logger   *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewPruner creates a pruner that keeps the newest keep records
func NewPruner(storage *TranscriptionStorage, keep int, interval time.Duration, log *logger.Logger) *Pruner {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Pruner{
		storage:  storage,
		keep:     keep,
		interval: interval,
		logger:   log.Named("history-pruner"),
	}
}

// Start begins the pruning loop. It prunes once immediately.
func (p *Pruner) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return
	}
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("History pruner started",
		logger.Int("keep", p.keep),
		logger.Duration("interval", p.interval))
}

// Stop ends the loop and waits for it to exit
func (p *Pruner) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	p.wg.Wait()
	p.logger.Info("History pruner stopped")
}

func (p *Pruner) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.prune()
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.prune()
		}
	}
}

func (p *Pruner) prune() {
	deleted, err := p.storage.Prune(p.keep)
	if err != nil {
		p.logger.Error("Failed to prune history", Error(err))
		return
	}
	if deleted > 0 {
		p.logger.Debug("Pruned history", logger.Int64("deleted", deleted))
	}
}
