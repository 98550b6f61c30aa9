package preview

import (
	"context"
	"sync"

	"github.com/zredlined/frc-ai-camera/internal/types"
)

// Publisher holds the single current preview frame.
//
// Single-writer, multi-reader: the capture loop publishes an immutable
// handle and wakes waiters by closing a notification channel; readers that
// hold the previous handle keep a complete frame. Publish never blocks,
// regardless of how many stream consumers are attached or how slow they
// are.
type Publisher struct {
	mu     sync.Mutex
	cur    *types.PreviewFrame
	seq    uint64
	notify chan struct{}
}

// NewPublisher creates an empty publisher.
func NewPublisher() *Publisher {
	return &Publisher{notify: make(chan struct{})}
}

// Publish replaces the current frame and wakes all waiting consumers.
// The frame must not be modified after being passed in.
func (p *Publisher) Publish(frame *types.PreviewFrame) {
	p.mu.Lock()
	p.seq++
	frame.Seq = p.seq
	p.cur = frame
	close(p.notify)
	p.notify = make(chan struct{})
	p.mu.Unlock()
}

// Latest returns the current frame, or nil before the first publish.
func (p *Publisher) Latest() *types.PreviewFrame {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cur
}

// Next blocks until a frame with a sequence number greater than after is
// available, then returns it. Each consumer passes the sequence number of
// the last frame it handled, which yields non-decreasing timestamps per
// consumer without any coordination between consumers.
func (p *Publisher) Next(ctx context.Context, after uint64) (*types.PreviewFrame, error) {
	for {
		p.mu.Lock()
		if p.cur != nil && p.cur.Seq > after {
			frame := p.cur
			p.mu.Unlock()
			return frame, nil
		}
		notify := p.notify
		p.mu.Unlock()

		select {
		case <-notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
