package evo

import (
	"context"
	"time"
)

// FrameClock paces generations against the host display. WaitFrame blocks
// until the next frame or until ctx is done.
type FrameClock interface {
	WaitFrame(ctx context.Context) error
}

// ImmediateClock never waits. Headless runs and tests use it.
type ImmediateClock struct{}

func (ImmediateClock) WaitFrame(ctx context.Context) error {
	return ctx.Err()
}

// TickerClock releases one generation per tick at a fixed frame rate.
type TickerClock struct {
	ticker *time.Ticker
}

func NewTickerClock(fps float64) *TickerClock {
	if fps <= 0 {
		fps = 60
	}
	return &TickerClock{ticker: time.NewTicker(time.Duration(float64(time.Second) / fps))}
}

func (c *TickerClock) WaitFrame(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ticker.C:
		return nil
	}
}

func (c *TickerClock) Stop() {
	c.ticker.Stop()
}

// SignalClock is driven by a host frame callback calling Tick. Ticks that
// arrive while no generation is waiting are coalesced into one.
type SignalClock struct {
	frames chan struct{}
}

func NewSignalClock() *SignalClock {
	return &SignalClock{frames: make(chan struct{}, 1)}
}

func (c *SignalClock) Tick() {
	select {
	case c.frames <- struct{}{}:
	default:
	}
}

func (c *SignalClock) WaitFrame(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.frames:
		return nil
	}
}
