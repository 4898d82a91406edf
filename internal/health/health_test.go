package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakePinger struct {
	fail atomic.Bool
}

func (f *fakePinger) HealthPing(context.Context) error {
	if f.fail.Load() {
		return errors.New("down")
	}
	return nil
}

func TestMonitorTransitions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := &fakePinger{}
	b := &fakePinger{}
	b.fail.Store(true)

	mon := NewMonitor(zerolog.Nop(), NewCheck("store", a), NewCheck("index", b))
	go mon.Start(ctx, 10*time.Millisecond)

	waitFor := func(want bool) bool {
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			if mon.IsHealthy() == want {
				return true
			}
			time.Sleep(5 * time.Millisecond)
		}
		return false
	}

	if !waitFor(false) {
		t.Fatalf("expected unhealthy while one dependency is down")
	}
	if d := mon.Details(); d["index"] != "down" {
		t.Fatalf("expected index failure detail, got %q", d["index"])
	}

	b.fail.Store(false)
	if !waitFor(true) {
		t.Fatalf("expected healthy after dependency recovered")
	}
	if d := mon.Details(); d["store"] != "ok" || d["index"] != "ok" {
		t.Fatalf("expected ok details, got %v", d)
	}
}
