package services

import (
	"log"
	"time"
)

const defaultSweepInterval = 1 * time.Minute

// IdleSweeper periodically unmounts tutor sessions nobody has touched for a while.
type IdleSweeper struct {
	sweep    func(now time.Time) int
	interval time.Duration
	stopChan chan struct{}
}

func NewIdleSweeper(sweep func(now time.Time) int, interval time.Duration) *IdleSweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &IdleSweeper{
		sweep:    sweep,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

func (s *IdleSweeper) Start() {
	if s.sweep == nil {
		return
	}
	go s.loop()
	log.Printf("Idle session sweeper started (every %s)", s.interval)
}

func (s *IdleSweeper) Stop() {
	select {
	case <-s.stopChan:
		return
	default:
		close(s.stopChan)
	}
}

func (s *IdleSweeper) loop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.runOnce(time.Now().UTC())
		}
	}
}

func (s *IdleSweeper) runOnce(now time.Time) int {
	removed := s.sweep(now)
	if removed > 0 {
		log.Printf("idle sweep: unmounted %d session(s)", removed)
	}
	return removed
}

// SweepInterval picks a polling interval that is fine-grained relative to the idle timeout.
func SweepInterval(idleTimeout time.Duration) time.Duration {
	interval := idleTimeout / 4
	if interval < 10*time.Second {
		return 10 * time.Second
	}
	if interval > 5*time.Minute {
		return 5 * time.Minute
	}
	return interval
}
