package sampler

import (
	"context"
	"log"
	"sync"
	"time"

	"commute-api/internal/arrival"
	mmetrics "commute-api/internal/metrics"
)

// Recording is the part of Recorder the manager drives.
type Recording interface {
	Record(ctx context.Context) (bool, error)
}

// Manager runs a Recorder every interval between start and end (offsets
// from local midnight) each day.
type Manager struct {
	rec      Recording
	tz       *time.Location
	start    time.Duration
	end      time.Duration
	interval time.Duration
	clock    arrival.Clock
	metrics  *mmetrics.Collector

	runCancel context.CancelFunc
	runWG     sync.WaitGroup
}

func NewManager(rec Recording, tz *time.Location, start, end, interval time.Duration, clock arrival.Clock, metrics *mmetrics.Collector) *Manager {
	if clock == nil {
		clock = arrival.SystemClock
	}
	if tz == nil {
		tz = time.Local
	}
	return &Manager{
		rec:      rec,
		tz:       tz,
		start:    start,
		end:      end,
		interval: interval,
		clock:    clock,
		metrics:  metrics,
	}
}

// Start launches the daily loop. It returns immediately.
func (m *Manager) Start(parent context.Context) {
	if m.interval <= 0 || m.end <= m.start {
		log.Printf("sampler disabled: window %s-%s interval %s", m.start, m.end, m.interval)
		return
	}
	ctx, cancel := context.WithCancel(parent)
	m.runCancel = cancel
	m.runWG.Add(1)
	go func() {
		defer m.runWG.Done()
		for ctx.Err() == nil {
			now := m.clock.Now().In(m.tz)
			ws, we := NextWindow(now, m.start, m.end)
			if ws.After(now) {
				log.Printf("sampler: next window %s ~ %s", ws.Format(time.RFC3339), we.Format(time.RFC3339))
			}
			if !m.runWindow(ctx, ws, we) {
				return
			}
		}
	}()
}

// Stop cancels the loop and waits for an in-flight record to finish.
func (m *Manager) Stop() {
	if m.runCancel != nil {
		m.runCancel()
	}
	m.runWG.Wait()
}

// runWindow records at every slot of [ws, we] not already in the past, then
// waits for we when the last slot falls short of it. It returns false once
// ctx is done.
func (m *Manager) runWindow(ctx context.Context, ws, we time.Time) bool {
	active := false
	defer func() {
		if active && m.metrics != nil {
			m.metrics.SamplerActive.Set(0)
		}
	}()

	var last time.Time
	for {
		now := m.clock.Now().In(m.tz)
		from := now
		if !last.IsZero() && !from.After(last) {
			from = last.Add(time.Nanosecond)
		}
		slot, ok := NextSlot(ws, we, from, m.interval)
		if !ok {
			return sleepUntil(ctx, now, we)
		}
		if !sleepUntil(ctx, now, slot) {
			return false
		}
		if !active {
			active = true
			if m.metrics != nil {
				m.metrics.SamplerActive.Set(1)
			}
		}
		last = slot
		if _, err := m.rec.Record(ctx); err != nil {
			log.Printf("sampler: record error: %v", err)
		}
	}
}

func sleepUntil(ctx context.Context, now, at time.Time) bool {
	wait := at.Sub(now)
	if wait <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// NextWindow returns today's window if it has not ended yet, otherwise
// tomorrow's. A window that ends exactly at now counts as ended.
func NextWindow(now time.Time, start, end time.Duration) (time.Time, time.Time) {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	ws, we := midnight.Add(start), midnight.Add(end)
	if !now.Before(we) {
		next := midnight.AddDate(0, 0, 1)
		ws, we = next.Add(start), next.Add(end)
	}
	return ws, we
}

// NextSlot returns the first of ws, ws+interval, ... that is not before now
// and not after we. ok is false when the window has no slots left.
func NextSlot(ws, we, now time.Time, interval time.Duration) (time.Time, bool) {
	slot := ws
	if now.After(ws) {
		n := now.Sub(ws) / interval
		slot = ws.Add(n * interval)
		if slot.Before(now) {
			slot = slot.Add(interval)
		}
	}
	if slot.After(we) {
		return time.Time{}, false
	}
	return slot, true
}
