// Package sampler records the first arriving bus to a CSV log at a fixed
// interval inside a daily window.
package sampler

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"commute-api/internal/arrival"
	mmetrics "commute-api/internal/metrics"
	"commute-api/internal/publisher"
)

var header = []string{"recorded_at", "eta", "expected_arrival", "remaining_stops"}

// ArrivalSource is satisfied by upstream.TransitClient.
type ArrivalSource interface {
	FetchArrivals(ctx context.Context) []arrival.Arrival
}

// SamplePublisher is satisfied by publisher.NATSPublisher.
type SamplePublisher interface {
	PublishSample(msg publisher.SampleMessage) error
}

type Recorder struct {
	path    string
	source  ArrivalSource
	pub     SamplePublisher
	clock   arrival.Clock
	tz      *time.Location
	metrics *mmetrics.Collector

	mu sync.Mutex
}

// NewRecorder returns a recorder appending to path. pub and metrics may be
// nil.
func NewRecorder(path string, source ArrivalSource, pub SamplePublisher, clock arrival.Clock, tz *time.Location, metrics *mmetrics.Collector) *Recorder {
	if clock == nil {
		clock = arrival.SystemClock
	}
	if tz == nil {
		tz = time.Local
	}
	return &Recorder{path: path, source: source, pub: pub, clock: clock, tz: tz, metrics: metrics}
}

// Init creates the log with its header row unless it already exists.
func (r *Recorder) Init() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := os.Stat(r.path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.Create(r.path)
	if err != nil {
		return fmt.Errorf("create %s: %w", r.path, err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// Record fetches the current arrivals and appends the first one. It reports
// false when there was nothing to record.
func (r *Recorder) Record(ctx context.Context) (bool, error) {
	buses := r.source.FetchArrivals(ctx)
	if len(buses) == 0 {
		log.Printf("sampler: no bus data")
		if r.metrics != nil {
			r.metrics.SamplesEmpty.Inc()
		}
		return false, nil
	}

	first := buses[0]
	now := r.clock.Now().In(r.tz)
	row := []string{now.Format(time.RFC3339), first.ETA, deref(first.ArrivalTime), deref(first.Position)}
	if err := r.append(row); err != nil {
		if r.metrics != nil {
			r.metrics.SampleErrors.Inc()
		}
		return false, err
	}
	if r.metrics != nil {
		r.metrics.SamplesRecorded.Inc()
	}
	log.Printf("sampler: recorded bus=%s eta=%s", first.BusNo, first.ETA)

	if r.pub != nil {
		msg := publisher.SampleMessage{
			RecordedAt:      now,
			BusNo:           first.BusNo,
			ETA:             first.ETA,
			ExpectedArrival: deref(first.ArrivalTime),
			RemainingStops:  deref(first.Position),
		}
		if err := r.pub.PublishSample(msg); err != nil {
			log.Printf("sampler: publish error for %s: %v", first.BusNo, err)
		}
	}
	return true, nil
}

func (r *Recorder) append(row []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", r.path, err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
