// Package publisher fans recorded arrival samples out over NATS.
package publisher

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode"

	"github.com/nats-io/nats.go"
)

type NATSPublisher struct {
	nc          *nats.Conn
	subject     string
	logSubjects bool
	metrics     PublisherMetrics
}

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

// NewNATSPublisher connects to url and publishes under subject. The client
// reconnects forever; m may be nil.
func NewNATSPublisher(url, subject string, logSubjects bool, m PublisherMetrics) (*NATSPublisher, error) {
	if strings.Trim(subject, ".") == "" {
		return nil, fmt.Errorf("invalid NATS subject: %q", subject)
	}
	state := func(connected bool, event string) nats.ConnHandler {
		return func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(connected)
			}
			log.Printf("nats %s", event)
		}
	}
	nc, err := nats.Connect(url,
		nats.Name("commute-api"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats disconnected: %v", err)
		}),
		nats.ReconnectHandler(state(true, "reconnected")),
		nats.ClosedHandler(state(false, "closed")),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", url, err)
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return &NATSPublisher{nc: nc, subject: subject, logSubjects: logSubjects, metrics: m}, nil
}

// Close flushes pending samples and closes the connection.
func (p *NATSPublisher) Close() {
	if p.nc == nil {
		return
	}
	if err := p.nc.Drain(); err != nil {
		log.Printf("nats drain: %v", err)
		p.nc.Close()
	}
}

// SampleMessage is one recorded arrival of the first bus at the stop.
type SampleMessage struct {
	RecordedAt      time.Time `json:"recordedAt"`
	BusNo           string    `json:"busNo"`
	ETA             string    `json:"eta"`
	ExpectedArrival string    `json:"expectedArrival,omitempty"`
	RemainingStops  string    `json:"remainingStops,omitempty"`
}

// PublishSample sends msg on <subject>.<bus number>.
func (p *NATSPublisher) PublishSample(msg SampleMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode sample: %w", err)
	}
	subject := SampleSubject(p.subject, msg.BusNo)
	if p.logSubjects {
		log.Printf("nats publish subject=%s bytes=%d", subject, len(payload))
	}

	start := time.Now()
	err = p.nc.Publish(subject, payload)
	p.observe(time.Since(start), err)
	if err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

func (p *NATSPublisher) observe(d time.Duration, err error) {
	if p.metrics == nil {
		return
	}
	p.metrics.PublishObserve(d)
	if err != nil {
		p.metrics.NATSPublishErrInc()
		return
	}
	p.metrics.NATSPublishedInc()
}

// SampleSubject joins the base subject and a sanitised bus number.
func SampleSubject(base, busNo string) string {
	return strings.TrimSuffix(base, ".") + "." + subjectToken(busNo)
}

// subjectToken makes s usable as one subject token: separators, wildcards
// and whitespace become '_'.
func subjectToken(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '.', r == '*', r == '>', r == '/', unicode.IsSpace(r):
			return '_'
		}
		return r
	}, strings.TrimSpace(s))
	if s == "" {
		return "_"
	}
	return s
}
