// Package arrival turns the free-form arrival messages of the Seoul bus API
// into structured arrival records.
package arrival

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ETAKind tags the shape of an upstream arrival message.
type ETAKind int

const (
	Unparsed ETAKind = iota
	AwaitingDeparture
	ArrivingSoon
	Timed
)

const (
	msgAwaitingDeparture = "출발대기"
	msgArrivingSoon      = "곧 도착"

	etaAwaitingDeparture = "출발 대기"
)

// ETA is the classified form of an arrival message. Minutes and Seconds are
// set only for Timed; Text holds the raw text for Unparsed.
type ETA struct {
	Kind    ETAKind
	Minutes int
	Seconds int
	Text    string
}

// Arrival is one bus as served to clients.
type Arrival struct {
	BusNo       string  `json:"bus_no"`
	ETA         string  `json:"eta"`
	ArrivalTime *string `json:"arrival_time"`
	Crowd       string  `json:"crowd"`
	Position    *string `json:"position"`
}

// Clock is satisfied by gcache clocks and anything else with Now.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock reads the process clock.
var SystemClock Clock = systemClock{}

var (
	positionRe = regexp.MustCompile(`^([\d분초\s]+).*?\[(.+)\]`)
	timedRe    = regexp.MustCompile(`(\d+)분(\d+)초`)
)

var crowdLevels = map[string]string{
	"0": "데이터없음",
	"3": "여유",
	"4": "보통",
	"5": "혼잡",
}

// SplitPosition separates the "[N번째 전]" suffix from an arrival message.
// Without a suffix the message is returned unchanged and position is nil.
func SplitPosition(raw string) (etaRaw string, position *string) {
	m := positionRe.FindStringSubmatch(raw)
	if m == nil {
		return raw, nil
	}
	pos := strings.TrimSpace(m[2])
	return strings.TrimSpace(m[1]), &pos
}

// ClassifyETA applies the message rules in order; the first match wins.
func ClassifyETA(etaRaw string) ETA {
	switch etaRaw {
	case msgAwaitingDeparture:
		return ETA{Kind: AwaitingDeparture}
	case msgArrivingSoon:
		return ETA{Kind: ArrivingSoon}
	}
	if m := timedRe.FindStringSubmatch(etaRaw); m != nil {
		mins, errM := strconv.Atoi(m[1])
		secs, errS := strconv.Atoi(m[2])
		if errM == nil && errS == nil {
			return ETA{Kind: Timed, Minutes: mins, Seconds: secs}
		}
	}
	return ETA{Kind: Unparsed, Text: etaRaw}
}

// CrowdLabel maps the upstream congestion fields to a label. Only code "4"
// carries a level; everything else yields "".
func CrowdLabel(code, level string) string {
	if code != "4" {
		return ""
	}
	return crowdLevels[level]
}

// FormatClock renders t as "오전 09:05" / "오후 12:30".
func FormatClock(t time.Time) string {
	marker := "오전"
	if t.Hour() >= 12 {
		marker = "오후"
	}
	return marker + " " + t.Format("03:04")
}

// Parser stamps arrival times relative to its clock in a fixed zone.
type Parser struct {
	clock Clock
	loc   *time.Location
}

// NewParser returns a parser. A nil clock means the process clock and a nil
// location means time.Local.
func NewParser(clock Clock, loc *time.Location) *Parser {
	if clock == nil {
		clock = SystemClock
	}
	if loc == nil {
		loc = time.Local
	}
	return &Parser{clock: clock, loc: loc}
}

// Parse builds an Arrival from the raw message and congestion fields. The
// bus number is left for the caller to fill.
func (p *Parser) Parse(raw, crowdCode, crowdLevel string) Arrival {
	etaRaw, position := SplitPosition(raw)
	eta, arrivalTime := p.Format(ClassifyETA(etaRaw))
	return Arrival{
		ETA:         eta,
		ArrivalTime: arrivalTime,
		Crowd:       CrowdLabel(crowdCode, crowdLevel),
		Position:    position,
	}
}

// Format renders a classified ETA and its wall-clock estimate.
// Unrecognised text is treated as arriving now.
func (p *Parser) Format(e ETA) (string, *string) {
	now := p.clock.Now().In(p.loc)
	switch e.Kind {
	case AwaitingDeparture:
		return etaAwaitingDeparture, nil
	case ArrivingSoon:
		return msgArrivingSoon, strPtr(FormatClock(now))
	case Timed:
		at := now.Add(time.Duration(e.Minutes)*time.Minute + time.Duration(e.Seconds)*time.Second)
		return fmt.Sprintf("%d분 %d초", e.Minutes, e.Seconds), strPtr(FormatClock(at))
	default:
		return e.Text, strPtr(FormatClock(now))
	}
}

func strPtr(s string) *string { return &s }
