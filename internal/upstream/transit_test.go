package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commute-api/internal/arrival"
	"commute-api/internal/retry"
)

const arrivalXML = `<?xml version="1.0" encoding="UTF-8"?>
<ServiceResult>
  <comMsgHeader/>
  <msgHeader><headerCd>0</headerCd><headerMsg>정상적으로 처리되었습니다.</headerMsg></msgHeader>
  <msgBody>
    <itemList>
      <arrmsg1>12분22초 후[2번째 전]</arrmsg1>
      <arrmsg2>곧 도착</arrmsg2>
      <plainNo1>서울74사1234</plainNo1>
      <plainNo2>서울74사5678</plainNo2>
      <rerdie_Div1>4</rerdie_Div1>
      <rerdie_Div2>4</rerdie_Div2>
      <reride_Num1>3</reride_Num1>
      <reride_Num2>5</reride_Num2>
    </itemList>
  </msgBody>
</ServiceResult>`

const emptyXML = `<?xml version="1.0" encoding="UTF-8"?>
<ServiceResult><msgHeader><headerCd>4</headerCd></msgHeader><msgBody/></ServiceResult>`

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type recordingObserver struct {
	outcomes []string
}

func (o *recordingObserver) UpstreamRequest(feed, outcome string) {
	o.outcomes = append(o.outcomes, feed+":"+outcome)
}

func seoul(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)
	return loc
}

func newTestTransit(t *testing.T, srv *httptest.Server, obs Observer) *TransitClient {
	t.Helper()
	loc := seoul(t)
	parser := arrival.NewParser(fixedClock{time.Date(2025, 3, 3, 8, 0, 0, 0, loc)}, loc)
	return NewTransitClient(TransitConfig{
		BaseURL:    srv.URL,
		ServiceKey: "key%2Babc",
		StationID:  "106000201",
		RouteID:    "100100178",
		Ord:        "25",
		Timeout:    time.Second,
		Retry:      retry.Policy{MaxAttempts: 3},
	}, parser, srv.Client(), nil, obs)
}

func TestFetchArrivals_ParsesBothBuses(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(arrivalXML))
	}))
	defer srv.Close()
	obs := &recordingObserver{}

	got := newTestTransit(t, srv, obs).FetchArrivals(context.Background())

	require.Len(t, got, 2)
	assert.Equal(t, "서울74사1234", got[0].BusNo)
	assert.Equal(t, "12분 22초", got[0].ETA)
	require.NotNil(t, got[0].ArrivalTime)
	assert.Equal(t, "오전 08:12", *got[0].ArrivalTime)
	require.NotNil(t, got[0].Position)
	assert.Equal(t, "2번째 전", *got[0].Position)
	assert.Equal(t, "여유", got[0].Crowd)

	assert.Equal(t, "서울74사5678", got[1].BusNo)
	assert.Equal(t, "곧 도착", got[1].ETA)
	assert.Equal(t, "혼잡", got[1].Crowd)
	assert.Nil(t, got[1].Position)

	assert.Contains(t, gotQuery, "serviceKey=key%2Babc")
	assert.Contains(t, gotQuery, "stId=106000201")
	assert.Contains(t, gotQuery, "busRouteId=100100178")
	assert.Contains(t, gotQuery, "ord=25")
	assert.Equal(t, []string{"bus:ok"}, obs.outcomes)
}

func TestFetchArrivals_RetriesUntilItemsAppear(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusInternalServerError)
		case 2:
			_, _ = w.Write([]byte(emptyXML))
		default:
			_, _ = w.Write([]byte(arrivalXML))
		}
	}))
	defer srv.Close()
	obs := &recordingObserver{}

	got := newTestTransit(t, srv, obs).FetchArrivals(context.Background())

	assert.Len(t, got, 2)
	assert.EqualValues(t, 3, calls.Load())
	assert.Equal(t, []string{"bus:status", "bus:empty", "bus:ok"}, obs.outcomes)
}

func TestFetchArrivals_ExhaustionYieldsEmpty(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	got := newTestTransit(t, srv, nil).FetchArrivals(context.Background())

	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.EqualValues(t, 3, calls.Load())
}

func TestFetchArrivals_EmptyItemListIsRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`<ServiceResult><msgBody><itemList></itemList></msgBody></ServiceResult>`))
	}))
	defer srv.Close()

	got := newTestTransit(t, srv, nil).FetchArrivals(context.Background())

	assert.Empty(t, got)
	assert.EqualValues(t, 3, calls.Load())
}

func TestFetchArrivals_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<ServiceResult><msgBody>"))
	}))
	defer srv.Close()
	obs := &recordingObserver{}

	got := newTestTransit(t, srv, obs).FetchArrivals(context.Background())

	assert.Empty(t, got)
	assert.Equal(t, []string{"bus:decode", "bus:decode", "bus:decode"}, obs.outcomes)
}

func TestFetchArrivals_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := newTestTransit(t, srv, nil)
	srv.Close()

	got := c.FetchArrivals(context.Background())

	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFetchArrivals_CancelledContext(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(arrivalXML))
	}))
	defer srv.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := newTestTransit(t, srv, nil).FetchArrivals(ctx)

	assert.Empty(t, got)
	assert.EqualValues(t, 0, calls.Load())
}
