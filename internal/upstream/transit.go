package upstream

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"commute-api/internal/arrival"
	"commute-api/internal/retry"
)

const (
	// DefaultTransitURL is the Seoul getArrInfoByRoute endpoint.
	DefaultTransitURL = "http://ws.bus.go.kr/api/rest/arrive/getArrInfoByRoute"

	feedBus = "bus"
)

var errNoItems = errors.New("bus response has no item list")

// TransitConfig identifies the stop and route to query.
type TransitConfig struct {
	BaseURL    string
	ServiceKey string
	StationID  string
	RouteID    string
	Ord        string
	Timeout    time.Duration
	Retry      retry.Policy
}

type arrivalResponse struct {
	XMLName xml.Name `xml:"ServiceResult"`
	MsgBody struct {
		ItemList []arrivalItem `xml:"itemList"`
	} `xml:"msgBody"`
}

type arrivalItem struct {
	ArrMsg1    string `xml:"arrmsg1"`
	ArrMsg2    string `xml:"arrmsg2"`
	PlainNo1   string `xml:"plainNo1"`
	PlainNo2   string `xml:"plainNo2"`
	RerideDiv1 string `xml:"rerdie_Div1"`
	RerideDiv2 string `xml:"rerdie_Div2"`
	RerideNum1 string `xml:"reride_Num1"`
	RerideNum2 string `xml:"reride_Num2"`
}

func (it arrivalItem) empty() bool {
	return it == arrivalItem{}
}

// TransitClient fetches and parses the next two arrivals for one route at
// one stop.
type TransitClient struct {
	cfg    TransitConfig
	parser *arrival.Parser
	req    requester
}

// NewTransitClient returns a client. hc and limiter may be nil.
func NewTransitClient(cfg TransitConfig, parser *arrival.Parser, hc *http.Client, limiter *rate.Limiter, obs Observer) *TransitClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultTransitURL
	}
	return &TransitClient{
		cfg:    cfg,
		parser: parser,
		req:    newRequester(feedBus, hc, cfg.Timeout, limiter, obs),
	}
}

// FetchArrivals returns the first and second arriving buses. When every
// attempt fails it logs the last failure and returns an empty slice.
func (c *TransitClient) FetchArrivals(ctx context.Context) []arrival.Arrival {
	buses, attempts, err := retry.Do(ctx, c.cfg.Retry, c.fetchOnce, func(a []arrival.Arrival) bool {
		return len(a) > 0
	})
	if err != nil {
		log.Printf("bus arrivals unavailable (%d attempts): %v", attempts, err)
		return []arrival.Arrival{}
	}
	return buses
}

func (c *TransitClient) url() string {
	q := url.Values{}
	q.Set("stId", c.cfg.StationID)
	q.Set("busRouteId", c.cfg.RouteID)
	q.Set("ord", c.cfg.Ord)
	return buildURL(c.cfg.BaseURL, c.cfg.ServiceKey, q)
}

func (c *TransitClient) fetchOnce(ctx context.Context) ([]arrival.Arrival, error) {
	resp, cancel, err := c.req.get(ctx, c.url())
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer resp.Body.Close()

	var body arrivalResponse
	if err := xml.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.req.observe(OutcomeDecode)
		return nil, fmt.Errorf("decode bus response: %w", err)
	}
	if len(body.MsgBody.ItemList) == 0 || body.MsgBody.ItemList[0].empty() {
		c.req.observe(OutcomeEmpty)
		return nil, errNoItems
	}
	c.req.observe(OutcomeOK)

	it := body.MsgBody.ItemList[0]
	first := c.parser.Parse(it.ArrMsg1, it.RerideDiv1, it.RerideNum1)
	first.BusNo = it.PlainNo1
	second := c.parser.Parse(it.ArrMsg2, it.RerideDiv2, it.RerideNum2)
	second.BusNo = it.PlainNo2
	return []arrival.Arrival{first, second}, nil
}
