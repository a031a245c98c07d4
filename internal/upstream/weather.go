package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"commute-api/internal/arrival"
)

const (
	// DefaultWeatherURL is the KMA ultra-short-term forecast endpoint.
	DefaultWeatherURL = "https://apis.data.go.kr/1360000/VilageFcstInfoService_2.0/getUltraSrtFcst"

	feedWeather = "weather"

	forecastSlots = 4
)

// WeatherConfig selects the forecast grid cell.
type WeatherConfig struct {
	BaseURL    string
	ServiceKey string
	NX         int
	NY         int
	Timeout    time.Duration
}

// Forecast is one hourly slot as served to clients.
type Forecast struct {
	Time                string `json:"time"`
	Sky                 string `json:"sky"`
	Temp                string `json:"temp"`
	Humidity            string `json:"humidity"`
	PrecipitationType   string `json:"precipitation_type"`
	PrecipitationAmount string `json:"precipitation_amount"`
	SkyCode             int    `json:"sky_code"`
	Wind                string `json:"wind"`
}

type forecastResponse struct {
	Response struct {
		Header struct {
			ResultCode string `json:"resultCode"`
			ResultMsg  string `json:"resultMsg"`
		} `json:"header"`
		Body struct {
			Items struct {
				Item []forecastItem `json:"item"`
			} `json:"items"`
		} `json:"body"`
	} `json:"response"`
}

type forecastItem struct {
	Category  string `json:"category"`
	FcstDate  string `json:"fcstDate"`
	FcstTime  string `json:"fcstTime"`
	FcstValue string `json:"fcstValue"`
}

var skyNames = map[string]string{
	"1": "맑음",
	"3": "구름많음",
	"4": "흐림",
}

var precipitationNames = map[string]string{
	"1": "비", "4": "비", "5": "비",
	"2": "비+눈", "6": "비+눈",
	"3": "눈", "7": "눈",
}

var precipitationCodes = map[string]int{
	"비":   7,
	"비+눈": 8,
	"눈":   9,
}

type skyKey struct {
	sky   string
	night bool
}

var skyCodes = map[skyKey]int{
	{"맑음", true}:    1,
	{"맑음", false}:   2,
	{"구름많음", true}:  3,
	{"구름많음", false}: 4,
	{"흐림", true}:    5,
	{"흐림", false}:   6,
}

// WeatherClient fetches the next four hourly forecasts.
type WeatherClient struct {
	cfg   WeatherConfig
	clock arrival.Clock
	loc   *time.Location
	req   requester
}

// NewWeatherClient returns a client. hc, limiter and obs may be nil; a nil
// clock reads the process clock.
func NewWeatherClient(cfg WeatherConfig, clock arrival.Clock, loc *time.Location, hc *http.Client, limiter *rate.Limiter, obs Observer) *WeatherClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultWeatherURL
	}
	if clock == nil {
		clock = arrival.SystemClock
	}
	if loc == nil {
		loc = time.Local
	}
	return &WeatherClient{
		cfg:   cfg,
		clock: clock,
		loc:   loc,
		req:   newRequester(feedWeather, hc, cfg.Timeout, limiter, obs),
	}
}

// FetchForecast makes a single request. A non-200 answer is returned as a
// *StatusError.
func (c *WeatherClient) FetchForecast(ctx context.Context) ([]Forecast, error) {
	now := c.clock.Now().In(c.loc)
	baseDate, baseTime := BaseDateTime(now)

	q := url.Values{}
	q.Set("pageNo", "1")
	q.Set("numOfRows", "60")
	q.Set("dataType", "JSON")
	q.Set("base_date", baseDate)
	q.Set("base_time", baseTime)
	q.Set("nx", strconv.Itoa(c.cfg.NX))
	q.Set("ny", strconv.Itoa(c.cfg.NY))

	resp, cancel, err := c.req.get(ctx, buildURL(c.cfg.BaseURL, c.cfg.ServiceKey, q))
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer resp.Body.Close()

	var body forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.req.observe(OutcomeDecode)
		return nil, fmt.Errorf("decode forecast response: %w", err)
	}
	if code := body.Response.Header.ResultCode; code != "" && code != "00" {
		c.req.observe(OutcomeEmpty)
		return nil, fmt.Errorf("forecast result %s: %s", code, body.Response.Header.ResultMsg)
	}
	c.req.observe(OutcomeOK)
	return buildForecasts(now, body.Response.Body.Items.Item), nil
}

// BaseDateTime picks the most recent forecast run: the current hour's HH30
// run once the minute is past 45, otherwise the previous hour's.
func BaseDateTime(now time.Time) (date, hhmm string) {
	run := now
	if now.Minute() <= 45 {
		run = now.Add(-time.Hour)
	}
	return run.Format("20060102"), run.Format("15") + "30"
}

// FormatHour renders an hour of day as "오전 5시" / "오후 3시".
func FormatHour(hour int) string {
	hour = ((hour % 24) + 24) % 24
	period := "오전"
	if hour >= 12 {
		period = "오후"
	}
	h12 := hour % 12
	if h12 == 0 {
		h12 = 12
	}
	return fmt.Sprintf("%s %d시", period, h12)
}

// IsNight reports whether an hour of day falls outside 05:00-20:59.
func IsNight(hour int) bool {
	hour = ((hour % 24) + 24) % 24
	return hour < 5 || hour > 20
}

// buildForecasts groups items by forecast time and returns the slots for the
// four hours after now. Each slot is labelled with the hour before it.
func buildForecasts(now time.Time, items []forecastItem) []Forecast {
	byTime := make(map[string]map[string]string)
	for _, it := range items {
		m, ok := byTime[it.FcstTime]
		if !ok {
			m = make(map[string]string)
			byTime[it.FcstTime] = m
		}
		m[it.Category] = it.FcstValue
	}

	out := make([]Forecast, 0, forecastSlots)
	for i := 1; i <= forecastSlots; i++ {
		key := fmt.Sprintf("%02d00", (now.Hour()+i)%24)
		labelHour := now.Hour() + i - 1
		out = append(out, buildForecast(FormatHour(labelHour), IsNight(labelHour), byTime[key]))
	}
	return out
}

func buildForecast(label string, night bool, data map[string]string) Forecast {
	value := func(category, def string) string {
		if v, ok := data[category]; ok {
			return v
		}
		return def
	}

	sky, ok := skyNames[value("SKY", "1")]
	if !ok {
		sky = "정보없음"
	}

	f := Forecast{
		Time:                label,
		Sky:                 sky,
		Temp:                value("T1H", "0"),
		Humidity:            value("REH", "0"),
		PrecipitationType:   "없음",
		PrecipitationAmount: value("RN1", "강수없음"),
		Wind:                WindLabel(data["WSD"]),
	}
	if pty, ok := precipitationNames[value("PTY", "0")]; ok {
		f.PrecipitationType = pty
		f.SkyCode = precipitationCodes[pty]
	} else {
		f.SkyCode = skyCodes[skyKey{sky: sky, night: night}]
	}
	return f
}

// WindLabel classifies a WSD value in m/s. Missing or non-numeric values
// have no label.
func WindLabel(wsd string) string {
	if wsd == "" {
		return "정보 없음"
	}
	v, err := strconv.ParseFloat(wsd, 64)
	if err != nil {
		return "정보 없음"
	}
	switch {
	case v >= 9:
		return "강한 바람"
	case v >= 4:
		return "약간 강한 바람"
	default:
		return "약한 바람"
	}
}
