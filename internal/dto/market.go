package dto

import "time"

type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// CloseSeries holds closes oldest first. Missing points are NaN.
type CloseSeries struct {
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	Closes    []float64 `json:"closes"`
	Timestamp time.Time `json:"timestamp"`
}

type GetClosesParam struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
	Limit     int    `json:"limit"`
}

type MarketStatus struct {
	Open     bool      `json:"open"`
	Reason   string    `json:"reason"`
	TimeZone string    `json:"time_zone"`
	Now      time.Time `json:"now"`
}

// YahooFinanceResponse is the chart API payload. Quote arrays hold nulls for
// missing points.
type YahooFinanceResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}
