package objects

import "github.com/golos/golosmind/internal/protocol"

// Order is one side of an open limit order in whole units.
type Order struct {
	Price   float64       `json:"price"`
	Quote   float64       `json:"quote"`
	Base    float64       `json:"base"`
	Seller  string        `json:"seller"`
	Created protocol.Time `json:"created"`
}

type OrderBook struct {
	Base  string  `json:"base"`
	Quote string  `json:"quote"`
	Bids  []Order `json:"bids"`
	Asks  []Order `json:"asks"`
}

type MarketTrade struct {
	Date   protocol.Time `json:"date"`
	Price  float64       `json:"price"`
	Amount float64       `json:"amount"`
	Value  float64       `json:"value"`
}

type Ticker struct {
	Base          string  `json:"base"`
	Quote         string  `json:"quote"`
	Latest        float64 `json:"latest"`
	LowestAsk     float64 `json:"lowest_ask"`
	HighestBid    float64 `json:"highest_bid"`
	PercentChange float64 `json:"percent_change"`
	BaseVolume    float64 `json:"base_volume"`
	QuoteVolume   float64 `json:"quote_volume"`
}

type Volume struct {
	Base        string  `json:"base"`
	Quote       string  `json:"quote"`
	BaseVolume  float64 `json:"base_volume"`
	QuoteVolume float64 `json:"quote_volume"`
}

// Bucket is one candlestick of market history.
type Bucket struct {
	Open        protocol.Time `json:"open"`
	Seconds     uint32        `json:"seconds"`
	High        float64       `json:"high"`
	Low         float64       `json:"low"`
	OpenPrice   float64       `json:"open_price"`
	ClosePrice  float64       `json:"close_price"`
	BaseVolume  float64       `json:"base_volume"`
	QuoteVolume float64       `json:"quote_volume"`
	Trades      int           `json:"trades"`
}

// MarketData is the market page of get_state.
type MarketData struct {
	Bids         []Order       `json:"bids"`
	Asks         []Order       `json:"asks"`
	History      []MarketTrade `json:"history"`
	PriceHistory []Bucket      `json:"price_history"`
}
