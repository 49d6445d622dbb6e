package api

import (
	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// REST Types
// -----------------------------------------------------------------------------

// LoginRequest is the /Auth/loginKey payload.
type LoginRequest struct {
	UserName string `json:"userName"`
	APIKey   string `json:"apiKey"`
}

// LoginResponse is the /Auth/loginKey result.
type LoginResponse struct {
	Success      bool   `json:"success"`
	ErrorCode    int    `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
	Token        string `json:"token"`
}

// ContractSearchRequest is the /Contract/search payload.
type ContractSearchRequest struct {
	SearchText string `json:"searchText"`
	Live       bool   `json:"live"`
}

// ContractSearchResponse is the /Contract/search result.
type ContractSearchResponse struct {
	Success      bool       `json:"success"`
	ErrorMessage string     `json:"errorMessage"`
	Contracts    []Contract `json:"contracts"`
}

// Contract is one candidate from a contract search.
type Contract struct {
	ID       string  `json:"id"`   // e.g., "CON.F.US.MNQ.H5"
	Name     string  `json:"name"` // e.g., "MNQH5"
	TickSize float64 `json:"tickSize"`
}

// RetrieveBarsRequest is the /History/retrieveBars payload.
// Unit 2 with UnitNumber 1 requests 1-minute bars.
type RetrieveBarsRequest struct {
	ContractID        string `json:"contractId"`
	Live              bool   `json:"live"`
	StartTime         string `json:"startTime"` // RFC 3339
	EndTime           string `json:"endTime"`   // RFC 3339
	Unit              int    `json:"unit"`
	UnitNumber        int    `json:"unitNumber"`
	Limit             int    `json:"limit"`
	IncludePartialBar bool   `json:"includePartialBar"`
}

// RetrieveBarsResponse is the /History/retrieveBars result.
type RetrieveBarsResponse struct {
	Success      bool        `json:"success"`
	ErrorMessage string      `json:"errorMessage"`
	Bars         []BarRecord `json:"bars"`
}

// BarRecord is one historical bar as returned by the API.
type BarRecord struct {
	T string  `json:"t"` // Timestamp string, RFC 3339 or "...Z"
	O float64 `json:"o"`
	H float64 `json:"h"`
	L float64 `json:"l"`
	C float64 `json:"c"`
	V int64   `json:"v"`
}

// -----------------------------------------------------------------------------
// Push Channel Types
// -----------------------------------------------------------------------------

// GatewayQuote is the payload of a GatewayQuote push event.
// A zero LastPrice means the tick carries no usable price.
type GatewayQuote struct {
	SymbolID  string  `json:"symbol"` // Dotted ID, e.g. "F.US.MNQ"
	LastPrice float64 `json:"lastPrice"`
	BestBid   float64 `json:"bestBid"`
	BestAsk   float64 `json:"bestAsk"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Open      float64 `json:"open"`
	Volume    int64   `json:"volume"` // Cumulative session volume
}

// GatewayTrade is the payload of a GatewayTrade push event.
// Decoded for completeness; the collector does not act on trades.
type GatewayTrade struct {
	ID        uuid.UUID `json:"id"`
	SymbolID  string    `json:"symbolId"`
	Price     float64   `json:"price"`
	Volume    int64     `json:"volume"`
	Timestamp string    `json:"timestamp"`
}
