package service

import "rsi_bot/internal/models"

type sessionRequest struct {
	Identifier        string `json:"identifier"`
	Password          string `json:"password"`
	EncryptedPassword bool   `json:"encryptedPassword"`
}

type apiErrorBody struct {
	ErrorCode string `json:"errorCode"`
}

type bidAsk struct {
	Bid float64 `json:"bid"`
	Ask float64 `json:"ask"`
}

type pricesResponse struct {
	Prices []struct {
		SnapshotTime    string  `json:"snapshotTime"`
		SnapshotTimeUTC string  `json:"snapshotTimeUTC"`
		OpenPrice       bidAsk  `json:"openPrice"`
		ClosePrice      bidAsk  `json:"closePrice"`
		HighPrice       bidAsk  `json:"highPrice"`
		LowPrice        bidAsk  `json:"lowPrice"`
		Volume          float64 `json:"lastTradedVolume"`
	} `json:"prices"`
	InstrumentType string `json:"instrumentType"`
}

type openPositionRequest struct {
	Epic      string  `json:"epic"`
	Direction string  `json:"direction"` // BUY | SELL
	Size      float64 `json:"size"`
}

type dealReferenceResponse struct {
	DealReference string `json:"dealReference"`
}

type confirmResponse struct {
	Date          string  `json:"date"`
	Status        string  `json:"status"`
	DealStatus    string  `json:"dealStatus"` // ACCEPTED | REJECTED
	DealID        string  `json:"dealId"`
	DealReference string  `json:"dealReference"`
	Epic          string  `json:"epic"`
	Direction     string  `json:"direction"`
	Size          float64 `json:"size"`
	Level         float64 `json:"level"`
	Reason        string  `json:"reason"`
}

type positionsResponse struct {
	Positions []struct {
		Position struct {
			DealID    string  `json:"dealId"`
			Direction string  `json:"direction"`
			Size      float64 `json:"size"`
			Level     float64 `json:"level"`
			CreatedAt string  `json:"createdDateUTC"`
		} `json:"position"`
		Market struct {
			Epic           string `json:"epic"`
			InstrumentName string `json:"instrumentName"`
		} `json:"market"`
	} `json:"positions"`
}

// OpenPosition - позиция у брокера, как её видит /api/v1/positions.
type OpenPosition struct {
	DealID    string
	Epic      string
	Direction models.Position
	Size      float64
	Level     float64
}

type navigationNode struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type marketSnapshot struct {
	Epic             string  `json:"epic"`
	InstrumentName   string  `json:"instrumentName"`
	InstrumentType   string  `json:"instrumentType"`
	MarketStatus     string  `json:"marketStatus"`
	Bid              float64 `json:"bid"`
	Offer            float64 `json:"offer"`
	PercentageChange float64 `json:"percentageChange"`
}

type navigationResponse struct {
	Nodes   []navigationNode `json:"nodes"`
	Markets []marketSnapshot `json:"markets"`
}

type marketDetailsResponse struct {
	Instrument struct {
		Epic string `json:"epic"`
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"instrument"`
	Snapshot struct {
		MarketStatus     string  `json:"marketStatus"`
		Bid              float64 `json:"bid"`
		Offer            float64 `json:"offer"`
		PercentageChange float64 `json:"percentageChange"`
	} `json:"snapshot"`
}

type accountsResponse struct {
	Accounts []struct {
		AccountID   string `json:"accountId"`
		AccountName string `json:"accountName"`
		Status      string `json:"status"`
		AccountType string `json:"accountType"`
		Preferred   bool   `json:"preferred"`
		Currency    string `json:"currency"`
		Balance     struct {
			Balance    float64 `json:"balance"`
			Deposit    float64 `json:"deposit"`
			ProfitLoss float64 `json:"profitLoss"`
			Available  float64 `json:"available"`
		} `json:"balance"`
	} `json:"accounts"`
}

type sessionInfoResponse struct {
	ClientID  string `json:"clientId"`
	AccountID string `json:"accountId"`
	Currency  string `json:"currency"`
}

type switchAccountRequest struct {
	AccountID string `json:"accountId"`
}

// Category - узел навигации по рынкам (Commodities, Forex ...).
type Category struct {
	ID   string
	Name string
}

// Market - инструмент с текущей котировкой.
type Market struct {
	Epic             string
	Name             string
	Type             string
	Status           string
	Bid              float64
	Offer            float64
	PercentageChange float64
}

// Listing - содержимое узла навигации: подкатегории и рынки.
type Listing struct {
	Nodes   []Category
	Markets []Market
}

type Account struct {
	ID         string
	Name       string
	Type       string
	Currency   string
	Status     string
	Balance    float64
	Available  float64
	ProfitLoss float64
	Preferred  bool
	Current    bool
}
