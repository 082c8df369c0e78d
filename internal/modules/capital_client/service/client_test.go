package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"rsi_bot/internal/models"
)

type fakeCapital struct {
	mu sync.Mutex

	logins     int
	expireNext bool
	dealStatus string
	prices     string
	positions  string

	opened  []openPositionRequest
	deleted []string
	calls   int

	account  string // активный счёт сессии
	switches []string
}

func newFakeCapital(t *testing.T) (*fakeCapital, *Client) {
	t.Helper()
	f := &fakeCapital{dealStatus: dealAccepted, positions: `{"positions":[]}`}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/session", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if r.Header.Get(headerAPIKey) != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"errorCode":"error.invalid.api.key"}`))
			return
		}
		f.logins++
		f.account = "acc-1"
		w.Header().Set(headerCST, "cst-"+strconv.Itoa(f.logins))
		w.Header().Set(headerSecToken, "sec-"+strconv.Itoa(f.logins))
		_, _ = w.Write([]byte(`{"accountType":"CFD"}`))
	})

	authed := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			f.calls++
			want := "cst-" + strconv.Itoa(f.logins)
			expired := f.expireNext
			f.expireNext = false
			f.mu.Unlock()
			if expired || r.Header.Get(headerCST) != want {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"errorCode":"error.invalid.session.token"}`))
				return
			}
			h(w, r)
		}
	}

	mux.HandleFunc("GET /api/v1/prices/{epic}", authed(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if r.URL.Query().Get("resolution") != "MINUTE_5" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"errorCode":"error.invalid.resolution"}`))
			return
		}
		_, _ = w.Write([]byte(f.prices))
	}))
	mux.HandleFunc("POST /api/v1/positions", authed(func(w http.ResponseWriter, r *http.Request) {
		var req openPositionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.opened = append(f.opened, req)
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"dealReference":"o_1"}`))
	}))
	mux.HandleFunc("GET /api/v1/positions", authed(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		_, _ = w.Write([]byte(f.positions))
	}))
	mux.HandleFunc("DELETE /api/v1/positions/{dealId}", authed(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("dealId")
		f.mu.Lock()
		f.deleted = append(f.deleted, id)
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"dealReference":"d_` + id + `"}`))
	}))
	mux.HandleFunc("GET /api/v1/confirms/{ref}", authed(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		status := f.dealStatus
		f.mu.Unlock()
		resp := confirmResponse{DealReference: r.PathValue("ref"), DealStatus: status, DealID: "deal-1", Level: 2000}
		if status != dealAccepted {
			resp.Reason = "MARKET_CLOSED"
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))

	mux.HandleFunc("GET /api/v1/marketnavigation", authed(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"nodes":[
			{"id":"hierarchy_v1.commodities","name":"Commodities"},
			{"id":"hierarchy_v1.most_traded","name":"Most traded"},
			{"id":"hierarchy_v1.currencies","name":"Forex"},
			{"id":"hierarchy_v1.indices","name":"Indices"}
		]}`))
	}))
	mux.HandleFunc("GET /api/v1/marketnavigation/{nodeId}", authed(func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("nodeId") != "hierarchy_v1.commodities" || r.URL.Query().Get("limit") == "" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errorCode":"error.not-found.nodeId"}`))
			return
		}
		_, _ = w.Write([]byte(`{
			"nodes":[{"id":"hierarchy_v1.commodities.metals","name":"Metals"}],
			"markets":[{"epic":"GOLD","instrumentName":"Gold","instrumentType":"COMMODITIES","marketStatus":"TRADEABLE","bid":2650.1,"offer":2650.5,"percentageChange":0.4567}]
		}`))
	}))
	mux.HandleFunc("GET /api/v1/markets/{epic}", authed(func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("epic") != "GOLD" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errorCode":"error.not-found.epic"}`))
			return
		}
		_, _ = w.Write([]byte(`{"instrument":{"epic":"GOLD","name":"Gold","type":"COMMODITIES"},"snapshot":{"marketStatus":"TRADEABLE","bid":2650.1,"offer":2650.5,"percentageChange":-1.234}}`))
	}))
	mux.HandleFunc("GET /api/v1/accounts", authed(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"accounts":[
			{"accountId":"acc-1","accountName":"USD","status":"ENABLED","accountType":"CFD","preferred":true,"currency":"USD","balance":{"balance":1000,"available":900,"profitLoss":-5}},
			{"accountId":"acc-2","accountName":"EUR","status":"ENABLED","accountType":"CFD","currency":"EUR","balance":{"balance":500,"available":500}}
		]}`))
	}))
	mux.HandleFunc("GET /api/v1/session", authed(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(sessionInfoResponse{ClientID: "client", AccountID: f.account})
	}))
	mux.HandleFunc("PUT /api/v1/session", authed(func(w http.ResponseWriter, r *http.Request) {
		var req switchAccountRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.switches = append(f.switches, req.AccountID)
		if req.AccountID == f.account {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"errorCode":"` + codeSameAccount + `"}`))
			return
		}
		if req.AccountID != "acc-1" && req.AccountID != "acc-2" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"errorCode":"error.invalid.accountId"}`))
			return
		}
		f.account = req.AccountID
		_, _ = w.Write([]byte(`{"dealingEnabled":true}`))
	}))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := NewClient(Config{
		BaseURL:    srv.URL,
		APIKey:     "key",
		Identifier: "me@example.com",
		Password:   "pw",
		DealSize:   1,
	}, zaptest.NewLogger(t))
	return f, c
}

func TestGetHistoricalPrices_SortedBid(t *testing.T) {
	f, c := newFakeCapital(t)
	f.prices = `{"prices":[
		{"snapshotTimeUTC":"2025-01-01T10:10:00","openPrice":{"bid":3,"ask":3.1},"closePrice":{"bid":3.5,"ask":3.6},"highPrice":{"bid":4,"ask":4.1},"lowPrice":{"bid":2,"ask":2.1}},
		{"snapshotTimeUTC":"2025-01-01T10:00:00","openPrice":{"bid":1,"ask":1.1},"closePrice":{"bid":1.5,"ask":1.6},"highPrice":{"bid":2,"ask":2.1},"lowPrice":{"bid":0.5,"ask":0.6}},
		{"snapshotTimeUTC":"2025-01-01T10:05:00","openPrice":{"bid":2,"ask":2.1},"closePrice":{"bid":2.5,"ask":2.6},"highPrice":{"bid":3,"ask":3.1},"lowPrice":{"bid":1.5,"ask":1.6}}
	]}`

	bars, err := c.GetHistoricalPrices(context.Background(), "GOLD", "5m", 3)
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.Equal(t, []float64{1.5, 2.5, 3.5}, models.Closes(bars))
	assert.Less(t, bars[0].Timestamp, bars[1].Timestamp)
	assert.Equal(t, int64(1735725600000), bars[0].Timestamp)
	assert.Equal(t, 2.0, bars[0].High)
	assert.Equal(t, 1, f.logins)
}

func TestGetHistoricalPrices_Empty(t *testing.T) {
	f, c := newFakeCapital(t)
	f.prices = `{"prices":[]}`

	_, err := c.GetHistoricalPrices(context.Background(), "GOLD", "MINUTE_5", 100)
	assert.Error(t, err)
}

func TestGetHistoricalPrices_APIError(t *testing.T) {
	_, c := newFakeCapital(t)

	_, err := c.GetHistoricalPrices(context.Background(), "GOLD", "DAY", 100)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "error.invalid.resolution", apiErr.Code)
}

func TestOpenPosition(t *testing.T) {
	f, c := newFakeCapital(t)

	require.NoError(t, c.OpenPosition(context.Background(), "GOLD", models.PositionShort))
	require.Len(t, f.opened, 1)
	assert.Equal(t, openPositionRequest{Epic: "GOLD", Direction: "SELL", Size: 1}, f.opened[0])
}

func TestOpenPosition_Rejected(t *testing.T) {
	f, c := newFakeCapital(t)
	f.dealStatus = "REJECTED"

	err := c.OpenPosition(context.Background(), "GOLD", models.PositionLong)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRejected))
	assert.Contains(t, err.Error(), "MARKET_CLOSED")
}

func TestOpenPosition_NoneDirection(t *testing.T) {
	f, c := newFakeCapital(t)

	assert.Error(t, c.OpenPosition(context.Background(), "GOLD", models.PositionNone))
	assert.Zero(t, f.calls)
	assert.Zero(t, f.logins)
}

func TestClosePosition_OnlyMatchingEpic(t *testing.T) {
	f, c := newFakeCapital(t)
	f.positions = `{"positions":[
		{"position":{"dealId":"a","direction":"BUY","size":1},"market":{"epic":"GOLD"}},
		{"position":{"dealId":"b","direction":"BUY","size":1},"market":{"epic":"US500"}},
		{"position":{"dealId":"c","direction":"SELL","size":2},"market":{"epic":"GOLD"}}
	]}`

	require.NoError(t, c.ClosePosition(context.Background(), "GOLD"))
	assert.Equal(t, []string{"a", "c"}, f.deleted)
}

func TestClosePosition_NothingOpen(t *testing.T) {
	f, c := newFakeCapital(t)

	require.NoError(t, c.ClosePosition(context.Background(), "GOLD"))
	assert.Empty(t, f.deleted)
}

func TestReloginOnUnauthorized(t *testing.T) {
	f, c := newFakeCapital(t)
	f.prices = `{"prices":[{"snapshotTimeUTC":"2025-01-01T10:00:00","closePrice":{"bid":1}}]}`

	_, err := c.GetHistoricalPrices(context.Background(), "GOLD", "MINUTE_5", 1)
	require.NoError(t, err)
	require.Equal(t, 1, f.logins)

	f.mu.Lock()
	f.expireNext = true
	f.mu.Unlock()

	_, err = c.GetHistoricalPrices(context.Background(), "GOLD", "MINUTE_5", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, f.logins)
}

func TestLoginFailure(t *testing.T) {
	_, c := newFakeCapital(t)
	c.cfg.APIKey = "wrong"

	_, err := c.GetHistoricalPrices(context.Background(), "GOLD", "MINUTE_5", 1)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, sessionPath, apiErr.Path)
}

func TestMarketCategories_OnlyTradingNodes(t *testing.T) {
	_, c := newFakeCapital(t)

	cats, err := c.MarketCategories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Category{
		{ID: "hierarchy_v1.commodities", Name: "Commodities"},
		{ID: "hierarchy_v1.currencies", Name: "Forex"},
		{ID: "hierarchy_v1.indices", Name: "Indices"},
	}, cats)
}

func TestMarkets(t *testing.T) {
	_, c := newFakeCapital(t)

	l, err := c.Markets(context.Background(), "hierarchy_v1.commodities")
	require.NoError(t, err)
	assert.Equal(t, []Category{{ID: "hierarchy_v1.commodities.metals", Name: "Metals"}}, l.Nodes)
	require.Len(t, l.Markets, 1)
	assert.Equal(t, Market{
		Epic: "GOLD", Name: "Gold", Type: "COMMODITIES", Status: "TRADEABLE",
		Bid: 2650.1, Offer: 2650.5, PercentageChange: 0.46,
	}, l.Markets[0])

	_, err = c.Markets(context.Background(), "nope")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)

	_, err = c.Markets(context.Background(), " ")
	assert.Error(t, err)
}

func TestMarket(t *testing.T) {
	_, c := newFakeCapital(t)

	m, err := c.Market(context.Background(), "GOLD")
	require.NoError(t, err)
	assert.Equal(t, "Gold", m.Name)
	assert.Equal(t, 2650.5, m.Offer)
	assert.Equal(t, -1.23, m.PercentageChange)

	_, err = c.Market(context.Background(), "NOPE")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "error.not-found.epic", apiErr.Code)
}

func TestAccounts_MarksCurrent(t *testing.T) {
	_, c := newFakeCapital(t)

	accs, err := c.Accounts(context.Background())
	require.NoError(t, err)
	require.Len(t, accs, 2)
	assert.Equal(t, "acc-1", accs[0].ID)
	assert.True(t, accs[0].Current)
	assert.True(t, accs[0].Preferred)
	assert.Equal(t, 900.0, accs[0].Available)
	assert.False(t, accs[1].Current)

	require.NoError(t, c.SwitchAccount(context.Background(), "acc-2"))
	accs, err = c.Accounts(context.Background())
	require.NoError(t, err)
	assert.False(t, accs[0].Current)
	assert.True(t, accs[1].Current)
}

func TestSwitchAccount(t *testing.T) {
	f, c := newFakeCapital(t)
	ctx := context.Background()

	// уже активный счёт - не ошибка
	require.NoError(t, c.SwitchAccount(ctx, "acc-1"))
	require.NoError(t, c.SwitchAccount(ctx, "acc-2"))
	assert.Equal(t, "acc-2", f.account)

	err := c.SwitchAccount(ctx, "acc-9")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "error.invalid.accountId", apiErr.Code)

	assert.Error(t, c.SwitchAccount(ctx, ""))
}

func TestSwitchAccount_SurvivesRelogin(t *testing.T) {
	f, c := newFakeCapital(t)
	ctx := context.Background()

	require.NoError(t, c.SwitchAccount(ctx, "acc-2"))
	require.Equal(t, 1, f.logins)

	f.mu.Lock()
	f.expireNext = true
	f.mu.Unlock()

	_, err := c.Positions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, f.logins)
	assert.Equal(t, "acc-2", f.account, "new session must land on the selected account")
	assert.Equal(t, []string{"acc-2", "acc-2"}, f.switches)
}

func TestPositionOf(t *testing.T) {
	f, c := newFakeCapital(t)
	f.positions = `{"positions":[
		{"position":{"dealId":"a","direction":"SELL","size":1},"market":{"epic":"GOLD"}},
		{"position":{"dealId":"b","direction":"BUY","size":1},"market":{"epic":"US500"}}
	]}`

	pos, err := c.PositionOf(context.Background(), "GOLD")
	require.NoError(t, err)
	assert.Equal(t, models.PositionShort, pos)

	pos, err = c.PositionOf(context.Background(), "OIL_CRUDE")
	require.NoError(t, err)
	assert.Equal(t, models.PositionNone, pos)
}

func TestEnvironment(t *testing.T) {
	assert.Equal(t, "Demo", NewClient(Config{BaseURL: "https://demo-api-capital.backend-capital.com"}, nil).Environment())
	assert.Equal(t, "Live", NewClient(Config{BaseURL: "https://api-capital.backend-capital.com"}, nil).Environment())
}
