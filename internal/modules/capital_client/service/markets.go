package service

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"rsi_bot/internal/helper"
)

const (
	navigationPath = "/api/v1/marketnavigation"

	// сколько рынков просим у узла навигации за раз
	marketsLimit = 100
)

// корневые узлы, которые вообще имеет смысл показывать оператору
var relevantCategories = []string{
	"commodit", "forex", "currencies", "indices", "index", "etf", "shares",
}

func relevantCategory(name string) bool {
	n := strings.ToLower(name)
	for _, c := range relevantCategories {
		if strings.Contains(n, c) {
			return true
		}
	}
	return false
}

// MarketCategories - корневые узлы навигации, только торговые категории.
func (c *Client) MarketCategories(ctx context.Context) ([]Category, error) {
	var r navigationResponse
	if err := c.do(ctx, http.MethodGet, navigationPath, nil, &r); err != nil {
		return nil, errors.Wrap(err, "capital market categories")
	}
	out := make([]Category, 0, len(r.Nodes))
	for _, n := range r.Nodes {
		if relevantCategory(n.Name) {
			out = append(out, Category{ID: n.ID, Name: n.Name})
		}
	}
	return out, nil
}

// Markets - подкатегории и рынки узла навигации с котировками.
func (c *Client) Markets(ctx context.Context, nodeID string) (Listing, error) {
	nodeID = strings.TrimSpace(nodeID)
	if nodeID == "" {
		return Listing{}, errors.New("capital markets: empty node id")
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(marketsLimit))
	path := navigationPath + "/" + url.PathEscape(nodeID) + "?" + q.Encode()

	var r navigationResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &r); err != nil {
		return Listing{}, errors.Wrapf(err, "capital markets %s", nodeID)
	}

	l := Listing{
		Nodes:   make([]Category, 0, len(r.Nodes)),
		Markets: make([]Market, 0, len(r.Markets)),
	}
	for _, n := range r.Nodes {
		l.Nodes = append(l.Nodes, Category{ID: n.ID, Name: n.Name})
	}
	for _, m := range r.Markets {
		l.Markets = append(l.Markets, Market{
			Epic:             m.Epic,
			Name:             m.InstrumentName,
			Type:             m.InstrumentType,
			Status:           m.MarketStatus,
			Bid:              m.Bid,
			Offer:            m.Offer,
			PercentageChange: helper.Round(m.PercentageChange, 2),
		})
	}
	return l, nil
}

// Market - снимок одного рынка. Заодно проверка, что epic существует.
func (c *Client) Market(ctx context.Context, epic string) (Market, error) {
	epic = strings.TrimSpace(epic)
	if epic == "" {
		return Market{}, errors.New("capital market: empty epic")
	}
	var r marketDetailsResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/markets/"+url.PathEscape(epic), nil, &r); err != nil {
		return Market{}, errors.Wrapf(err, "capital market %s", epic)
	}
	m := Market{
		Epic:             r.Instrument.Epic,
		Name:             r.Instrument.Name,
		Type:             r.Instrument.Type,
		Status:           r.Snapshot.MarketStatus,
		Bid:              r.Snapshot.Bid,
		Offer:            r.Snapshot.Offer,
		PercentageChange: helper.Round(r.Snapshot.PercentageChange, 2),
	}
	if m.Epic == "" {
		m.Epic = epic
	}
	return m, nil
}
