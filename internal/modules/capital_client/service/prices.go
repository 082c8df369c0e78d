package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/pkg/errors"

	"rsi_bot/internal/helper"
	"rsi_bot/internal/models"
)

const snapshotLayout = "2006-01-02T15:04:05"

// GetHistoricalPrices - свечи по bid, oldest -> newest.
// Пустой ответ считается ошибкой: стратегии не на чем считать.
func (c *Client) GetHistoricalPrices(ctx context.Context, epic, resolution string, maxBars int) ([]models.PriceBar, error) {
	if epic == "" {
		return nil, errors.New("capital prices: empty epic")
	}
	q := url.Values{}
	q.Set("resolution", helper.NormResolution(resolution))
	if maxBars > 0 {
		q.Set("max", fmt.Sprint(maxBars))
	}
	path := "/api/v1/prices/" + url.PathEscape(epic) + "?" + q.Encode()

	var r pricesResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &r); err != nil {
		return nil, err
	}
	if len(r.Prices) == 0 {
		return nil, errors.Errorf("capital prices %s: no data", epic)
	}

	out := make([]models.PriceBar, 0, len(r.Prices))
	for _, p := range r.Prices {
		ts := p.SnapshotTimeUTC
		if ts == "" {
			ts = p.SnapshotTime
		}
		t, err := time.ParseInLocation(snapshotLayout, ts, time.UTC)
		if err != nil {
			return nil, errors.Wrapf(err, "capital prices %s: bad snapshot time %q", epic, ts)
		}
		out = append(out, models.PriceBar{
			Timestamp: t.UnixMilli(),
			Open:      p.OpenPrice.Bid,
			High:      p.HighPrice.Bid,
			Low:       p.LowPrice.Bid,
			Close:     p.ClosePrice.Bid,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}
