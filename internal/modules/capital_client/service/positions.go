package service

import (
	"context"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"rsi_bot/internal/helper"
	"rsi_bot/internal/models"
)

const dealAccepted = "ACCEPTED"

// OpenPosition открывает рыночную позицию фиксированного объёма.
// Успех только когда confirm вернул ACCEPTED.
func (c *Client) OpenPosition(ctx context.Context, epic string, direction models.Position) error {
	side := direction.Side()
	if side == models.SideNone {
		return errors.Errorf("capital open %s: unsupported direction %q", epic, direction)
	}
	if c.cfg.DealSize <= 0 {
		return errors.Errorf("capital open %s: deal size <= 0", epic)
	}

	var ref dealReferenceResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/positions", openPositionRequest{
		Epic:      epic,
		Direction: string(side),
		Size:      c.cfg.DealSize,
	}, &ref)
	if err != nil {
		return errors.Wrapf(err, "capital open %s %s", side, epic)
	}

	conf, err := c.confirm(ctx, ref.DealReference)
	if err != nil {
		return errors.Wrapf(err, "capital open %s %s", side, epic)
	}
	c.log.Info("position opened",
		zap.String("epic", epic), zap.String("direction", string(side)),
		zap.String("size", helper.FormatSize(c.cfg.DealSize)),
		zap.String("dealId", conf.DealID), zap.Float64("level", conf.Level))
	return nil
}

// ClosePosition закрывает все открытые позиции по epic. Нечего закрывать - тоже успех.
func (c *Client) ClosePosition(ctx context.Context, epic string) error {
	open, err := c.Positions(ctx)
	if err != nil {
		return errors.Wrapf(err, "capital close %s", epic)
	}

	closed := 0
	for _, p := range open {
		if p.Epic != epic {
			continue
		}
		var ref dealReferenceResponse
		if err := c.do(ctx, http.MethodDelete, "/api/v1/positions/"+url.PathEscape(p.DealID), nil, &ref); err != nil {
			return errors.Wrapf(err, "capital close %s deal %s", epic, p.DealID)
		}
		if ref.DealReference != "" {
			if _, err := c.confirm(ctx, ref.DealReference); err != nil {
				return errors.Wrapf(err, "capital close %s deal %s", epic, p.DealID)
			}
		}
		closed++
	}

	if closed == 0 {
		c.log.Info("nothing to close", zap.String("epic", epic))
		return nil
	}
	c.log.Info("positions closed", zap.String("epic", epic), zap.Int("count", closed))
	return nil
}

// Positions - открытые позиции на счёте.
func (c *Client) Positions(ctx context.Context) ([]OpenPosition, error) {
	var r positionsResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/positions", nil, &r); err != nil {
		return nil, err
	}
	out := make([]OpenPosition, 0, len(r.Positions))
	for _, p := range r.Positions {
		out = append(out, OpenPosition{
			DealID:    p.Position.DealID,
			Epic:      p.Market.Epic,
			Direction: models.ParsePosition(p.Position.Direction),
			Size:      p.Position.Size,
			Level:     p.Position.Level,
		})
	}
	return out, nil
}

// PositionOf - направление открытой позиции по epic у брокера, NONE если её нет.
func (c *Client) PositionOf(ctx context.Context, epic string) (models.Position, error) {
	open, err := c.Positions(ctx)
	if err != nil {
		return models.PositionNone, errors.Wrapf(err, "capital position %s", epic)
	}
	for _, p := range open {
		if p.Epic == epic && p.Direction.IsOpen() {
			return p.Direction, nil
		}
	}
	return models.PositionNone, nil
}

func (c *Client) confirm(ctx context.Context, ref string) (confirmResponse, error) {
	if ref == "" {
		return confirmResponse{}, errors.New("empty deal reference")
	}
	var conf confirmResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/confirms/"+url.PathEscape(ref), nil, &conf); err != nil {
		return conf, err
	}
	if conf.DealStatus != dealAccepted {
		return conf, errors.Wrapf(ErrRejected, "ref %s: status %s reason %s", ref, conf.DealStatus, conf.Reason)
	}
	return conf, nil
}
