package capital_client

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"rsi_bot/internal/modules/capital_client/service"
	"rsi_bot/internal/modules/config"
)

func NewClient(cfg *config.Config, log *zap.Logger) *service.Client {
	if cfg.Broker.APIKey == "" {
		log.Warn("broker.api_key is empty, every broker call will fail until it is set")
	}
	return service.NewClient(service.Config{
		BaseURL:    cfg.Broker.BaseURL,
		APIKey:     cfg.Broker.APIKey,
		Identifier: cfg.Broker.Identifier,
		Password:   cfg.Broker.Password,
		DealSize:   cfg.Broker.DealSize,
		Timeout:    cfg.Broker.Timeout,
		RatePerSec: cfg.Broker.RatePerSec,
	}, log)
}

func Module() fx.Option {
	return fx.Module("capital_client",
		fx.Provide(NewClient),
	)
}
