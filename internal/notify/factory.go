package notify

import (
	"context"

	"github.com/pv/precog-panel/internal/config"
	"github.com/pv/precog-panel/internal/logger"
)

// OpenSinks создаёт внешних получателей из конфигурации.
// Получатель, который не удалось подключить, пропускается с предупреждением.
// closeAll закрывает все открытые соединения.
func OpenSinks(ctx context.Context, cfg *config.SinksConfig) (sinks []Sink, closeAll func()) {
	var closers []func()
	closeAll = func() {
		for _, c := range closers {
			c()
		}
	}
	if cfg == nil {
		return nil, closeAll
	}

	if cfg.Webhook != nil && cfg.Webhook.URL != "" {
		sinks = append(sinks, NewWebhookSink(cfg.Webhook))
		logger.Info("Alert sink enabled", "sink", "webhook", "url", cfg.Webhook.URL)
	}

	if cfg.MQTT != nil && cfg.MQTT.Broker != "" {
		s, err := NewMQTTSink(cfg.MQTT)
		if err != nil {
			logger.Warn("MQTT sink disabled", "broker", cfg.MQTT.Broker, "error", err)
		} else {
			sinks = append(sinks, s)
			closers = append(closers, s.Close)
			logger.Info("Alert sink enabled", "sink", "mqtt", "broker", cfg.MQTT.Broker, "topic", cfg.MQTT.GetTopic())
		}
	}

	if cfg.Redis != nil && cfg.Redis.Addr != "" {
		s, err := NewRedisSink(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("Redis sink disabled", "addr", cfg.Redis.Addr, "error", err)
		} else {
			sinks = append(sinks, s)
			closers = append(closers, func() { _ = s.Close() })
			logger.Info("Alert sink enabled", "sink", "redis", "stream", cfg.Redis.GetStream())
		}
	}

	if cfg.Journal != nil && cfg.Journal.URL != "" {
		s, err := NewJournalSink(ctx, cfg.Journal.URL)
		if err != nil {
			logger.Warn("Journal sink disabled", "error", err)
		} else {
			sinks = append(sinks, s)
			closers = append(closers, func() { _ = s.Close() })
			logger.Info("Alert sink enabled", "sink", "journal", "table", s.database+"."+s.table)
		}
	}

	return sinks, closeAll
}
