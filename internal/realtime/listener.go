package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

// productChannel はPostgresトリガーが配信するNOTIFYチャネル名。
const productChannel = "product_changes"

const (
	listenerMinReconnect = 10 * time.Second
	listenerMaxReconnect = time.Minute
	// pingInterval は接続の死活確認の間隔。
	pingInterval = 90 * time.Second
)

// Listener はPostgresのLISTEN/NOTIFYを受信してHubへ流す。
type Listener struct {
	databaseURL string
	hub         *Hub
	logger      *slog.Logger
}

// NewListener はListenerの新しいインスタンスを生成する。
func NewListener(databaseURL string, hub *Hub, logger *slog.Logger) *Listener {
	return &Listener{
		databaseURL: databaseURL,
		hub:         hub,
		logger:      logger,
	}
}

// Run は通知の受信ループを開始し、ctxキャンセルまでブロックする。
// 接続断はpq.Listenerが自動再接続する。
func (l *Listener) Run(ctx context.Context) error {
	listener := pq.NewListener(l.databaseURL, listenerMinReconnect, listenerMaxReconnect,
		func(event pq.ListenerEventType, err error) {
			if err != nil {
				l.logger.Error("listener connection event",
					slog.Int("event", int(event)),
					slog.String("error", err.Error()))
			}
		})
	defer listener.Close()

	if err := listener.Listen(productChannel); err != nil {
		return err
	}
	l.logger.Info("listening for product changes", slog.String("channel", productChannel))

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case notification := <-listener.Notify:
			// 再接続直後はnilが届く
			if notification == nil {
				continue
			}
			l.dispatch(notification.Extra)

		case <-ticker.C:
			if err := listener.Ping(); err != nil {
				l.logger.Error("listener ping failed", slog.String("error", err.Error()))
			}
		}
	}
}

// dispatch は通知ペイロードをパースしてHubへ配信する。
func (l *Listener) dispatch(payload string) {
	var event Event
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		l.logger.Warn("invalid notification payload",
			slog.String("payload", payload),
			slog.String("error", err.Error()))
		return
	}
	l.hub.Publish(event)
	l.logger.Debug("product change published",
		slog.String("op", event.Op),
		slog.String("id", event.ID))
}
