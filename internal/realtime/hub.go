// Package realtime は商品変更のリアルタイム配信を提供する。
// PostgresのLISTEN/NOTIFYを受信し、SSE経由で購読者へファンアウトする。
package realtime

import (
	"sync"
)

// Event は商品変更イベントを表す。
// Postgresトリガーが配信するJSONペイロードと同じ形。
type Event struct {
	Op string `json:"op"` // INSERT / UPDATE / DELETE
	ID string `json:"id"`
}

// subscriberBuffer は購読者チャネルのバッファ長。
// 消費が追いつかない購読者へのイベントは破棄する。
const subscriberBuffer = 16

// Hub は商品変更イベントを購読者へファンアウトする。
type Hub struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
	closed      bool
}

// NewHub はHubの新しいインスタンスを生成する。
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[chan Event]struct{}),
	}
}

// Subscribe は購読を開始し、イベントチャネルと購読解除関数を返す。
// Hubがクローズ済みの場合、返されるチャネルは既にクローズされている。
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			h.mu.Lock()
			if _, ok := h.subscribers[ch]; ok {
				delete(h.subscribers, ch)
				close(ch)
			}
			h.mu.Unlock()
		})
	}
	return ch, unsubscribe
}

// Publish は全購読者へイベントを配信する。
// バッファが満杯の購読者はスキップする（遅い購読者が配信を止めない）。
func (h *Hub) Publish(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return
	}
	for ch := range h.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// SubscriberCount は現在の購読者数を返す。
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Close は全購読者のチャネルをクローズし、以降の購読と配信を無効化する。
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, ch)
	}
}
