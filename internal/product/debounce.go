package product

import (
	"context"
	"sync"
	"time"
)

// Debouncer はキーごとに呼び出しを間引く。
// 同一キーへの連続した呼び出しは待機ウィンドウをリセットし、
// ウィンドウ満了時に最後の値で1回だけ実行される。
// AI検索拡張のように入力のたびに呼ぶと高コストな処理の前段に置く。
type Debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	pending map[string]*pendingCall
}

type pendingCall struct {
	timer *time.Timer
	value string
	fn    func(ctx context.Context, value string)
}

// NewDebouncer はDebouncerの新しいインスタンスを生成する。
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay:   delay,
		pending: make(map[string]*pendingCall),
	}
}

// Trigger はキーに対する実行を予約する。
// ウィンドウ内に同じキーで再度呼ばれた場合、値と処理を差し替えてウィンドウをリセットする。
// fnはウィンドウ満了後に別ゴルーチンで実行される。
func (d *Debouncer) Trigger(ctx context.Context, key, value string, fn func(ctx context.Context, value string)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if call, ok := d.pending[key]; ok {
		call.timer.Stop()
		call.value = value
		call.fn = fn
		call.timer.Reset(d.delay)
		return
	}

	call := &pendingCall{value: value, fn: fn}
	call.timer = time.AfterFunc(d.delay, func() {
		d.fire(ctx, key)
	})
	d.pending[key] = call
}

// Cancel はキーに対する予約を取り消す。
func (d *Debouncer) Cancel(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if call, ok := d.pending[key]; ok {
		call.timer.Stop()
		delete(d.pending, key)
	}
}

// Flush はキーに対する予約を待たずに即時実行する。
func (d *Debouncer) Flush(ctx context.Context, key string) {
	d.mu.Lock()
	call, ok := d.pending[key]
	if ok {
		call.timer.Stop()
	}
	d.mu.Unlock()

	if ok {
		d.fire(ctx, key)
	}
}

func (d *Debouncer) fire(ctx context.Context, key string) {
	d.mu.Lock()
	call, ok := d.pending[key]
	if ok {
		delete(d.pending, key)
	}
	d.mu.Unlock()

	if !ok || call.fn == nil {
		return
	}
	if ctx.Err() != nil {
		return
	}
	call.fn(ctx, call.value)
}
