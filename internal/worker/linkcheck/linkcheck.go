// Package linkcheck は商品購入リンクの死活確認処理を提供する。
package linkcheck

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/hitoshi/giftman/internal/metrics"
	"github.com/hitoshi/giftman/internal/model"
	"github.com/hitoshi/giftman/internal/repository"
	"github.com/hitoshi/giftman/internal/security"
)

// CheckerConfig はリンク確認ジョブの設定パラメータ。
// 環境変数から設定可能。
type CheckerConfig struct {
	// Interval はジョブの実行間隔（デフォルト: 6時間）。
	Interval time.Duration
	// TTL は確認結果の再確認間隔（デフォルト: 24時間）。
	TTL time.Duration
	// Timeout は1リンクあたりのHTTPタイムアウト（デフォルト: 10秒）。
	Timeout time.Duration
	// MaxResponseSize はレスポンスボディの最大読み取りサイズ（デフォルト: 1MiB）。
	MaxResponseSize int64
	// MaxPerCycle は1サイクルあたりの最大確認件数（デフォルト: 200）。
	MaxPerCycle int
}

// DefaultCheckerConfig はデフォルトのリンク確認設定を返す。
func DefaultCheckerConfig() CheckerConfig {
	return CheckerConfig{
		Interval:        6 * time.Hour,
		TTL:             24 * time.Hour,
		Timeout:         10 * time.Second,
		MaxResponseSize: 1 << 20,
		MaxPerCycle:     200,
	}
}

// Checker は商品購入リンクの死活確認ジョブ。
// 未確認またはTTLを超過した商品を対象に、SSRF防止付きHTTPクライアントで
// リンクの到達性を確認し、在庫フラグと確認日時を更新する。
type Checker struct {
	productRepo       repository.LinkCheckProductRepository
	httpClient        *http.Client
	collector         metrics.MetricsCollector
	logger            *slog.Logger
	config            CheckerConfig
	consecutiveErrors int
	backoffUntil      time.Time
}

// NewChecker はCheckerの新しいインスタンスを生成する。
func NewChecker(
	productRepo repository.LinkCheckProductRepository,
	ssrfGuard security.SSRFGuardService,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	config CheckerConfig,
) *Checker {
	return &Checker{
		productRepo: productRepo,
		httpClient:  ssrfGuard.NewSafeClient(config.Timeout, config.MaxResponseSize),
		collector:   collector,
		logger:      logger,
		config:      config,
	}
}

// Start はリンク確認ジョブをティッカーで定期実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (c *Checker) Start(ctx context.Context) {
	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	c.logger.Info("リンク確認ジョブを開始しました",
		slog.Duration("interval", c.config.Interval),
		slog.Duration("ttl", c.config.TTL),
		slog.Int("max_per_cycle", c.config.MaxPerCycle),
	)

	// 起動直後に1回実行
	if err := c.RunOnce(ctx); err != nil {
		c.logger.Error("リンク確認サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("リンク確認ジョブを停止しました")
			return
		case <-ticker.C:
			if err := c.RunOnce(ctx); err != nil {
				c.logger.Error("リンク確認サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は1回の確認サイクルを実行する。
// 確認対象の商品を取得し、順次リンクの到達性を確認して在庫フラグを更新する。
func (c *Checker) RunOnce(ctx context.Context) error {
	start := time.Now()

	// バックオフ中の場合はスキップ
	if !c.backoffUntil.IsZero() && time.Now().Before(c.backoffUntil) {
		c.logger.Info("リンク確認ジョブはバックオフ中のためスキップします",
			slog.Time("backoff_until", c.backoffUntil),
		)
		return nil
	}

	products, err := c.productRepo.ListNeedingLinkCheck(ctx, c.config.TTL, c.config.MaxPerCycle)
	if err != nil {
		return fmt.Errorf("リンク確認対象商品の取得に失敗しました: %w", err)
	}

	if len(products) == 0 {
		c.logger.Info("リンク確認対象の商品はありません")
		return nil
	}

	c.logger.Info("リンク確認サイクルを開始します",
		slog.Int("target_products", len(products)),
	)

	var checkedCount, unreachableCount int
	var hadError bool

	for _, product := range products {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		result := c.checkLink(ctx, product)
		checkedCount++

		if result.reachable {
			c.collector.RecordLinkCheckSuccess()
			if result.title != "" {
				c.logger.Debug("購入リンクのページタイトルを取得しました",
					slog.String("product_id", product.ID),
					slog.String("page_title", result.title),
				)
			}
		} else {
			unreachableCount++
			hadError = true
			c.collector.RecordLinkCheckFailure(result.reason)
			c.logger.Warn("購入リンクに到達できませんでした",
				slog.String("product_id", product.ID),
				slog.String("purchase_link", product.PurchaseLink),
				slog.String("reason", result.reason),
			)
		}

		now := time.Now()
		if result.discontinued {
			c.logger.Info("商品を販売終了として記録します",
				slog.String("product_id", product.ID),
				slog.String("reason", result.reason),
			)
			if err := c.productRepo.MarkDiscontinued(ctx, product.ID, now); err != nil {
				c.logger.Error("販売終了状態の更新に失敗しました",
					slog.String("product_id", product.ID),
					slog.String("error", err.Error()),
				)
			}
			continue
		}
		if err := c.productRepo.UpdateLinkState(ctx, product.ID, result.reachable, now); err != nil {
			c.logger.Error("リンク確認結果の更新に失敗しました",
				slog.String("product_id", product.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	// 全件失敗した場合のみバックオフを適用する（ネットワーク全体の障害とみなす）
	if hadError && unreachableCount == checkedCount {
		c.consecutiveErrors++
		backoff := c.calculateErrorBackoff(c.consecutiveErrors)
		if backoff > 0 {
			c.backoffUntil = time.Now().Add(backoff)
			c.logger.Warn("連続エラーによりバックオフを適用します",
				slog.Int("consecutive_errors", c.consecutiveErrors),
				slog.Duration("backoff_duration", backoff),
			)
		}
	} else {
		c.consecutiveErrors = 0
		c.backoffUntil = time.Time{}
	}

	duration := time.Since(start)
	c.logger.Info("リンク確認サイクルが完了しました",
		slog.Int("checked", checkedCount),
		slog.Int("unreachable", unreachableCount),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// linkResult は1リンクの確認結果。
type linkResult struct {
	reachable    bool
	discontinued bool
	reason       string
	title        string
}

// checkLink はリンクの到達性を確認する。
// HEADを試し、許可されない場合（405等）はGETにフォールバックする。
// 2xx/3xxを到達可能、404/410を販売終了とみなす。
func (c *Checker) checkLink(ctx context.Context, product *model.Product) linkResult {
	reqCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	status, title, err := c.request(reqCtx, http.MethodHead, product.PurchaseLink)
	if err != nil {
		return linkResult{reason: "network"}
	}

	if status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented {
		status, title, err = c.request(reqCtx, http.MethodGet, product.PurchaseLink)
		if err != nil {
			return linkResult{reason: "network"}
		}
	}

	switch {
	case status >= 200 && status < 400:
		return linkResult{reachable: true, title: title}
	case status == http.StatusNotFound || status == http.StatusGone:
		return linkResult{discontinued: true, reason: fmt.Sprintf("http_%d", status)}
	default:
		return linkResult{reason: fmt.Sprintf("http_%d", status)}
	}
}

// request はリクエストを送信してステータスコードを返す。
// GETで成功したHTMLレスポンスからはページタイトルを抽出する。
// ボディは最大サイズまで読み切って接続を再利用可能にする。
func (c *Checker) request(ctx context.Context, method, url string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("User-Agent", "giftman-linkcheck/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, c.config.MaxResponseSize)

	var title string
	if method == http.MethodGet && resp.StatusCode >= 200 && resp.StatusCode < 300 &&
		strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		title = extractTitle(body)
	}
	io.Copy(io.Discard, body)
	return resp.StatusCode, title, nil
}

// extractTitle はHTMLから最初のtitle要素のテキストを取り出す。
// 見つからない場合やパースできない場合は空文字を返す。
func extractTitle(r io.Reader) string {
	tokenizer := html.NewTokenizer(r)
	inTitle := false
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			inTitle = string(name) == "title"
		case html.TextToken:
			if inTitle {
				return strings.TrimSpace(string(tokenizer.Text()))
			}
		case html.EndTagToken:
			inTitle = false
		}
	}
}

// calculateErrorBackoff は連続エラー回数に基づくバックオフ時間を計算する。
// 3回連続: 30分、5回連続: 1時間、10回連続: 6時間。
func (c *Checker) calculateErrorBackoff(consecutiveErrors int) time.Duration {
	switch {
	case consecutiveErrors >= 10:
		return 6 * time.Hour
	case consecutiveErrors >= 5:
		return 1 * time.Hour
	case consecutiveErrors >= 3:
		return 30 * time.Minute
	default:
		return 0
	}
}
