package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/giftman/internal/assistant"
	"github.com/hitoshi/giftman/internal/model"
	"github.com/hitoshi/giftman/internal/product"
	"github.com/hitoshi/giftman/internal/realtime"
)

// sseHeartbeatInterval はSSE接続維持のためのコメント送信間隔。
const sseHeartbeatInterval = 25 * time.Second

// ProductServiceInterface は商品ハンドラーが必要とするサービスインターフェース。
type ProductServiceInterface interface {
	Create(ctx context.Context, input product.CreateInput) (*model.Product, error)
	Get(ctx context.Context, productID string) (*model.Product, error)
	List(ctx context.Context, filter model.ProductFilter) ([]*model.Product, error)
	Update(ctx context.Context, productID string, input product.UpdateInput) (*model.Product, error)
	Delete(ctx context.Context, productID string) error
	Bookmark(ctx context.Context, userID, productID string) error
	Unbookmark(ctx context.Context, userID, productID string) error
	ListBookmarks(ctx context.Context, userID string) ([]*model.Product, error)
	Like(ctx context.Context, userID, productID string) error
	Unlike(ctx context.Context, userID, productID string) error
	LikeCount(ctx context.Context, productID string) (int, error)
}

// SearchEnhancer はAI検索拡張のインターフェース。
type SearchEnhancer interface {
	EnhanceSearch(ctx context.Context, query string) (*assistant.SearchEnhancement, error)
}

// enhanceResult はデバウンス済み検索拡張の実行結果。
type enhanceResult struct {
	enhancement *assistant.SearchEnhancement
	err         error
}

// enhanceWaiter は検索拡張の応答待ちリクエストを表す。
// 同一ユーザーの新しいリクエストが来るとsupersededがクローズされる。
type enhanceWaiter struct {
	ch         chan enhanceResult
	superseded chan struct{}
}

// ProductHandler は商品管理のHTTPハンドラー。
type ProductHandler struct {
	service   ProductServiceInterface
	enhancer  SearchEnhancer
	debouncer *product.Debouncer
	hub       *realtime.Hub

	mu      sync.Mutex
	waiters map[string]*enhanceWaiter // key: userID
}

// NewProductHandler はProductHandlerを生成する。
func NewProductHandler(
	service ProductServiceInterface,
	enhancer SearchEnhancer,
	debouncer *product.Debouncer,
	hub *realtime.Hub,
) *ProductHandler {
	return &ProductHandler{
		service:   service,
		enhancer:  enhancer,
		debouncer: debouncer,
		hub:       hub,
		waiters:   make(map[string]*enhanceWaiter),
	}
}

// productRequest は商品登録・更新リクエストのボディ。
type productRequest struct {
	Name         *string  `json:"name"`
	Description  *string  `json:"description"`
	Price        *float64 `json:"price"`
	Category     *string  `json:"category"`
	ImageURL     *string  `json:"image_url"`
	PurchaseLink *string  `json:"purchase_link"`
	InStock      *bool    `json:"in_stock"`
	Status       *string  `json:"status"`
	Priority     *string  `json:"priority"`
}

// enhanceSearchRequest は検索拡張リクエストのボディ。
type enhanceSearchRequest struct {
	Query string `json:"query"`
}

// productResponse は商品情報のAPIレスポンス。
type productResponse struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	Price         float64    `json:"price"`
	Category      string     `json:"category"`
	ImageURL      string     `json:"image_url"`
	PurchaseLink  string     `json:"purchase_link"`
	InStock       bool       `json:"in_stock"`
	Status        string     `json:"status"`
	Priority      string     `json:"priority"`
	LinkCheckedAt *time.Time `json:"link_checked_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// CreateProduct は商品を登録する。
// POST /api/products
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	var req productRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	input := product.CreateInput{}
	if req.Name != nil {
		input.Name = *req.Name
	}
	if req.Description != nil {
		input.Description = *req.Description
	}
	if req.Price != nil {
		input.Price = *req.Price
	}
	if req.Category != nil {
		input.Category = *req.Category
	}
	if req.ImageURL != nil {
		input.ImageURL = *req.ImageURL
	}
	if req.PurchaseLink != nil {
		input.PurchaseLink = *req.PurchaseLink
	}
	if req.Status != nil {
		input.Status = model.ProductStatus(*req.Status)
	}
	if req.Priority != nil {
		input.Priority = model.ProductPriority(*req.Priority)
	}

	created, err := h.service.Create(r.Context(), input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toProductResponse(created))
}

// GetProduct は商品詳細を取得する。
// GET /api/products/:id
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProductResponse(p))
}

// ListProducts は商品一覧を返す。q、category、statusクエリパラメータで絞り込める。
// GET /api/products
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	query := r.URL.Query()
	filter := model.ProductFilter{
		Query:    query.Get("q"),
		Category: query.Get("category"),
	}
	if status := query.Get("status"); status != "" {
		s := model.ProductStatus(status)
		if !s.IsValid() {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidStatusError(status))
			return
		}
		filter.Status = s
	}

	products, err := h.service.List(r.Context(), filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProductResponses(products))
}

// UpdateProduct は商品を部分更新する。
// PUT /api/products/:id
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	var req productRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	input := product.UpdateInput{
		Name:         req.Name,
		Description:  req.Description,
		Price:        req.Price,
		Category:     req.Category,
		ImageURL:     req.ImageURL,
		PurchaseLink: req.PurchaseLink,
		InStock:      req.InStock,
	}
	if req.Status != nil {
		status := model.ProductStatus(*req.Status)
		input.Status = &status
	}
	if req.Priority != nil {
		priority := model.ProductPriority(*req.Priority)
		input.Priority = &priority
	}

	updated, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProductResponse(updated))
}

// DeleteProduct は商品を削除する。
// DELETE /api/products/:id
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// EnhanceSearch は検索語をAIでキーワード・カテゴリへ展開する。
// サーバー側でユーザーごとにデバウンスされ、ウィンドウ内の連続リクエストは
// 最後の1件だけが実行される。追い越されたリクエストは204を返す。
// POST /api/products/search/enhance
func (h *ProductHandler) EnhanceSearch(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	var req enhanceSearchRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Query == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "検索クエリが空です。",
			Category: "validation",
			Action:   "queryフィールドに検索語を指定してください。",
		})
		return
	}

	waiter := &enhanceWaiter{
		ch:         make(chan enhanceResult, 1),
		superseded: make(chan struct{}),
	}

	h.mu.Lock()
	if prev, ok := h.waiters[userID]; ok {
		close(prev.superseded)
	}
	h.waiters[userID] = waiter
	h.mu.Unlock()

	// デバウンス満了はリクエスト完了後に発火しうるため、
	// リクエストのコンテキストには紐付けない。
	h.debouncer.Trigger(context.Background(), userID, req.Query, func(ctx context.Context, value string) {
		enhancement, err := h.enhancer.EnhanceSearch(ctx, value)
		waiter.ch <- enhanceResult{enhancement: enhancement, err: err}

		h.mu.Lock()
		if h.waiters[userID] == waiter {
			delete(h.waiters, userID)
		}
		h.mu.Unlock()
	})

	select {
	case result := <-waiter.ch:
		if result.err != nil {
			handleAIError(w, result.err)
			return
		}
		writeJSON(w, http.StatusOK, result.enhancement)
	case <-waiter.superseded:
		w.WriteHeader(http.StatusNoContent)
	case <-r.Context().Done():
	}
}

// ProductEvents は商品変更イベントをServer-Sent Eventsで配信する。
// イベントはPostgresのLISTEN/NOTIFYから中継される。
// GET /api/products/events
func (h *ProductHandler) ProductEvents(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
			Code:     "INTERNAL_ERROR",
			Message:  "ストリーミングに対応していない接続です。",
			Category: "system",
			Action:   "しばらく待ってから再度お試しください。",
		})
		return
	}

	events, unsubscribe := h.hub.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}

// BookmarkProduct は商品をブックマークする。冪等。
// PUT /api/products/:id/bookmark
func (h *ProductHandler) BookmarkProduct(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	if err := h.service.Bookmark(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UnbookmarkProduct は商品のブックマークを解除する。冪等。
// DELETE /api/products/:id/bookmark
func (h *ProductHandler) UnbookmarkProduct(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	if err := h.service.Unbookmark(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListBookmarks はユーザーのブックマーク済み商品一覧を返す。
// GET /api/products/bookmarks
func (h *ProductHandler) ListBookmarks(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	products, err := h.service.ListBookmarks(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProductResponses(products))
}

// LikeProduct は商品にいいねを付ける。冪等。
// PUT /api/products/:id/like
func (h *ProductHandler) LikeProduct(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	if err := h.service.Like(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UnlikeProduct は商品のいいねを解除する。冪等。
// DELETE /api/products/:id/like
func (h *ProductHandler) UnlikeProduct(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	if err := h.service.Unlike(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// toProductResponse はmodel.ProductからAPIレスポンスに変換する。
func toProductResponse(p *model.Product) productResponse {
	return productResponse{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Price:         p.Price,
		Category:      p.Category,
		ImageURL:      p.ImageURL,
		PurchaseLink:  p.PurchaseLink,
		InStock:       p.InStock,
		Status:        string(p.Status),
		Priority:      string(p.Priority),
		LinkCheckedAt: p.LinkCheckedAt,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func toProductResponses(products []*model.Product) []productResponse {
	results := make([]productResponse, len(products))
	for i, p := range products {
		results[i] = toProductResponse(p)
	}
	return results
}
