package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/giftman/internal/model"
)

// GiftListServiceInterface はギフトリストハンドラーが必要とするサービスインターフェース。
type GiftListServiceInterface interface {
	Create(ctx context.Context, userID, name string) (*model.GiftList, error)
	Get(ctx context.Context, userID, listID string) (*model.GiftList, error)
	List(ctx context.Context, userID string) ([]*model.GiftList, error)
	Delete(ctx context.Context, userID, listID string) error
	AddProduct(ctx context.Context, userID, listID, productID string) error
	RemoveProduct(ctx context.Context, userID, listID, productID string) error
	ListProducts(ctx context.Context, userID, listID string) ([]*model.Product, error)
}

// GiftListHandler はギフトリスト管理のHTTPハンドラー。
type GiftListHandler struct {
	service GiftListServiceInterface
}

// NewGiftListHandler はGiftListHandlerを生成する。
func NewGiftListHandler(service GiftListServiceInterface) *GiftListHandler {
	return &GiftListHandler{service: service}
}

// giftListRequest はリスト作成リクエストのボディ。
type giftListRequest struct {
	Name string `json:"name"`
}

// giftListProductRequest はリストへの商品追加・削除リクエストのボディ。
type giftListProductRequest struct {
	ProductID string `json:"product_id"`
}

// giftListResponse はリスト情報のAPIレスポンス。
type giftListResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateList はギフトリストを作成する。
// POST /api/lists
func (h *GiftListHandler) CreateList(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	var req giftListRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	created, err := h.service.Create(r.Context(), userID, req.Name)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toGiftListResponse(created))
}

// GetList はリスト詳細を取得する。
// GET /api/lists/:id
func (h *GiftListHandler) GetList(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	list, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toGiftListResponse(list))
}

// ListLists はユーザーのリスト一覧を返す。
// GET /api/lists
func (h *GiftListHandler) ListLists(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	lists, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]giftListResponse, len(lists))
	for i, list := range lists {
		results[i] = toGiftListResponse(list)
	}
	writeJSON(w, http.StatusOK, results)
}

// DeleteList はリストを削除する。所属する商品自体は削除されない。
// DELETE /api/lists/:id
func (h *GiftListHandler) DeleteList(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AddProductToList はリストに商品を追加する。冪等。
// PUT /api/lists/:id/products
func (h *GiftListHandler) AddProductToList(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	var req giftListProductRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if err := h.service.AddProduct(r.Context(), userID, chi.URLParam(r, "id"), req.ProductID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RemoveProductFromList はリストから商品を削除する。
// DELETE /api/lists/:id/products
func (h *GiftListHandler) RemoveProductFromList(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	var req giftListProductRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if err := h.service.RemoveProduct(r.Context(), userID, chi.URLParam(r, "id"), req.ProductID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListProductsInList はリストに含まれる商品一覧を返す。
// GET /api/lists/:id/products
func (h *GiftListHandler) ListProductsInList(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	products, err := h.service.ListProducts(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProductResponses(products))
}

// toGiftListResponse はmodel.GiftListからAPIレスポンスに変換する。
func toGiftListResponse(list *model.GiftList) giftListResponse {
	return giftListResponse{
		ID:        list.ID,
		Name:      list.Name,
		CreatedAt: list.CreatedAt,
		UpdatedAt: list.UpdatedAt,
	}
}
