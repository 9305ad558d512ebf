// Package product はギフト候補商品のカタログ管理を提供する。
package product

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/giftman/internal/assistant"
	"github.com/hitoshi/giftman/internal/model"
	"github.com/hitoshi/giftman/internal/repository"
	"github.com/hitoshi/giftman/internal/security"
)

// Service は商品カタログのサービス層。
// 購入リンクは登録前にSSRF検証を通す。
type Service struct {
	productRepo  repository.ProductRepository
	bookmarkRepo repository.BookmarkRepository
	likeRepo     repository.LikeRepository
	sanitizer    security.ContentSanitizerService
	ssrfGuard    security.SSRFGuardService
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	productRepo repository.ProductRepository,
	bookmarkRepo repository.BookmarkRepository,
	likeRepo repository.LikeRepository,
	sanitizer security.ContentSanitizerService,
	ssrfGuard security.SSRFGuardService,
) *Service {
	return &Service{
		productRepo:  productRepo,
		bookmarkRepo: bookmarkRepo,
		likeRepo:     likeRepo,
		sanitizer:    sanitizer,
		ssrfGuard:    ssrfGuard,
	}
}

// CreateInput は商品登録の入力を表す。
type CreateInput struct {
	Name         string
	Description  string
	Price        float64
	Category     string
	ImageURL     string
	PurchaseLink string
	Status       model.ProductStatus
	Priority     model.ProductPriority
}

// Create は商品を登録する。購入リンクはSSRF検証を通過したもののみ受け付ける。
func (s *Service) Create(ctx context.Context, input CreateInput) (*model.Product, error) {
	if input.Name == "" {
		return nil, model.NewNameRequiredError()
	}
	if input.Status == "" {
		input.Status = model.ProductStatusActive
	}
	if !input.Status.IsValid() {
		return nil, model.NewInvalidStatusError(string(input.Status))
	}
	if input.Priority == "" {
		input.Priority = model.PriorityMedium
	}
	if !input.Priority.IsValid() {
		return nil, model.NewInvalidPriorityError(string(input.Priority))
	}
	if err := s.validateLink(input.PurchaseLink); err != nil {
		return nil, err
	}

	now := time.Now()
	product := &model.Product{
		ID:           uuid.New().String(),
		Name:         input.Name,
		Description:  s.sanitizer.Sanitize(input.Description),
		Price:        input.Price,
		Category:     input.Category,
		ImageURL:     input.ImageURL,
		PurchaseLink: input.PurchaseLink,
		InStock:      true,
		Status:       input.Status,
		Priority:     input.Priority,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("商品の登録に失敗しました: %w", err)
	}

	return product, nil
}

// Get は指定IDの商品を取得する。
func (s *Service) Get(ctx context.Context, productID string) (*model.Product, error) {
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("商品の取得に失敗しました: %w", err)
	}
	if product == nil {
		return nil, model.NewProductNotFoundError(productID)
	}
	return product, nil
}

// List は条件に合う商品一覧を返す。
func (s *Service) List(ctx context.Context, filter model.ProductFilter) ([]*model.Product, error) {
	return s.productRepo.List(ctx, filter)
}

// Search はクエリ文字列で商品を検索する。assistantパッケージの商品検索にも使われる。
func (s *Service) Search(ctx context.Context, query string) ([]*model.Product, error) {
	return s.productRepo.List(ctx, model.ProductFilter{Query: query})
}

// ListAll は全商品を返す。
func (s *Service) ListAll(ctx context.Context) ([]*model.Product, error) {
	return s.productRepo.List(ctx, model.ProductFilter{})
}

// UpdateInput は商品更新の入力を表す。nilフィールドは変更しない。
type UpdateInput struct {
	Name         *string
	Description  *string
	Price        *float64
	Category     *string
	ImageURL     *string
	PurchaseLink *string
	InStock      *bool
	Status       *model.ProductStatus
	Priority     *model.ProductPriority
}

// Update は商品を部分更新する。
func (s *Service) Update(ctx context.Context, productID string, input UpdateInput) (*model.Product, error) {
	product, err := s.Get(ctx, productID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		if *input.Name == "" {
			return nil, model.NewNameRequiredError()
		}
		product.Name = *input.Name
	}
	if input.Status != nil {
		if !input.Status.IsValid() {
			return nil, model.NewInvalidStatusError(string(*input.Status))
		}
		product.Status = *input.Status
	}
	if input.Priority != nil {
		if !input.Priority.IsValid() {
			return nil, model.NewInvalidPriorityError(string(*input.Priority))
		}
		product.Priority = *input.Priority
	}
	if input.PurchaseLink != nil {
		if err := s.validateLink(*input.PurchaseLink); err != nil {
			return nil, err
		}
		product.PurchaseLink = *input.PurchaseLink
		// リンクが変わったら確認状態をリセットする
		product.LinkCheckedAt = nil
	}
	if input.Description != nil {
		product.Description = s.sanitizer.Sanitize(*input.Description)
	}
	if input.Price != nil {
		product.Price = *input.Price
	}
	if input.Category != nil {
		product.Category = *input.Category
	}
	if input.ImageURL != nil {
		product.ImageURL = *input.ImageURL
	}
	if input.InStock != nil {
		product.InStock = *input.InStock
	}
	product.UpdatedAt = time.Now()

	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, fmt.Errorf("商品の更新に失敗しました: %w", err)
	}

	return product, nil
}

// Delete は商品を削除する。
func (s *Service) Delete(ctx context.Context, productID string) error {
	if _, err := s.Get(ctx, productID); err != nil {
		return err
	}
	if err := s.productRepo.Delete(ctx, productID); err != nil {
		return fmt.Errorf("商品の削除に失敗しました: %w", err)
	}
	return nil
}

// Bookmark は商品をブックマークする。既にブックマーク済みの場合は何もしない。
func (s *Service) Bookmark(ctx context.Context, userID, productID string) error {
	if _, err := s.Get(ctx, productID); err != nil {
		return err
	}
	if err := s.bookmarkRepo.Add(ctx, userID, productID); err != nil {
		return fmt.Errorf("ブックマークの追加に失敗しました: %w", err)
	}
	return nil
}

// Unbookmark は商品のブックマークを解除する。
func (s *Service) Unbookmark(ctx context.Context, userID, productID string) error {
	if err := s.bookmarkRepo.Remove(ctx, userID, productID); err != nil {
		return fmt.Errorf("ブックマークの解除に失敗しました: %w", err)
	}
	return nil
}

// ListBookmarks はユーザーのブックマーク済み商品一覧を返す。
func (s *Service) ListBookmarks(ctx context.Context, userID string) ([]*model.Product, error) {
	return s.bookmarkRepo.ListByUserID(ctx, userID)
}

// Like は商品にいいねを付ける。既にいいね済みの場合は何もしない。
func (s *Service) Like(ctx context.Context, userID, productID string) error {
	if _, err := s.Get(ctx, productID); err != nil {
		return err
	}
	if err := s.likeRepo.Add(ctx, userID, productID); err != nil {
		return fmt.Errorf("いいねの追加に失敗しました: %w", err)
	}
	return nil
}

// Unlike は商品のいいねを解除する。
func (s *Service) Unlike(ctx context.Context, userID, productID string) error {
	if err := s.likeRepo.Remove(ctx, userID, productID); err != nil {
		return fmt.Errorf("いいねの解除に失敗しました: %w", err)
	}
	return nil
}

// LikeCount は商品のいいね数を返す。
func (s *Service) LikeCount(ctx context.Context, productID string) (int, error) {
	return s.likeRepo.CountByProductID(ctx, productID)
}

// validateLink は購入リンクの形式と安全性を検証する。空リンクは許可する。
func (s *Service) validateLink(rawURL string) error {
	if rawURL == "" {
		return nil
	}
	if err := s.ssrfGuard.ValidateURL(rawURL); err != nil {
		if strings.Contains(err.Error(), "blocked") {
			return model.NewSSRFBlockedError()
		}
		return model.NewInvalidURLError(err.Error())
	}
	return nil
}

// compile-time interface check
var _ assistant.ProductSearcher = (*Service)(nil)
