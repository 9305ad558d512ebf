// Package giftlist はユーザーが作成するギフトリストの管理を提供する。
package giftlist

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/giftman/internal/model"
	"github.com/hitoshi/giftman/internal/repository"
)

// Service はギフトリストのサービス層。
type Service struct {
	listRepo    repository.GiftListRepository
	productRepo repository.ProductRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(listRepo repository.GiftListRepository, productRepo repository.ProductRepository) *Service {
	return &Service{
		listRepo:    listRepo,
		productRepo: productRepo,
	}
}

// Create はギフトリストを作成する。
func (s *Service) Create(ctx context.Context, userID, name string) (*model.GiftList, error) {
	if name == "" {
		return nil, model.NewNameRequiredError()
	}

	now := time.Now()
	list := &model.GiftList{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.listRepo.Create(ctx, list); err != nil {
		return nil, fmt.Errorf("リストの作成に失敗しました: %w", err)
	}

	return list, nil
}

// Get は指定IDのリストを取得する。
func (s *Service) Get(ctx context.Context, userID, listID string) (*model.GiftList, error) {
	list, err := s.listRepo.FindByID(ctx, listID)
	if err != nil {
		return nil, fmt.Errorf("リストの取得に失敗しました: %w", err)
	}
	if list == nil || list.UserID != userID {
		return nil, model.NewListNotFoundError(listID)
	}
	return list, nil
}

// List はユーザーのリスト一覧を返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.GiftList, error) {
	return s.listRepo.ListByUserID(ctx, userID)
}

// Delete はリストを削除する。所属する商品自体は削除されない。
func (s *Service) Delete(ctx context.Context, userID, listID string) error {
	if _, err := s.Get(ctx, userID, listID); err != nil {
		return err
	}
	if err := s.listRepo.Delete(ctx, listID); err != nil {
		return fmt.Errorf("リストの削除に失敗しました: %w", err)
	}
	return nil
}

// AddProduct はリストに商品を追加する。既に追加済みの場合は何もしない。
func (s *Service) AddProduct(ctx context.Context, userID, listID, productID string) error {
	if _, err := s.Get(ctx, userID, listID); err != nil {
		return err
	}
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return fmt.Errorf("商品の取得に失敗しました: %w", err)
	}
	if product == nil {
		return model.NewProductNotFoundError(productID)
	}
	if err := s.listRepo.AddProduct(ctx, listID, productID); err != nil {
		return fmt.Errorf("リストへの商品追加に失敗しました: %w", err)
	}
	return nil
}

// RemoveProduct はリストから商品を削除する。
func (s *Service) RemoveProduct(ctx context.Context, userID, listID, productID string) error {
	if _, err := s.Get(ctx, userID, listID); err != nil {
		return err
	}
	if err := s.listRepo.RemoveProduct(ctx, listID, productID); err != nil {
		return fmt.Errorf("リストからの商品削除に失敗しました: %w", err)
	}
	return nil
}

// ListProducts はリストに含まれる商品一覧を返す。
func (s *Service) ListProducts(ctx context.Context, userID, listID string) ([]*model.Product, error) {
	if _, err := s.Get(ctx, userID, listID); err != nil {
		return nil, err
	}
	products, err := s.listRepo.ListProducts(ctx, listID)
	if err != nil {
		return nil, fmt.Errorf("リスト内商品の取得に失敗しました: %w", err)
	}
	return products, nil
}
