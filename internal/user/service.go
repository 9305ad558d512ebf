// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/giftman/internal/model"
	"github.com/hitoshi/giftman/internal/repository"
)

// UserDataDeleter はユーザーに紐付くデータの一括削除インターフェース。
// 人物・特別な日付・リスト・ブックマーク・いいねの各リポジトリが満たす。
type UserDataDeleter interface {
	DeleteByUserID(ctx context.Context, userID string) error
}

// Service はユーザー管理のサービス層。
// 退会処理のビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	deleters    []UserDataDeleter
}

// NewService はServiceの新しいインスタンスを生成する。
// deletersは退会時に削除するユーザーデータのリポジトリ群で、渡した順に実行される。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	deleters ...UserDataDeleter,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		deleters:    deleters,
	}
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: ユーザーデータ（bookmarks, likes, lists, special_dates, people）→
// sessions → user（+ CASCADE: identities）
// 商品カタログは共有データとして残す。
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	// ユーザー存在確認
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	slog.Info("退会処理を開始します",
		slog.String("user_id", userID),
	)

	// 1. ユーザーデータを削除
	for _, deleter := range s.deleters {
		if err := deleter.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("ユーザーデータの削除に失敗しました: %w", err)
		}
	}

	// 2. セッションを削除
	if s.sessionRepo != nil {
		if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("セッションの削除に失敗しました: %w", err)
		}
	}

	// 3. ユーザーを削除（identitiesはCASCADE削除）
	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("退会処理が完了しました",
		slog.String("user_id", userID),
	)

	return nil
}
