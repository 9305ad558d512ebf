package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/giftman/internal/model"
)

// PostgresBookmarkRepo はPostgreSQLを使用したブックマークリポジトリ。
type PostgresBookmarkRepo struct {
	db *sql.DB
}

// NewPostgresBookmarkRepo はPostgresBookmarkRepoを生成する。
func NewPostgresBookmarkRepo(db *sql.DB) *PostgresBookmarkRepo {
	return &PostgresBookmarkRepo{db: db}
}

// Add はブックマークを冪等に追加する。
func (r *PostgresBookmarkRepo) Add(ctx context.Context, userID, productID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO bookmarks (user_id, product_id)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id, product_id) DO NOTHING`,
		userID, productID,
	)
	if err != nil {
		return fmt.Errorf("ブックマークの追加に失敗しました: %w", err)
	}
	return nil
}

// Remove はブックマークを削除する。存在しない場合も成功扱い。
func (r *PostgresBookmarkRepo) Remove(ctx context.Context, userID, productID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM bookmarks WHERE user_id = $1 AND product_id = $2`,
		userID, productID,
	)
	if err != nil {
		return fmt.Errorf("ブックマークの削除に失敗しました: %w", err)
	}
	return nil
}

// Exists はブックマークの存在を確認する。
func (r *PostgresBookmarkRepo) Exists(ctx context.Context, userID, productID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM bookmarks WHERE user_id = $1 AND product_id = $2)`,
		userID, productID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ブックマークの確認に失敗しました: %w", err)
	}
	return exists, nil
}

// ListByUserID はユーザーのブックマーク済み商品一覧をブックマーク日時降順で返す。
func (r *PostgresBookmarkRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Product, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.name, p.description, p.price, p.category, p.image_url,
		        p.purchase_link, p.in_stock, p.status, p.priority,
		        p.link_checked_at, p.created_at, p.updated_at
		 FROM products p
		 INNER JOIN bookmarks b ON p.id = b.product_id
		 WHERE b.user_id = $1
		 ORDER BY b.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("ブックマーク一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var products []*model.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("ブックマーク一覧の読み取りに失敗しました: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ブックマーク一覧の走査に失敗しました: %w", err)
	}
	return products, nil
}

// DeleteByUserID はユーザーの全ブックマークを削除する。
func (r *PostgresBookmarkRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM bookmarks WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("ユーザーのブックマーク削除に失敗しました: %w", err)
	}
	return nil
}

// PostgresLikeRepo はPostgreSQLを使用したいいねリポジトリ。
type PostgresLikeRepo struct {
	db *sql.DB
}

// NewPostgresLikeRepo はPostgresLikeRepoを生成する。
func NewPostgresLikeRepo(db *sql.DB) *PostgresLikeRepo {
	return &PostgresLikeRepo{db: db}
}

// Add はいいねを冪等に追加する。
func (r *PostgresLikeRepo) Add(ctx context.Context, userID, productID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO likes (user_id, product_id)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id, product_id) DO NOTHING`,
		userID, productID,
	)
	if err != nil {
		return fmt.Errorf("いいねの追加に失敗しました: %w", err)
	}
	return nil
}

// Remove はいいねを削除する。存在しない場合も成功扱い。
func (r *PostgresLikeRepo) Remove(ctx context.Context, userID, productID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM likes WHERE user_id = $1 AND product_id = $2`,
		userID, productID,
	)
	if err != nil {
		return fmt.Errorf("いいねの削除に失敗しました: %w", err)
	}
	return nil
}

// Exists はいいねの存在を確認する。
func (r *PostgresLikeRepo) Exists(ctx context.Context, userID, productID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM likes WHERE user_id = $1 AND product_id = $2)`,
		userID, productID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("いいねの確認に失敗しました: %w", err)
	}
	return exists, nil
}

// CountByProductID は商品のいいね数を返す。
func (r *PostgresLikeRepo) CountByProductID(ctx context.Context, productID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM likes WHERE product_id = $1`,
		productID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("いいね数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// DeleteByUserID はユーザーの全いいねを削除する。
func (r *PostgresLikeRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM likes WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("ユーザーのいいね削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ BookmarkRepository = (*PostgresBookmarkRepo)(nil)
var _ LikeRepository = (*PostgresLikeRepo)(nil)
