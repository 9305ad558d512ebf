package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/giftman/internal/model"
)

// PostgresGiftListRepo はPostgreSQLを使用したギフトリストリポジトリ。
type PostgresGiftListRepo struct {
	db *sql.DB
}

// NewPostgresGiftListRepo はPostgresGiftListRepoを生成する。
func NewPostgresGiftListRepo(db *sql.DB) *PostgresGiftListRepo {
	return &PostgresGiftListRepo{db: db}
}

// FindByID は指定IDのリストを取得する。見つからない場合はnilを返す。
func (r *PostgresGiftListRepo) FindByID(ctx context.Context, id string) (*model.GiftList, error) {
	list := &model.GiftList{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, created_at, updated_at FROM gift_lists WHERE id = $1`,
		id,
	).Scan(&list.ID, &list.UserID, &list.Name, &list.CreatedAt, &list.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("リストの取得に失敗しました: %w", err)
	}
	return list, nil
}

// ListByUserID はユーザーのリスト一覧を作成日時昇順で返す。
func (r *PostgresGiftListRepo) ListByUserID(ctx context.Context, userID string) ([]*model.GiftList, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, created_at, updated_at
		 FROM gift_lists WHERE user_id = $1 ORDER BY created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("リスト一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var lists []*model.GiftList
	for rows.Next() {
		list := &model.GiftList{}
		if err := rows.Scan(&list.ID, &list.UserID, &list.Name, &list.CreatedAt, &list.UpdatedAt); err != nil {
			return nil, fmt.Errorf("リスト一覧の読み取りに失敗しました: %w", err)
		}
		lists = append(lists, list)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("リスト一覧の走査に失敗しました: %w", err)
	}
	return lists, nil
}

// Create はリストを作成する。
func (r *PostgresGiftListRepo) Create(ctx context.Context, list *model.GiftList) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO gift_lists (id, user_id, name, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		list.ID, list.UserID, list.Name, list.CreatedAt, list.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("リストの作成に失敗しました: %w", err)
	}
	return nil
}

// Delete は指定IDのリストを削除する。
func (r *PostgresGiftListRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM gift_lists WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("リストの削除に失敗しました: %w", err)
	}
	return nil
}

// DeleteByUserID はユーザーの全リストを削除する。
func (r *PostgresGiftListRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM gift_lists WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("ユーザーのリスト削除に失敗しました: %w", err)
	}
	return nil
}

// AddProduct はリストに商品を冪等に追加する。
func (r *PostgresGiftListRepo) AddProduct(ctx context.Context, listID, productID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO gift_list_products (list_id, product_id)
		 VALUES ($1, $2)
		 ON CONFLICT (list_id, product_id) DO NOTHING`,
		listID, productID,
	)
	if err != nil {
		return fmt.Errorf("リストへの商品追加に失敗しました: %w", err)
	}
	return nil
}

// RemoveProduct はリストから商品を削除する。
func (r *PostgresGiftListRepo) RemoveProduct(ctx context.Context, listID, productID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM gift_list_products WHERE list_id = $1 AND product_id = $2`,
		listID, productID,
	)
	if err != nil {
		return fmt.Errorf("リストからの商品削除に失敗しました: %w", err)
	}
	return nil
}

// ListProducts はリストに含まれる商品一覧を追加日時昇順で返す。
func (r *PostgresGiftListRepo) ListProducts(ctx context.Context, listID string) ([]*model.Product, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.name, p.description, p.price, p.category, p.image_url,
		        p.purchase_link, p.in_stock, p.status, p.priority,
		        p.link_checked_at, p.created_at, p.updated_at
		 FROM products p
		 INNER JOIN gift_list_products glp ON p.id = glp.product_id
		 WHERE glp.list_id = $1
		 ORDER BY glp.added_at ASC`,
		listID,
	)
	if err != nil {
		return nil, fmt.Errorf("リスト内商品の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var products []*model.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("リスト内商品の読み取りに失敗しました: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("リスト内商品の走査に失敗しました: %w", err)
	}
	return products, nil
}

// compile-time interface check
var _ GiftListRepository = (*PostgresGiftListRepo)(nil)
