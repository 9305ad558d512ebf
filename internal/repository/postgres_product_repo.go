package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/hitoshi/giftman/internal/model"
)

// PostgresProductRepo はPostgreSQLを使用した商品リポジトリ。
type PostgresProductRepo struct {
	db *sql.DB
}

// NewPostgresProductRepo はPostgresProductRepoを生成する。
func NewPostgresProductRepo(db *sql.DB) *PostgresProductRepo {
	return &PostgresProductRepo{db: db}
}

const productColumns = `id, name, description, price, category, image_url, purchase_link,
	        in_stock, status, priority, link_checked_at, created_at, updated_at`

// FindByID は指定IDの商品を取得する。見つからない場合はnilを返す。
func (r *PostgresProductRepo) FindByID(ctx context.Context, id string) (*model.Product, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`,
		id,
	)
	product, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("商品の取得に失敗しました: %w", err)
	}
	return product, nil
}

// List はフィルタ条件に一致する商品一覧を返す。
// QueryとCategoryは部分一致（ILIKE）、Statusは完全一致で適用される。
func (r *PostgresProductRepo) List(ctx context.Context, filter model.ProductFilter) ([]*model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products`
	var conditions []string
	var args []any

	if filter.Query != "" {
		args = append(args, "%"+filter.Query+"%")
		n := strconv.Itoa(len(args))
		conditions = append(conditions, "(name ILIKE $"+n+" OR description ILIKE $"+n+")")
	}
	if filter.Category != "" {
		args = append(args, "%"+filter.Category+"%")
		conditions = append(conditions, "category ILIKE $"+strconv.Itoa(len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conditions = append(conditions, "status = $"+strconv.Itoa(len(args)))
	}

	for i, cond := range conditions {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY name ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("商品一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var products []*model.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("商品一覧の読み取りに失敗しました: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("商品一覧の走査に失敗しました: %w", err)
	}
	return products, nil
}

// Create は商品を作成する。
func (r *PostgresProductRepo) Create(ctx context.Context, product *model.Product) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO products (id, name, description, price, category, image_url,
		                       purchase_link, in_stock, status, priority,
		                       link_checked_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		product.ID, product.Name, product.Description, product.Price,
		product.Category, product.ImageURL, product.PurchaseLink,
		product.InStock, product.Status, product.Priority,
		product.LinkCheckedAt, product.CreatedAt, product.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("商品の作成に失敗しました: %w", err)
	}
	return nil
}

// Update は商品情報を更新する。
func (r *PostgresProductRepo) Update(ctx context.Context, product *model.Product) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE products SET
		    name = $2, description = $3, price = $4, category = $5,
		    image_url = $6, purchase_link = $7, in_stock = $8,
		    status = $9, priority = $10, updated_at = $11
		 WHERE id = $1`,
		product.ID, product.Name, product.Description, product.Price,
		product.Category, product.ImageURL, product.PurchaseLink,
		product.InStock, product.Status, product.Priority, product.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("商品の更新に失敗しました: %w", err)
	}
	return nil
}

// Delete は指定IDの商品を削除する。
func (r *PostgresProductRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("商品の削除に失敗しました: %w", err)
	}
	return nil
}

// ListNeedingLinkCheck は購入リンクの確認が必要な商品を取得する。
// link_checked_at IS NULL（未確認）を優先し、次にlink_checked_atが古い順に処理する。
func (r *PostgresProductRepo) ListNeedingLinkCheck(ctx context.Context, ttl time.Duration, limit int) ([]*model.Product, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+productColumns+`
		 FROM products
		 WHERE purchase_link <> ''
		   AND (link_checked_at IS NULL OR link_checked_at < now() - $1::interval)
		 ORDER BY link_checked_at ASC NULLS FIRST
		 LIMIT $2`,
		fmt.Sprintf("%d seconds", int(ttl.Seconds())), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("リンク確認対象商品の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var products []*model.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("リンク確認対象商品の読み取りに失敗しました: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("リンク確認対象商品の走査に失敗しました: %w", err)
	}
	return products, nil
}

// UpdateLinkState は商品の在庫状態と購入リンクの確認日時を更新する。
func (r *PostgresProductRepo) UpdateLinkState(ctx context.Context, productID string, inStock bool, checkedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE products SET in_stock = $2, link_checked_at = $3, updated_at = now() WHERE id = $1`,
		productID, inStock, checkedAt,
	)
	if err != nil {
		return fmt.Errorf("リンク確認状態の更新に失敗しました: %w", err)
	}
	return nil
}

// MarkDiscontinued は商品を販売終了として記録する。
func (r *PostgresProductRepo) MarkDiscontinued(ctx context.Context, productID string, checkedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE products SET status = $2, in_stock = false, link_checked_at = $3, updated_at = now() WHERE id = $1`,
		productID, model.ProductStatusDiscontinued, checkedAt,
	)
	if err != nil {
		return fmt.Errorf("販売終了状態の更新に失敗しました: %w", err)
	}
	return nil
}

// scanProduct は1行分の商品データをスキャンする。
func scanProduct(row rowScanner) (*model.Product, error) {
	product := &model.Product{}
	var linkCheckedAt sql.NullTime

	err := row.Scan(
		&product.ID, &product.Name, &product.Description, &product.Price,
		&product.Category, &product.ImageURL, &product.PurchaseLink,
		&product.InStock, &product.Status, &product.Priority,
		&linkCheckedAt, &product.CreatedAt, &product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if linkCheckedAt.Valid {
		t := linkCheckedAt.Time
		product.LinkCheckedAt = &t
	}
	return product, nil
}

// compile-time interface check
var _ ProductRepository = (*PostgresProductRepo)(nil)
var _ LinkCheckProductRepository = (*PostgresProductRepo)(nil)
