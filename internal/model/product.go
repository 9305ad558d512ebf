// Package model はギフト管理のドメインモデルを定義する。
package model

import "time"

// Product はギフト候補の商品を表す。
type Product struct {
	ID            string
	Name          string
	Description   string // サニタイズ済み
	Price         float64
	Category      string
	ImageURL      string
	PurchaseLink  string
	InStock       bool
	Status        ProductStatus
	Priority      ProductPriority
	LinkCheckedAt *time.Time // 購入リンクの最終確認日時。未確認の場合はnil
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ProductStatus は商品のステータスを表す。
type ProductStatus string

const (
	// ProductStatusWishlist は欲しいものリストに入っている状態。
	ProductStatusWishlist ProductStatus = "wishlist"
	// ProductStatusPurchased は購入済みの状態。
	ProductStatusPurchased ProductStatus = "purchased"
	// ProductStatusConsidering は検討中の状態。
	ProductStatusConsidering ProductStatus = "considering"
	// ProductStatusActive は販売中の状態。
	ProductStatusActive ProductStatus = "active"
	// ProductStatusDiscontinued は販売終了の状態。
	ProductStatusDiscontinued ProductStatus = "discontinued"
)

// IsValid はProductStatusが定義済みの値かどうかを返す。
func (s ProductStatus) IsValid() bool {
	switch s {
	case ProductStatusWishlist, ProductStatusPurchased, ProductStatusConsidering,
		ProductStatusActive, ProductStatusDiscontinued:
		return true
	}
	return false
}

// ProductPriority は商品の優先度を表す。
type ProductPriority string

const (
	// PriorityLow は低優先度。
	PriorityLow ProductPriority = "low"
	// PriorityMedium は中優先度。
	PriorityMedium ProductPriority = "medium"
	// PriorityHigh は高優先度。
	PriorityHigh ProductPriority = "high"
)

// IsValid はProductPriorityが定義済みの値かどうかを返す。
func (p ProductPriority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// ProductFilter は商品一覧の検索条件を表す。
// QueryとCategoryは部分一致、Statusは完全一致で適用される。
// ゼロ値のフィールドは条件として適用されない。
type ProductFilter struct {
	Query    string
	Category string
	Status   ProductStatus
}

// GiftList はユーザーが作成する商品のリストを表す。
type GiftList struct {
	ID        string
	UserID    string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Bookmark はユーザーと商品のブックマーク関係を表す。
// レコードの存在自体がシグナルであり、ペイロードは持たない。
type Bookmark struct {
	UserID    string
	ProductID string
	CreatedAt time.Time
}

// Like はユーザーと商品のいいね関係を表す。
// レコードの存在自体がシグナルであり、ペイロードは持たない。
type Like struct {
	UserID    string
	ProductID string
	CreatedAt time.Time
}
