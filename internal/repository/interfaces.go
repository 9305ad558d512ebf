// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/giftman/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するidentities、sessions、people、special_dates等はCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// PersonRepository は贈り先（人物）データの永続化インターフェース。
type PersonRepository interface {
	// FindByID は指定IDの人物を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Person, error)

	// FindByUserAndName はユーザーIDと名前（完全一致）で人物を検索する。
	// 見つからない場合はnilを返す。
	FindByUserAndName(ctx context.Context, userID, name string) (*model.Person, error)

	// ListByUserID はユーザーの人物一覧を名前昇順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Person, error)

	// Create は人物を作成する。
	Create(ctx context.Context, person *model.Person) error

	// Update は人物情報を更新する。
	Update(ctx context.Context, person *model.Person) error

	// Delete は指定IDの人物を削除する。
	// 紐付くspecial_datesのperson_idはSET NULLされ、レコード自体は残る。
	Delete(ctx context.Context, id string) error

	// DeleteByUserID はユーザーの全人物を削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// SpecialDateRepository は特別な日付データの永続化インターフェース。
type SpecialDateRepository interface {
	// FindByID は指定IDの特別な日付を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.SpecialDate, error)

	// ListByUserID はユーザーの特別な日付一覧を日付昇順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.SpecialDate, error)

	// ListByPersonID は指定の人物に紐付く特別な日付一覧を返す。
	ListByPersonID(ctx context.Context, personID string) ([]*model.SpecialDate, error)

	// ListAll は全ユーザーの特別な日付を返す。リマインドワーカーが使用する。
	ListAll(ctx context.Context) ([]*model.SpecialDate, error)

	// Create は特別な日付を作成する。
	Create(ctx context.Context, date *model.SpecialDate) error

	// Update は特別な日付を更新する。
	Update(ctx context.Context, date *model.SpecialDate) error

	// Delete は指定IDの特別な日付を削除する。
	Delete(ctx context.Context, id string) error

	// DeleteByUserID はユーザーの全特別な日付を削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// ReminderRepository はリマインド発火記録の永続化インターフェース。
type ReminderRepository interface {
	// CreateIfAbsent はリマインド記録を冪等に作成する。
	// 同一の (special_date_id, occurrence_on) が既に存在する場合は偽を返し何もしない。
	CreateIfAbsent(ctx context.Context, reminder *model.Reminder) (bool, error)

	// ListByUserID はユーザーのリマインド記録をreminded_at降順で返す。
	ListByUserID(ctx context.Context, userID string, limit int) ([]*model.Reminder, error)

	// DeleteOlderThan は指定日時より古いリマインド記録を削除し、削除件数を返す。
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// ProductRepository は商品データの永続化インターフェース。
type ProductRepository interface {
	// FindByID は指定IDの商品を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Product, error)

	// List はフィルタ条件に一致する商品一覧を返す。
	// QueryとCategoryは部分一致（ILIKE）、Statusは完全一致で適用される。
	// フィルタがゼロ値の場合は全件を返す。
	List(ctx context.Context, filter model.ProductFilter) ([]*model.Product, error)

	// Create は商品を作成する。
	Create(ctx context.Context, product *model.Product) error

	// Update は商品情報を更新する。
	Update(ctx context.Context, product *model.Product) error

	// Delete は指定IDの商品を削除する。
	Delete(ctx context.Context, id string) error
}

// LinkCheckProductRepository は購入リンク確認に必要な商品データ操作のインターフェース。
type LinkCheckProductRepository interface {
	// ListNeedingLinkCheck は購入リンクの確認が必要な商品を取得する。
	// link_checked_at IS NULL（未確認）を優先し、次にlink_checked_atが古い順に処理する。
	// 確認日時がttlより新しい商品は対象外。
	ListNeedingLinkCheck(ctx context.Context, ttl time.Duration, limit int) ([]*model.Product, error)

	// UpdateLinkState は商品の在庫状態と購入リンクの確認日時を更新する。
	UpdateLinkState(ctx context.Context, productID string, inStock bool, checkedAt time.Time) error

	// MarkDiscontinued は商品を販売終了として記録する。
	// ステータスをdiscontinuedに変更し、在庫フラグをfalseにする。
	MarkDiscontinued(ctx context.Context, productID string, checkedAt time.Time) error
}

// GiftListRepository はギフトリストデータの永続化インターフェース。
type GiftListRepository interface {
	// FindByID は指定IDのリストを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.GiftList, error)

	// ListByUserID はユーザーのリスト一覧を作成日時昇順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.GiftList, error)

	// Create はリストを作成する。
	Create(ctx context.Context, list *model.GiftList) error

	// Delete は指定IDのリストを削除する。所属する商品の紐付けもCASCADE削除される。
	Delete(ctx context.Context, id string) error

	// DeleteByUserID はユーザーの全リストを削除する。
	DeleteByUserID(ctx context.Context, userID string) error

	// AddProduct はリストに商品を冪等に追加する。
	AddProduct(ctx context.Context, listID, productID string) error

	// RemoveProduct はリストから商品を削除する。
	RemoveProduct(ctx context.Context, listID, productID string) error

	// ListProducts はリストに含まれる商品一覧を追加日時昇順で返す。
	ListProducts(ctx context.Context, listID string) ([]*model.Product, error)
}

// BookmarkRepository はブックマークデータの永続化インターフェース。
// ブックマークはレコードの存在自体がシグナルであり、追加と削除は冪等。
type BookmarkRepository interface {
	// Add はブックマークを冪等に追加する。
	Add(ctx context.Context, userID, productID string) error
	// Remove はブックマークを削除する。存在しない場合も成功扱い。
	Remove(ctx context.Context, userID, productID string) error
	// Exists はブックマークの存在を確認する。
	Exists(ctx context.Context, userID, productID string) (bool, error)
	// ListByUserID はユーザーのブックマーク済み商品一覧を返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Product, error)
	// DeleteByUserID はユーザーの全ブックマークを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// LikeRepository はいいねデータの永続化インターフェース。
// BookmarkRepositoryと同じく存在ベースで、追加と削除は冪等。
type LikeRepository interface {
	// Add はいいねを冪等に追加する。
	Add(ctx context.Context, userID, productID string) error
	// Remove はいいねを削除する。存在しない場合も成功扱い。
	Remove(ctx context.Context, userID, productID string) error
	// Exists はいいねの存在を確認する。
	Exists(ctx context.Context, userID, productID string) (bool, error)
	// CountByProductID は商品のいいね数を返す。
	CountByProductID(ctx context.Context, productID string) (int, error)
	// DeleteByUserID はユーザーの全いいねを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
