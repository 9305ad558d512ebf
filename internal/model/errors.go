// Package model はギフト管理のドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, gift, ai, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodePersonNotFound    = "PERSON_NOT_FOUND"
	ErrCodeNameRequired      = "NAME_REQUIRED"
	ErrCodeDateNotFound      = "DATE_NOT_FOUND"
	ErrCodeInvalidRecurrence = "INVALID_RECURRENCE"
	ErrCodeProductNotFound   = "PRODUCT_NOT_FOUND"
	ErrCodeInvalidStatus     = "INVALID_STATUS"
	ErrCodeInvalidPriority   = "INVALID_PRIORITY"
	ErrCodeListNotFound      = "LIST_NOT_FOUND"
	ErrCodeInvalidURL        = "INVALID_URL"
	ErrCodeSSRFBlocked       = "SSRF_BLOCKED"
	ErrCodeAIParseFailed     = "AI_PARSE_FAILED"
	ErrCodeAIUnavailable     = "AI_UNAVAILABLE"
	ErrCodeUserNotFound      = "USER_NOT_FOUND"
)

// NewPersonNotFoundError は相手未検出エラーを生成する。
func NewPersonNotFoundError(personID string) *APIError {
	return &APIError{
		Code:     ErrCodePersonNotFound,
		Message:  fmt.Sprintf("指定された相手が見つかりません: %s", personID),
		Category: "gift",
		Action:   "相手のIDを確認してください。",
	}
}

// NewNameRequiredError は名前未入力エラーを生成する。
func NewNameRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeNameRequired,
		Message:  "名前は必須です。",
		Category: "validation",
		Action:   "名前を入力してください。",
	}
}

// NewDateNotFoundError は特別な日付の未検出エラーを生成する。
func NewDateNotFoundError(dateID string) *APIError {
	return &APIError{
		Code:     ErrCodeDateNotFound,
		Message:  fmt.Sprintf("指定された特別な日付が見つかりません: %s", dateID),
		Category: "gift",
		Action:   "日付のIDを確認してください。",
	}
}

// NewInvalidRecurrenceError は無効な繰り返し種別エラーを生成する。
func NewInvalidRecurrenceError(recurrence string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRecurrence,
		Message:  fmt.Sprintf("無効な繰り返し種別です: %s", recurrence),
		Category: "validation",
		Action:   "繰り返しには none、annual、quarterly、monthly のいずれかを指定してください。",
	}
}

// NewProductNotFoundError は商品未検出エラーを生成する。
func NewProductNotFoundError(productID string) *APIError {
	return &APIError{
		Code:     ErrCodeProductNotFound,
		Message:  fmt.Sprintf("指定された商品が見つかりません: %s", productID),
		Category: "gift",
		Action:   "商品IDを確認してください。",
	}
}

// NewInvalidStatusError は無効な商品ステータスエラーを生成する。
func NewInvalidStatusError(status string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatus,
		Message:  fmt.Sprintf("無効な商品ステータスです: %s", status),
		Category: "validation",
		Action:   "ステータスには wishlist、purchased、considering、active、discontinued のいずれかを指定してください。",
	}
}

// NewInvalidPriorityError は無効な優先度エラーを生成する。
func NewInvalidPriorityError(priority string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPriority,
		Message:  fmt.Sprintf("無効な優先度です: %s", priority),
		Category: "validation",
		Action:   "優先度には low、medium、high のいずれかを指定してください。",
	}
}

// NewListNotFoundError はリスト未検出エラーを生成する。
func NewListNotFoundError(listID string) *APIError {
	return &APIError{
		Code:     ErrCodeListNotFound,
		Message:  fmt.Sprintf("指定されたリストが見つかりません: %s", listID),
		Category: "gift",
		Action:   "リストIDを確認してください。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトのURLを入力してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}

// NewAIParseFailedError はAI応答のパース失敗エラーを生成する。
func NewAIParseFailedError(what string) *APIError {
	return &APIError{
		Code:     ErrCodeAIParseFailed,
		Message:  fmt.Sprintf("AI応答から%sを読み取れませんでした。", what),
		Category: "ai",
		Action:   "表現を変えてもう一度入力するか、手動で登録してください。",
	}
}

// NewAIUnavailableError はAIサービス利用不可エラーを生成する。
func NewAIUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeAIUnavailable,
		Message:  "AIアシスタントは現在利用できません。",
		Category: "ai",
		Action:   "商品一覧から手動で探すか、しばらく待ってから再度お試しください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}
