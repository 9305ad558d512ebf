// Package assistant はAI支援機能のオーケストレーションを提供する。
// プロンプト構築 → LLM呼び出し → 応答パース → アクションディスパッチの
// 直列パイプラインと、チャット画面ごとの会話状態を扱う。
package assistant

// Intent はLLM呼び出しの目的を表す。
// インテントごとにシステムプロンプトと期待するJSON出力形式が固定されている。
type Intent string

const (
	// IntentParsePerson は自由入力文から人物レコードを抽出するインテント。
	IntentParsePerson Intent = "parse-person"
	// IntentParseEvent は自由入力文から特別な日付レコードを抽出するインテント。
	IntentParseEvent Intent = "parse-event"
	// IntentEnhanceSearch は検索語をカテゴリ・キーワードに展開するインテント。
	IntentEnhanceSearch Intent = "enhance-search"
	// IntentRecommendGifts は人物情報からギフト候補を生成するインテント。
	IntentRecommendGifts Intent = "recommend-gifts"
	// IntentConversation は自由会話を処理しアクションを返すインテント。
	IntentConversation Intent = "conversation"
)

// ActionType は会話インテントが返す後続操作の種別を表す。
type ActionType string

const (
	// ActionAddPerson は人物の新規登録アクション。実行前にユーザー確認が必要。
	ActionAddPerson ActionType = "add_person"
	// ActionCreateEvent は特別な日付の新規登録アクション。実行前にユーザー確認が必要。
	ActionCreateEvent ActionType = "create_event"
	// ActionSearchProducts は商品検索アクション。確認なしで即時実行される。
	ActionSearchProducts ActionType = "search_products"
	// ActionAskFollowUp は追加情報を求めるフォローアップ質問アクション。
	ActionAskFollowUp ActionType = "ask_follow_up"
	// ActionBrowseProducts は全商品閲覧への誘導アクション。縮退モードのフォールバックに使う。
	ActionBrowseProducts ActionType = "browse_products"
)

// AllProductsQuery はLLMを経由せず全商品を直接取得する特別な検索クエリ。
const AllProductsQuery = "all products"

// ParsedPerson は人物パースインテントの出力を表す。
// Nameは必須で、空の場合はパース失敗として扱う。
type ParsedPerson struct {
	Name         string   `json:"name"`
	Relationship string   `json:"relationship"`
	Age          int      `json:"age"`
	Birthday     string   `json:"birthday"` // YYYY-MM-DD
	Interests    []string `json:"interests"`
	Address      string   `json:"address"`
	Notes        string   `json:"notes"`
	Confidence   float64  `json:"confidence"`
}

// ParsedEvent は日付パースインテントの出力を表す。
type ParsedEvent struct {
	Name       string  `json:"name"`
	PersonName string  `json:"person_name"`
	Date       string  `json:"date"` // YYYY-MM-DD
	Recurrence string  `json:"recurrence"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// SearchEnhancement は検索強化インテントの出力を表す。
type SearchEnhancement struct {
	Keywords   []string `json:"keywords"`
	Categories []string `json:"categories"`
	PriceMax   float64  `json:"price_max"`
}

// GiftRecommendation はギフト推薦インテントの出力の1件を表す。
type GiftRecommendation struct {
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Reason   string  `json:"reason"`
	PriceMin float64 `json:"price_min"`
	PriceMax float64 `json:"price_max"`
}

// Action は会話インテントが返す1つの後続操作を表す。
// 種別ごとに対応するデータフィールドだけが設定される。
type Action struct {
	Type   ActionType    `json:"type"`
	Person *ParsedPerson `json:"person,omitempty"`
	Event  *ParsedEvent  `json:"event,omitempty"`
	Query  string        `json:"query,omitempty"`
	Prompt string        `json:"prompt,omitempty"`
}

// ConversationResult は会話インテントの出力エンベロープを表す。
// 返信テキストと0個以上のアクション、任意の商品検索クエリを含む。
type ConversationResult struct {
	Reply       string   `json:"reply"`
	Actions     []Action `json:"actions"`
	SearchQuery string   `json:"search_query,omitempty"`
}
