package assistant

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/hitoshi/giftman/internal/anthropic"
	"github.com/hitoshi/giftman/internal/metrics"
	"github.com/hitoshi/giftman/internal/model"
)

// ユーザー向けフォールバック文言。クライアントにそのまま表示される英文コピー。
const (
	// fallbackUnparsableReply は入力やモデル出力を解釈できなかった場合の返信。
	fallbackUnparsableReply = "I'm having trouble understanding that request. Could you try rephrasing it?"
	// fallbackDegradedReply はLLMが利用できない縮退モードでの返信。
	fallbackDegradedReply = "The AI assistant is temporarily unavailable right now. You can still browse all products."
	// fallbackErrorReply はLLM呼び出しが失敗した場合の返信。
	fallbackErrorReply = "Something went wrong while thinking about that. You can browse all products instead."
	// browseProductsLabel はフォールバック時に提示する全商品閲覧アクションのラベル。
	browseProductsLabel = "Browse Products"
)

// Completer はLLM補完のインターフェース。anthropic.Clientを抽象化する。
type Completer interface {
	Complete(ctx context.Context, system string, messages []anthropic.Message, opts anthropic.Options) (string, error)
}

// NameLister はプロンプトコンテキスト用の既存エンティティ名取得インターフェース。
type NameLister interface {
	ListPeopleNames(ctx context.Context, userID string) ([]string, error)
	ListEventNames(ctx context.Context, userID string) ([]string, error)
}

// Reply はチャット1往復のアシスタント応答を表す。
type Reply struct {
	Text     string
	Actions  []Action
	Outcomes []*DispatchOutcome
	Degraded bool
}

// Service はAI支援機能のオーケストレーションを担うサービス層。
// 縮退モードのラッチを保持し、クレジット枯渇後はLLM呼び出しを止める。
type Service struct {
	completer  Completer
	dispatcher *Dispatcher
	registry   *ConversationRegistry
	names      NameLister
	collector  metrics.MetricsCollector
	logger     *slog.Logger
	degraded   atomic.Bool
	now        func() time.Time // テスト用に差し替え可能
}

// NewService はServiceを生成する。namesとcollectorはnil許容。
func NewService(
	completer Completer,
	dispatcher *Dispatcher,
	registry *ConversationRegistry,
	names NameLister,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Service {
	return &Service{
		completer:  completer,
		dispatcher: dispatcher,
		registry:   registry,
		names:      names,
		collector:  collector,
		logger:     logger,
		now:        time.Now,
	}
}

// Degraded は縮退モード中かどうかを返す。
func (s *Service) Degraded() bool {
	return s.degraded.Load()
}

// ResetDegraded は縮退モードを解除する。明示的な再試行時に呼ばれる。
func (s *Service) ResetDegraded() {
	s.degraded.Store(false)
}

// Handle はチャットの1往復を処理する。
// 縮退モード中はLLMを呼ばず全商品閲覧へのフォールバックを返す。
// LLM呼び出しや応答パースの失敗は静的フォールバック返信に変換され、
// エラーとして呼び出し元に漏れない。
func (s *Service) Handle(ctx context.Context, userID, conversationID, input string) (*Reply, error) {
	if s.degraded.Load() {
		return s.degradedReply(), nil
	}

	conversation := s.registry.Get(conversationID)
	messages := BuildMessages(conversation.History(), input, s.promptContext(ctx, userID))

	start := s.now()
	text, err := s.completer.Complete(ctx, conversationSystemPrompt, messages, anthropic.Options{})
	s.recordLLM(IntentConversation, start, err)

	if err != nil {
		return s.replyForLLMError(err), nil
	}

	result, err := InterpretConversation(text)
	if err != nil {
		s.recordParseFailure(IntentConversation)
		s.logger.Warn("会話応答のパースに失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return &Reply{Text: fallbackUnparsableReply, Actions: []Action{}}, nil
	}

	reply := &Reply{Text: result.Reply, Actions: result.Actions}

	// 検索クエリ付きの返信は検索アクションとして扱う
	if result.SearchQuery != "" && !hasSearchAction(result.Actions) {
		reply.Actions = append(reply.Actions, Action{Type: ActionSearchProducts, Query: result.SearchQuery})
	}

	for _, action := range reply.Actions {
		outcome, err := s.dispatcher.Dispatch(ctx, userID, action)
		if err != nil {
			s.logger.Warn("アクションのディスパッチに失敗しました",
				slog.String("user_id", userID),
				slog.String("action", string(action.Type)),
				slog.String("error", err.Error()),
			)
			continue
		}
		reply.Outcomes = append(reply.Outcomes, outcome)
	}

	// 会話履歴を更新する
	timestamp := s.now()
	conversation = conversation.
		Append(model.ChatMessage{Text: input, Sender: model.SenderUser, Timestamp: timestamp}).
		Append(model.ChatMessage{Text: result.Reply, Sender: model.SenderAssistant, Timestamp: timestamp})
	s.registry.Put(conversationID, conversation)

	return reply, nil
}

// Confirm は保留中の作成アクションを実行する。LLMは呼ばない。
func (s *Service) Confirm(ctx context.Context, userID string, action Action) (*DispatchOutcome, error) {
	return s.dispatcher.Confirm(ctx, userID, action)
}

// ParsePerson は自由入力文を人物レコードへパースする。
// 失敗時は*ParseErrorまたはLLMエラーをそのまま返す（呼び出し元がAPIエラーへ変換する）。
func (s *Service) ParsePerson(ctx context.Context, input string) (*ParsedPerson, error) {
	system, user := BuildPrompt(IntentParsePerson, input, PromptContext{})

	start := s.now()
	text, err := s.completer.Complete(ctx, system,
		[]anthropic.Message{{Role: "user", Content: user}},
		anthropic.Options{Temperature: 0.2})
	s.recordLLM(IntentParsePerson, start, err)
	if err != nil {
		s.latchIfCreditExhausted(err)
		return nil, err
	}

	person, err := InterpretPerson(text)
	if err != nil {
		s.recordParseFailure(IntentParsePerson)
		return nil, err
	}
	return person, nil
}

// ParseEvent は自由入力文を特別な日付レコードへパースする。
func (s *Service) ParseEvent(ctx context.Context, input string) (*ParsedEvent, error) {
	system, user := BuildPrompt(IntentParseEvent, input, PromptContext{})

	start := s.now()
	text, err := s.completer.Complete(ctx, system,
		[]anthropic.Message{{Role: "user", Content: user}},
		anthropic.Options{Temperature: 0.2})
	s.recordLLM(IntentParseEvent, start, err)
	if err != nil {
		s.latchIfCreditExhausted(err)
		return nil, err
	}

	event, err := InterpretEvent(text)
	if err != nil {
		s.recordParseFailure(IntentParseEvent)
		return nil, err
	}
	return event, nil
}

// EnhanceSearch は検索語をキーワード・カテゴリへ展開する。
func (s *Service) EnhanceSearch(ctx context.Context, query string) (*SearchEnhancement, error) {
	system, user := BuildPrompt(IntentEnhanceSearch, query, PromptContext{})

	start := s.now()
	text, err := s.completer.Complete(ctx, system,
		[]anthropic.Message{{Role: "user", Content: user}},
		anthropic.Options{Temperature: 0.3})
	s.recordLLM(IntentEnhanceSearch, start, err)
	if err != nil {
		s.latchIfCreditExhausted(err)
		return nil, err
	}

	enhancement, err := InterpretSearchEnhancement(text)
	if err != nil {
		s.recordParseFailure(IntentEnhanceSearch)
		return nil, err
	}
	return enhancement, nil
}

// Recommend は人物情報からギフト候補を生成する。
func (s *Service) Recommend(ctx context.Context, person *model.Person) ([]GiftRecommendation, error) {
	return s.RecommendProfile(ctx, describePerson(person))
}

// RecommendProfile は自由形式の受取人プロフィール文からギフト候補を生成する。
// 人物レコードを持たない相手（機会と予算だけの指定など）にも使える。
func (s *Service) RecommendProfile(ctx context.Context, input string) ([]GiftRecommendation, error) {
	system, user := BuildPrompt(IntentRecommendGifts, input, PromptContext{})

	start := s.now()
	text, err := s.completer.Complete(ctx, system,
		[]anthropic.Message{{Role: "user", Content: user}},
		anthropic.Options{})
	s.recordLLM(IntentRecommendGifts, start, err)
	if err != nil {
		s.latchIfCreditExhausted(err)
		return nil, err
	}

	recommendations, err := InterpretRecommendations(text)
	if err != nil {
		s.recordParseFailure(IntentRecommendGifts)
		return nil, err
	}
	return recommendations, nil
}

// replyForLLMError はLLMエラーをユーザー向けのフォールバック返信へ変換する。
func (s *Service) replyForLLMError(err error) *Reply {
	if anthropic.IsCreditExhausted(err) {
		s.degraded.Store(true)
		s.logger.Error("APIクレジット残高不足のため縮退モードに入ります", slog.String("error", err.Error()))
		return s.degradedReply()
	}

	var statusErr *anthropic.APIStatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusBadRequest {
		return &Reply{Text: fallbackUnparsableReply, Actions: []Action{}}
	}

	s.logger.Error("LLM呼び出しに失敗しました", slog.String("error", err.Error()))
	return &Reply{
		Text: fallbackErrorReply,
		Actions: []Action{
			{Type: ActionBrowseProducts, Query: AllProductsQuery, Prompt: browseProductsLabel},
		},
	}
}

// degradedReply は縮退モードの返信を構築する。全商品閲覧アクションを含む。
func (s *Service) degradedReply() *Reply {
	return &Reply{
		Text: fallbackDegradedReply,
		Actions: []Action{
			{Type: ActionBrowseProducts, Query: AllProductsQuery, Prompt: browseProductsLabel},
		},
		Degraded: true,
	}
}

// latchIfCreditExhausted はクレジット枯渇エラーの場合に縮退モードを保持する。
func (s *Service) latchIfCreditExhausted(err error) {
	if anthropic.IsCreditExhausted(err) {
		s.degraded.Store(true)
		s.logger.Error("APIクレジット残高不足のため縮退モードに入ります", slog.String("error", err.Error()))
	}
}

// promptContext は既存エンティティ名のコンテキストを取得する。取得失敗は空として扱う。
func (s *Service) promptContext(ctx context.Context, userID string) PromptContext {
	if s.names == nil {
		return PromptContext{}
	}

	promptCtx := PromptContext{}
	if names, err := s.names.ListPeopleNames(ctx, userID); err == nil {
		promptCtx.PeopleNames = names
	}
	if names, err := s.names.ListEventNames(ctx, userID); err == nil {
		promptCtx.EventNames = names
	}
	return promptCtx
}

func (s *Service) recordLLM(intent Intent, start time.Time, err error) {
	if s.collector == nil {
		return
	}
	s.collector.RecordLLMRequest(string(intent), err == nil)
	s.collector.RecordLLMLatency(s.now().Sub(start))
}

func (s *Service) recordParseFailure(intent Intent) {
	if s.collector == nil {
		return
	}
	s.collector.RecordParseFailure(string(intent))
}

// hasSearchAction はアクション列に検索アクションが含まれるかを返す。
func hasSearchAction(actions []Action) bool {
	for _, action := range actions {
		if action.Type == ActionSearchProducts || action.Type == ActionBrowseProducts {
			return true
		}
	}
	return false
}

// describePerson は推薦プロンプト用に人物情報を整形する。
func describePerson(person *model.Person) string {
	input := "Name: " + person.Name
	if person.Relationship != "" {
		input += "\nRelationship: " + person.Relationship
	}
	if person.Age > 0 {
		input += "\nAge: " + strconv.Itoa(person.Age)
	}
	if len(person.Interests) > 0 {
		input += "\nInterests: "
		for i, interest := range person.Interests {
			if i > 0 {
				input += ", "
			}
			input += interest
		}
	}
	if person.Notes != "" {
		input += "\nNotes: " + person.Notes
	}
	return input
}
