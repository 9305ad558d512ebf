package assistant

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/giftman/internal/anthropic"
)

// --- モック ---

type mockCompleter struct {
	completeFunc func(ctx context.Context, system string, messages []anthropic.Message, opts anthropic.Options) (string, error)
	calls        int
	lastMessages []anthropic.Message
}

func (m *mockCompleter) Complete(ctx context.Context, system string, messages []anthropic.Message, opts anthropic.Options) (string, error) {
	m.calls++
	m.lastMessages = messages
	if m.completeFunc != nil {
		return m.completeFunc(ctx, system, messages, opts)
	}
	return `{"reply":"ok","actions":[]}`, nil
}

func newTestService(completer Completer) *Service {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	dispatcher := NewDispatcher(&mockPersonCreator{}, &mockEventCreator{}, &mockProductSearcher{})
	registry := NewConversationRegistry(time.Hour)
	return NewService(completer, dispatcher, registry, nil, nil, logger)
}

// --- テスト ---

// Mary の例: 自由入力文から期待どおりの人物レコードがパースされることを検証
func TestService_ParsePerson_MaryExample(t *testing.T) {
	completer := &mockCompleter{
		completeFunc: func(ctx context.Context, system string, messages []anthropic.Message, opts anthropic.Options) (string, error) {
			if len(messages) != 1 {
				t.Errorf("len(messages) = %d, want 1", len(messages))
			}
			if !strings.Contains(messages[0].Content, "Mary") {
				t.Errorf("ユーザーメッセージに入力が含まれるべき: %q", messages[0].Content)
			}
			return `{"name":"Mary","relationship":"mother","age":68,"birthday":"2024-06-05","interests":["gardening","cooking"],"notes":"","confidence":0.92}`, nil
		},
	}
	s := newTestService(completer)

	person, err := s.ParsePerson(context.Background(),
		"Add my mom Mary, 68 years old, born June 5th, loves gardening and cooking")
	if err != nil {
		t.Fatalf("ParsePerson がエラーを返した: %v", err)
	}

	if person.Name != "Mary" || person.Relationship != "mother" || person.Age != 68 {
		t.Errorf("パース結果が期待と異なる: %+v", person)
	}
	if person.Birthday != "2024-06-05" {
		t.Errorf("Birthday = %q, want 2024-06-05", person.Birthday)
	}
	if len(person.Interests) != 2 || person.Interests[0] != "gardening" || person.Interests[1] != "cooking" {
		t.Errorf("Interests = %v", person.Interests)
	}
	if person.Confidence < 0.8 {
		t.Errorf("Confidence = %v, want >= 0.8", person.Confidence)
	}
}

// 400ステータスのLLM応答は "having trouble understanding" の返信と空アクションになり、
// ハンドルされないエラーとして漏れないことを検証
func TestService_Handle_BadRequest_YieldsFallbackReply(t *testing.T) {
	completer := &mockCompleter{
		completeFunc: func(ctx context.Context, system string, messages []anthropic.Message, opts anthropic.Options) (string, error) {
			return "", &anthropic.APIStatusError{StatusCode: http.StatusBadRequest, Body: "bad request"}
		},
	}
	s := newTestService(completer)

	reply, err := s.Handle(context.Background(), "user-1", "conv-1", "gibberish")
	if err != nil {
		t.Fatalf("エラーはフォールバック返信に変換されるべき: %v", err)
	}

	if !strings.Contains(reply.Text, "having trouble understanding that request") {
		t.Errorf("返信テキストが期待と異なる: %q", reply.Text)
	}
	if len(reply.Actions) != 0 {
		t.Errorf("アクションは空であるべき: %v", reply.Actions)
	}
}

// クレジット残高不足エラーで Browse Products アクション付きの返信が返り、
// 明示的な再試行まで以降のLLM呼び出しが発生しないことを検証
func TestService_Handle_CreditExhausted_EntersDegradedMode(t *testing.T) {
	completer := &mockCompleter{
		completeFunc: func(ctx context.Context, system string, messages []anthropic.Message, opts anthropic.Options) (string, error) {
			return "", &anthropic.APIStatusError{
				StatusCode: http.StatusBadRequest,
				Body:       "Your credit balance is too low to access the Anthropic API.",
			}
		},
	}
	s := newTestService(completer)

	reply, err := s.Handle(context.Background(), "user-1", "conv-1", "recommend a gift")
	if err != nil {
		t.Fatalf("Handle がエラーを返した: %v", err)
	}

	if !reply.Degraded {
		t.Error("縮退モードの返信であるべき")
	}
	if len(reply.Actions) != 1 || reply.Actions[0].Type != ActionBrowseProducts {
		t.Fatalf("Browse Products アクションが返るべき: %v", reply.Actions)
	}
	if reply.Actions[0].Query != "all products" {
		t.Errorf("Query = %q, want all products", reply.Actions[0].Query)
	}

	// 縮退モード中はLLMが呼ばれない
	callsBefore := completer.calls
	if _, err := s.Handle(context.Background(), "user-1", "conv-1", "another message"); err != nil {
		t.Fatalf("Handle がエラーを返した: %v", err)
	}
	if completer.calls != callsBefore {
		t.Errorf("縮退モード中にLLMが呼ばれた: %d -> %d", callsBefore, completer.calls)
	}

	// 明示的な再試行で解除される
	s.ResetDegraded()
	if _, err := s.Handle(context.Background(), "user-1", "conv-1", "retry message"); err != nil {
		t.Fatalf("Handle がエラーを返した: %v", err)
	}
	if completer.calls != callsBefore+1 {
		t.Errorf("再試行後はLLMが呼ばれるべき: calls = %d", completer.calls)
	}
}

// 会話コンテキストが直前までの全ターンを時系列順で含むことを検証
func TestService_Handle_SendsFullConversationHistory(t *testing.T) {
	completer := &mockCompleter{}
	s := newTestService(completer)

	ctx := context.Background()
	if _, err := s.Handle(ctx, "user-1", "conv-1", "first message"); err != nil {
		t.Fatalf("Handle がエラーを返した: %v", err)
	}
	if _, err := s.Handle(ctx, "user-1", "conv-1", "second message"); err != nil {
		t.Fatalf("Handle がエラーを返した: %v", err)
	}

	// 2回目の呼び出しでは履歴2件 + 新規入力1件
	if len(completer.lastMessages) != 3 {
		t.Fatalf("len(messages) = %d, want 3", len(completer.lastMessages))
	}
	if completer.lastMessages[0].Role != "user" || completer.lastMessages[0].Content != "first message" {
		t.Errorf("messages[0] = %+v", completer.lastMessages[0])
	}
	if completer.lastMessages[1].Role != "assistant" {
		t.Errorf("messages[1].Role = %q, want assistant", completer.lastMessages[1].Role)
	}
	if completer.lastMessages[2].Content != "second message" {
		t.Errorf("messages[2].Content = %q", completer.lastMessages[2].Content)
	}
}

// 会話IDが異なれば履歴が混ざらないことを検証
func TestService_Handle_SeparateConversations(t *testing.T) {
	completer := &mockCompleter{}
	s := newTestService(completer)

	ctx := context.Background()
	s.Handle(ctx, "user-1", "conv-a", "message in a")
	s.Handle(ctx, "user-1", "conv-b", "message in b")

	// conv-b の呼び出しには conv-a の履歴が含まれない
	if len(completer.lastMessages) != 1 {
		t.Errorf("len(messages) = %d, want 1", len(completer.lastMessages))
	}
}

// 会話応答のアクションがディスパッチされ結果が返信に含まれることを検証
func TestService_Handle_DispatchesActions(t *testing.T) {
	completer := &mockCompleter{
		completeFunc: func(ctx context.Context, system string, messages []anthropic.Message, opts anthropic.Options) (string, error) {
			return `{"reply":"Here are some gifts","actions":[{"type":"search_products","query":"coffee"}]}`, nil
		},
	}
	s := newTestService(completer)

	reply, err := s.Handle(context.Background(), "user-1", "conv-1", "show me coffee gifts")
	if err != nil {
		t.Fatalf("Handle がエラーを返した: %v", err)
	}

	if len(reply.Outcomes) != 1 {
		t.Fatalf("len(Outcomes) = %d, want 1", len(reply.Outcomes))
	}
	if reply.Outcomes[0].Kind != OutcomeProducts {
		t.Errorf("Outcome.Kind = %q, want products", reply.Outcomes[0].Kind)
	}
}

// パース不能な会話応答は静的フォールバック返信になることを検証
func TestService_Handle_UnparsableResponse_YieldsFallback(t *testing.T) {
	completer := &mockCompleter{
		completeFunc: func(ctx context.Context, system string, messages []anthropic.Message, opts anthropic.Options) (string, error) {
			return "Sure! I'd be happy to help with that.", nil
		},
	}
	s := newTestService(completer)

	reply, err := s.Handle(context.Background(), "user-1", "conv-1", "hello")
	if err != nil {
		t.Fatalf("パース失敗はフォールバック返信に変換されるべき: %v", err)
	}
	if !strings.Contains(reply.Text, "having trouble understanding") {
		t.Errorf("返信テキストが期待と異なる: %q", reply.Text)
	}
	if len(reply.Actions) != 0 {
		t.Errorf("アクションは空であるべき: %v", reply.Actions)
	}
}

// search_queryフィールドが検索アクションに変換されることを検証
func TestService_Handle_SearchQueryBecomesAction(t *testing.T) {
	completer := &mockCompleter{
		completeFunc: func(ctx context.Context, system string, messages []anthropic.Message, opts anthropic.Options) (string, error) {
			return `{"reply":"Take a look at these","actions":[],"search_query":"gardening tools"}`, nil
		},
	}
	s := newTestService(completer)

	reply, err := s.Handle(context.Background(), "user-1", "conv-1", "gifts for gardeners")
	if err != nil {
		t.Fatalf("Handle がエラーを返した: %v", err)
	}

	if len(reply.Actions) != 1 || reply.Actions[0].Type != ActionSearchProducts {
		t.Fatalf("検索アクションへ変換されるべき: %v", reply.Actions)
	}
	if reply.Actions[0].Query != "gardening tools" {
		t.Errorf("Query = %q", reply.Actions[0].Query)
	}
}

// ParsePersonのクレジット枯渇エラーでも縮退モードに入ることを検証
func TestService_ParsePerson_CreditExhausted_LatchesDegradedMode(t *testing.T) {
	completer := &mockCompleter{
		completeFunc: func(ctx context.Context, system string, messages []anthropic.Message, opts anthropic.Options) (string, error) {
			return "", &anthropic.APIStatusError{
				StatusCode: http.StatusBadRequest,
				Body:       "credit balance is too low",
			}
		},
	}
	s := newTestService(completer)

	_, err := s.ParsePerson(context.Background(), "add my mom")
	if err == nil {
		t.Fatal("LLMエラーはそのまま返されるべき")
	}
	if !s.Degraded() {
		t.Error("クレジット枯渇後は縮退モードに入るべき")
	}
}
