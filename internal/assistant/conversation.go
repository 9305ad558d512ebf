package assistant

import (
	"sync"
	"time"

	"github.com/hitoshi/giftman/internal/anthropic"
	"github.com/hitoshi/giftman/internal/model"
)

// maxConversationTurns は1会話に保持する最大ターン数。
// 上限を超えた場合は古いターンから破棄する。
const maxConversationTurns = 50

// Conversation は1つのチャット画面の会話履歴を表す。
// 追記専用の列として値渡しで扱い、共有可変状態を持たない。
type Conversation struct {
	turns []model.ChatMessage
}

// Append はメッセージを追記した新しいConversationを返す。
// 元のConversationは変更しない。上限超過時は最も古いターンを落とす。
func (c Conversation) Append(msg model.ChatMessage) Conversation {
	turns := make([]model.ChatMessage, 0, len(c.turns)+1)
	turns = append(turns, c.turns...)
	turns = append(turns, msg)
	if len(turns) > maxConversationTurns {
		turns = turns[len(turns)-maxConversationTurns:]
	}
	return Conversation{turns: turns}
}

// Turns は会話履歴のコピーを時系列順で返す。
func (c Conversation) Turns() []model.ChatMessage {
	turns := make([]model.ChatMessage, len(c.turns))
	copy(turns, c.turns)
	return turns
}

// Len は保持しているターン数を返す。
func (c Conversation) Len() int {
	return len(c.turns)
}

// History は履歴をLLMへ送るメッセージ列に変換する。順序は保持される。
func (c Conversation) History() []anthropic.Message {
	messages := make([]anthropic.Message, 0, len(c.turns))
	for _, turn := range c.turns {
		role := "user"
		if turn.Sender == model.SenderAssistant {
			role = "assistant"
		}
		messages = append(messages, anthropic.Message{Role: role, Content: turn.Text})
	}
	return messages
}

// conversationEntry はレジストリ内の1会話とその最終アクセス時刻。
type conversationEntry struct {
	conversation Conversation
	lastAccess   time.Time
}

// ConversationRegistry は会話IDごとの会話状態を保持するインメモリレジストリ。
// チャット画面が閉じられた会話はTTL経過後に破棄される。永続化はしない。
type ConversationRegistry struct {
	mu      sync.Mutex
	entries map[string]*conversationEntry
	ttl     time.Duration
	now     func() time.Time // テスト用に差し替え可能
}

// NewConversationRegistry はConversationRegistryを生成する。
func NewConversationRegistry(ttl time.Duration) *ConversationRegistry {
	return &ConversationRegistry{
		entries: make(map[string]*conversationEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get は指定IDの会話を取得する。存在しない場合は空の会話を返す。
func (r *ConversationRegistry) Get(id string) Conversation {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok || r.now().Sub(entry.lastAccess) > r.ttl {
		return Conversation{}
	}
	entry.lastAccess = r.now()
	return entry.conversation
}

// Put は指定IDの会話を保存する。
func (r *ConversationRegistry) Put(id string, conversation Conversation) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[id] = &conversationEntry{
		conversation: conversation,
		lastAccess:   r.now(),
	}
}

// Delete は指定IDの会話を破棄する。
func (r *ConversationRegistry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// Sweep はTTLを超過した会話を破棄し、破棄件数を返す。
func (r *ConversationRegistry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	now := r.now()
	for id, entry := range r.entries {
		if now.Sub(entry.lastAccess) > r.ttl {
			delete(r.entries, id)
			removed++
		}
	}
	return removed
}
