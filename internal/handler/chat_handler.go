package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/giftman/internal/assistant"
	"github.com/hitoshi/giftman/internal/model"
)

// ChatServiceInterface はチャットハンドラーが必要とするサービスインターフェース。
type ChatServiceInterface interface {
	Handle(ctx context.Context, userID, conversationID, input string) (*assistant.Reply, error)
	Confirm(ctx context.Context, userID string, action assistant.Action) (*assistant.DispatchOutcome, error)
	ResetDegraded()
}

// ChatHandler はAIチャットのHTTPハンドラー。
type ChatHandler struct {
	service ChatServiceInterface
}

// NewChatHandler はChatHandlerを生成する。
func NewChatHandler(service ChatServiceInterface) *ChatHandler {
	return &ChatHandler{service: service}
}

// chatRequest はチャットリクエストのボディ。
type chatRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

// chatConfirmRequest は保留中アクションの確認実行リクエストのボディ。
type chatConfirmRequest struct {
	ConversationID string           `json:"conversation_id"`
	Action         assistant.Action `json:"action"`
}

// chatResponse はチャット1往復のAPIレスポンス。
type chatResponse struct {
	Reply    string             `json:"reply"`
	Actions  []assistant.Action `json:"actions"`
	Outcomes []outcomeResponse  `json:"outcomes"`
	Degraded bool               `json:"degraded"`
}

// outcomeResponse は1アクションのディスパッチ結果のAPIレスポンス。
type outcomeResponse struct {
	Kind     string               `json:"kind"`
	Action   assistant.Action     `json:"action"`
	Products []productResponse    `json:"products,omitempty"`
	Prompt   string               `json:"prompt,omitempty"`
	Person   *personResponse      `json:"person,omitempty"`
	Event    *specialDateResponse `json:"event,omitempty"`
}

// Chat はチャットの1往復を処理する。
// POST /api/chat
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	var req chatRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Message == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "メッセージが空です。",
			Category: "validation",
			Action:   "messageフィールドに入力文を指定してください。",
		})
		return
	}

	// 会話IDの指定がない場合はユーザーごとの既定の会話を使う
	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = userID
	}

	reply, err := h.service.Handle(r.Context(), userID, conversationID, req.Message)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toChatResponse(reply))
}

// ConfirmAction は保留中の作成アクションを確認実行する。
// POST /api/chat/confirm
func (h *ChatHandler) ConfirmAction(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	var req chatConfirmRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	outcome, err := h.service.Confirm(r.Context(), userID, req.Action)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toOutcomeResponse(outcome))
}

// RetryAI は縮退モードを解除する。次のチャットから再びLLMを呼ぶようになる。
// POST /api/chat/retry
func (h *ChatHandler) RetryAI(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	h.service.ResetDegraded()
	w.WriteHeader(http.StatusNoContent)
}

// toChatResponse はassistant.ReplyからAPIレスポンスに変換する。
func toChatResponse(reply *assistant.Reply) chatResponse {
	resp := chatResponse{
		Reply:    reply.Text,
		Actions:  reply.Actions,
		Outcomes: make([]outcomeResponse, len(reply.Outcomes)),
		Degraded: reply.Degraded,
	}
	if resp.Actions == nil {
		resp.Actions = []assistant.Action{}
	}
	for i, outcome := range reply.Outcomes {
		resp.Outcomes[i] = toOutcomeResponse(outcome)
	}
	return resp
}

// toOutcomeResponse はassistant.DispatchOutcomeからAPIレスポンスに変換する。
func toOutcomeResponse(outcome *assistant.DispatchOutcome) outcomeResponse {
	resp := outcomeResponse{
		Kind:   string(outcome.Kind),
		Action: outcome.Action,
		Prompt: outcome.Prompt,
	}
	if outcome.Products != nil {
		resp.Products = toProductResponses(outcome.Products)
	}
	if outcome.Person != nil {
		person := toPersonResponse(outcome.Person)
		resp.Person = &person
	}
	if outcome.Event != nil {
		event := toSpecialDateResponse(outcome.Event, time.Time{})
		resp.Event = &event
	}
	return resp
}
