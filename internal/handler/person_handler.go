package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/giftman/internal/assistant"
	"github.com/hitoshi/giftman/internal/model"
	"github.com/hitoshi/giftman/internal/person"
)

// PersonServiceInterface は人物ハンドラーが必要とするサービスインターフェース。
type PersonServiceInterface interface {
	Create(ctx context.Context, userID string, input person.CreateInput) (*model.Person, error)
	Get(ctx context.Context, userID, personID string) (*model.Person, error)
	List(ctx context.Context, userID string) ([]*model.Person, error)
	Update(ctx context.Context, userID, personID string, input person.UpdateInput) (*model.Person, error)
	Delete(ctx context.Context, userID, personID string) error
}

// PersonParser は自由入力文の人物パースインターフェース。
// パースのみを行い、人物レコードは作成しない。
type PersonParser interface {
	ParsePerson(ctx context.Context, input string) (*assistant.ParsedPerson, error)
}

// PersonHandler は人物管理のHTTPハンドラー。
type PersonHandler struct {
	service PersonServiceInterface
	parser  PersonParser
}

// NewPersonHandler はPersonHandlerを生成する。
func NewPersonHandler(service PersonServiceInterface, parser PersonParser) *PersonHandler {
	return &PersonHandler{
		service: service,
		parser:  parser,
	}
}

// personRequest は人物作成・更新リクエストのボディ。
type personRequest struct {
	Name         *string  `json:"name"`
	Relationship *string  `json:"relationship"`
	Age          *int     `json:"age"`
	Birthday     *string  `json:"birthday"` // YYYY-MM-DD
	Interests    []string `json:"interests"`
	Address      *string  `json:"address"`
	Notes        *string  `json:"notes"`
}

// parsePersonRequest は人物パースリクエストのボディ。
type parsePersonRequest struct {
	Text string `json:"text"`
}

// personResponse は人物情報のAPIレスポンス。
type personResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Relationship string    `json:"relationship"`
	Age          int       `json:"age"`
	Birthday     string    `json:"birthday,omitempty"` // YYYY-MM-DD
	Interests    []string  `json:"interests"`
	Address      string    `json:"address"`
	Notes        string    `json:"notes"`
	AIAssisted   bool      `json:"ai_assisted"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CreatePerson は人物を作成する。
// POST /api/people
func (h *PersonHandler) CreatePerson(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	var req personRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	input := person.CreateInput{Interests: req.Interests}
	if req.Name != nil {
		input.Name = *req.Name
	}
	if req.Relationship != nil {
		input.Relationship = *req.Relationship
	}
	if req.Age != nil {
		input.Age = *req.Age
	}
	if req.Address != nil {
		input.Address = *req.Address
	}
	if req.Notes != nil {
		input.Notes = *req.Notes
	}
	if req.Birthday != nil && *req.Birthday != "" {
		t, err := time.Parse("2006-01-02", *req.Birthday)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
				Code:     "INVALID_REQUEST",
				Message:  "誕生日の形式が正しくありません。",
				Category: "validation",
				Action:   "YYYY-MM-DD形式で指定してください。",
			})
			return
		}
		input.Birthday = &t
	}

	created, err := h.service.Create(r.Context(), userID, input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toPersonResponse(created))
}

// ParsePerson は自由入力文を人物レコード候補へパースする。書き込みは行わない。
// POST /api/people/parse
func (h *PersonHandler) ParsePerson(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	var req parsePersonRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "パース対象のテキストが空です。",
			Category: "validation",
			Action:   "textフィールドに入力文を指定してください。",
		})
		return
	}

	parsed, err := h.parser.ParsePerson(r.Context(), req.Text)
	if err != nil {
		handleAIError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, parsed)
}

// GetPerson は人物詳細を取得する。
// GET /api/people/:id
func (h *PersonHandler) GetPerson(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	p, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPersonResponse(p))
}

// ListPeople はユーザーの人物一覧を返す。
// GET /api/people
func (h *PersonHandler) ListPeople(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	people, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]personResponse, len(people))
	for i, p := range people {
		results[i] = toPersonResponse(p)
	}
	writeJSON(w, http.StatusOK, results)
}

// UpdatePerson は人物を部分更新する。
// PUT /api/people/:id
func (h *PersonHandler) UpdatePerson(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	var req personRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	input := person.UpdateInput{
		Name:         req.Name,
		Relationship: req.Relationship,
		Age:          req.Age,
		Interests:    req.Interests,
		Address:      req.Address,
		Notes:        req.Notes,
	}
	if req.Birthday != nil && *req.Birthday != "" {
		t, err := time.Parse("2006-01-02", *req.Birthday)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
				Code:     "INVALID_REQUEST",
				Message:  "誕生日の形式が正しくありません。",
				Category: "validation",
				Action:   "YYYY-MM-DD形式で指定してください。",
			})
			return
		}
		input.Birthday = &t
	}

	updated, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPersonResponse(updated))
}

// DeletePerson は人物を削除する。
// DELETE /api/people/:id
func (h *PersonHandler) DeletePerson(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// toPersonResponse はmodel.PersonからAPIレスポンスに変換する。
func toPersonResponse(p *model.Person) personResponse {
	resp := personResponse{
		ID:           p.ID,
		Name:         p.Name,
		Relationship: p.Relationship,
		Age:          p.Age,
		Interests:    p.Interests,
		Address:      p.Address,
		Notes:        p.Notes,
		AIAssisted:   p.AIContext != nil,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
	if resp.Interests == nil {
		resp.Interests = []string{}
	}
	if p.Birthday != nil {
		resp.Birthday = p.Birthday.Format("2006-01-02")
	}
	return resp
}

// handleAIError はAI系エンドポイントのエラーをAPIエラーへ変換する。
// パース失敗は422、それ以外のLLMエラーは503として返す。
func handleAIError(w http.ResponseWriter, err error) {
	var parseErr *assistant.ParseError
	if errors.As(err, &parseErr) {
		writeAPIErrorResponse(w, http.StatusUnprocessableEntity, model.NewAIParseFailedError(string(parseErr.Intent)))
		return
	}
	writeAPIErrorResponse(w, http.StatusServiceUnavailable, model.NewAIUnavailableError())
}
