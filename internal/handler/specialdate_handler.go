package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/giftman/internal/model"
	"github.com/hitoshi/giftman/internal/specialdate"
)

// SpecialDateServiceInterface は特別な日付ハンドラーが必要とするサービスインターフェース。
type SpecialDateServiceInterface interface {
	Create(ctx context.Context, userID string, input specialdate.CreateInput) (*model.SpecialDate, error)
	Get(ctx context.Context, userID, dateID string) (*model.SpecialDate, error)
	List(ctx context.Context, userID string) ([]*model.SpecialDate, error)
	ListUpcoming(ctx context.Context, userID string, withinDays int) ([]specialdate.UpcomingDate, error)
	Update(ctx context.Context, userID, dateID string, input specialdate.UpdateInput) (*model.SpecialDate, error)
	Delete(ctx context.Context, userID, dateID string) error
}

// SpecialDateHandler は特別な日付管理のHTTPハンドラー。
type SpecialDateHandler struct {
	service SpecialDateServiceInterface
}

// NewSpecialDateHandler はSpecialDateHandlerを生成する。
func NewSpecialDateHandler(service SpecialDateServiceInterface) *SpecialDateHandler {
	return &SpecialDateHandler{service: service}
}

// specialDateRequest は特別な日付作成・更新リクエストのボディ。
type specialDateRequest struct {
	PersonID     *string `json:"person_id"`
	Name         *string `json:"name"`
	Date         *string `json:"date"` // YYYY-MM-DD
	Recurrence   *string `json:"recurrence"`
	Category     *string `json:"category"`
	ReminderDays *int    `json:"reminder_days"`
}

// specialDateResponse は特別な日付のAPIレスポンス。
type specialDateResponse struct {
	ID             string    `json:"id"`
	PersonID       string    `json:"person_id,omitempty"`
	Name           string    `json:"name"`
	Date           string    `json:"date"` // YYYY-MM-DD
	Recurrence     string    `json:"recurrence"`
	Category       string    `json:"category"`
	ReminderDays   int       `json:"reminder_days"`
	NextOccurrence string    `json:"next_occurrence,omitempty"` // YYYY-MM-DD
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CreateSpecialDate は特別な日付を作成する。
// POST /api/dates
func (h *SpecialDateHandler) CreateSpecialDate(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	var req specialDateRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	input := specialdate.CreateInput{}
	if req.PersonID != nil {
		input.PersonID = *req.PersonID
	}
	if req.Name != nil {
		input.Name = *req.Name
	}
	if req.Recurrence != nil {
		input.Recurrence = model.Recurrence(*req.Recurrence)
	}
	if req.Category != nil {
		input.Category = *req.Category
	}
	if req.ReminderDays != nil {
		input.ReminderDays = *req.ReminderDays
	}
	if req.Date == nil || *req.Date == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidDateFormatError())
		return
	}
	date, err := time.Parse("2006-01-02", *req.Date)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidDateFormatError())
		return
	}
	input.Date = date

	created, err := h.service.Create(r.Context(), userID, input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toSpecialDateResponse(created, time.Time{}))
}

// GetSpecialDate は特別な日付の詳細を取得する。
// GET /api/dates/:id
func (h *SpecialDateHandler) GetSpecialDate(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	date, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSpecialDateResponse(date, time.Time{}))
}

// ListSpecialDates はユーザーの特別な日付一覧を返す。
// upcoming_daysクエリパラメータを指定すると、その日数以内に発生する日付のみを
// 次回発生日の昇順で返す。
// GET /api/dates
func (h *SpecialDateHandler) ListSpecialDates(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	if raw := r.URL.Query().Get("upcoming_days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days <= 0 {
			writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
				Code:     "INVALID_REQUEST",
				Message:  "upcoming_daysは正の整数で指定してください。",
				Category: "validation",
				Action:   "upcoming_daysパラメータの値を確認してください。",
			})
			return
		}
		upcoming, err := h.service.ListUpcoming(r.Context(), userID, days)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		results := make([]specialDateResponse, len(upcoming))
		for i, u := range upcoming {
			results[i] = toSpecialDateResponse(u.Date, u.NextOccurrence)
		}
		writeJSON(w, http.StatusOK, results)
		return
	}

	dates, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]specialDateResponse, len(dates))
	for i, date := range dates {
		results[i] = toSpecialDateResponse(date, time.Time{})
	}
	writeJSON(w, http.StatusOK, results)
}

// UpdateSpecialDate は特別な日付を部分更新する。
// PUT /api/dates/:id
func (h *SpecialDateHandler) UpdateSpecialDate(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	var req specialDateRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	input := specialdate.UpdateInput{
		PersonID:     req.PersonID,
		Name:         req.Name,
		Category:     req.Category,
		ReminderDays: req.ReminderDays,
	}
	if req.Recurrence != nil {
		recurrence := model.Recurrence(*req.Recurrence)
		input.Recurrence = &recurrence
	}
	if req.Date != nil {
		date, err := time.Parse("2006-01-02", *req.Date)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, invalidDateFormatError())
			return
		}
		input.Date = &date
	}

	updated, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSpecialDateResponse(updated, time.Time{}))
}

// DeleteSpecialDate は特別な日付を削除する。
// DELETE /api/dates/:id
func (h *SpecialDateHandler) DeleteSpecialDate(w http.ResponseWriter, r *http.Request) {
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

// toSpecialDateResponse はmodel.SpecialDateからAPIレスポンスに変換する。
// nextOccurrenceがゼロ値の場合はレスポンスに含めない。
func toSpecialDateResponse(d *model.SpecialDate, nextOccurrence time.Time) specialDateResponse {
	resp := specialDateResponse{
		ID:           d.ID,
		PersonID:     d.PersonID,
		Name:         d.Name,
		Date:         d.Date.Format("2006-01-02"),
		Recurrence:   string(d.Recurrence),
		Category:     d.Category,
		ReminderDays: d.ReminderDays,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	if !nextOccurrence.IsZero() {
		resp.NextOccurrence = nextOccurrence.Format("2006-01-02")
	}
	return resp
}

func invalidDateFormatError() *model.APIError {
	return &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "日付の形式が正しくありません。",
		Category: "validation",
		Action:   "YYYY-MM-DD形式で指定してください。",
	}
}
