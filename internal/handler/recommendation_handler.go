package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hitoshi/giftman/internal/assistant"
	"github.com/hitoshi/giftman/internal/model"
)

// Recommender はギフト推薦のインターフェース。
type Recommender interface {
	Recommend(ctx context.Context, person *model.Person) ([]assistant.GiftRecommendation, error)
	RecommendProfile(ctx context.Context, input string) ([]assistant.GiftRecommendation, error)
}

// PersonGetter は推薦対象の人物取得インターフェース。
type PersonGetter interface {
	Get(ctx context.Context, userID, personID string) (*model.Person, error)
}

// RecommendationHandler はギフト推薦のHTTPハンドラー。
type RecommendationHandler struct {
	recommender Recommender
	people      PersonGetter
}

// NewRecommendationHandler はRecommendationHandlerを生成する。
func NewRecommendationHandler(recommender Recommender, people PersonGetter) *RecommendationHandler {
	return &RecommendationHandler{
		recommender: recommender,
		people:      people,
	}
}

// recommendationRequest はギフト推薦リクエストのボディ。
// person_idを指定すると登録済みの人物情報から推薦する。
// person_idがない場合はoccasionとbudgetから推薦する。
type recommendationRequest struct {
	PersonID string  `json:"person_id"`
	Occasion string  `json:"occasion"`
	Budget   float64 `json:"budget"`
}

// Recommend はギフト候補を生成する。
// POST /api/recommendations
func (h *RecommendationHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	var req recommendationRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	var recommendations []assistant.GiftRecommendation
	if req.PersonID != "" {
		person, err := h.people.Get(r.Context(), userID, req.PersonID)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		recommendations, err = h.recommender.Recommend(r.Context(), person)
		if err != nil {
			handleAIError(w, err)
			return
		}
	} else {
		if req.Occasion == "" {
			writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
				Code:     "INVALID_REQUEST",
				Message:  "person_idまたはoccasionのいずれかを指定してください。",
				Category: "validation",
				Action:   "推薦対象の人物IDか、贈る機会を指定してください。",
			})
			return
		}
		profile := "Occasion: " + req.Occasion
		if req.Budget > 0 {
			profile += fmt.Sprintf("\nBudget: %.0f", req.Budget)
		}
		var err error
		recommendations, err = h.recommender.RecommendProfile(r.Context(), profile)
		if err != nil {
			handleAIError(w, err)
			return
		}
	}

	if recommendations == nil {
		recommendations = []assistant.GiftRecommendation{}
	}
	writeJSON(w, http.StatusOK, recommendations)
}
