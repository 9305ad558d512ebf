// Package person は贈り先（人物）管理のドメインロジックを提供する。
package person

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/giftman/internal/assistant"
	"github.com/hitoshi/giftman/internal/model"
	"github.com/hitoshi/giftman/internal/repository"
	"github.com/hitoshi/giftman/internal/security"
)

// Service は人物管理のサービス層。
// CRUD操作のバリデーションとメモのサニタイズを担う。
type Service struct {
	personRepo repository.PersonRepository
	sanitizer  security.ContentSanitizerService
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(personRepo repository.PersonRepository, sanitizer security.ContentSanitizerService) *Service {
	return &Service{
		personRepo: personRepo,
		sanitizer:  sanitizer,
	}
}

// CreateInput は人物作成の入力を表す。
type CreateInput struct {
	Name         string
	Relationship string
	Age          int
	Birthday     *time.Time
	Interests    []string
	Address      string
	Notes        string
	AIContext    *model.AIContext
}

// Create は人物を作成する。名前は必須。メモはサニタイズして保存する。
func (s *Service) Create(ctx context.Context, userID string, input CreateInput) (*model.Person, error) {
	if input.Name == "" {
		return nil, model.NewNameRequiredError()
	}

	now := time.Now()
	person := &model.Person{
		ID:           uuid.New().String(),
		UserID:       userID,
		Name:         input.Name,
		Relationship: input.Relationship,
		Age:          input.Age,
		Birthday:     input.Birthday,
		Interests:    input.Interests,
		Address:      input.Address,
		Notes:        s.sanitizer.Sanitize(input.Notes),
		AIContext:    input.AIContext,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if person.Interests == nil {
		person.Interests = []string{}
	}

	if err := s.personRepo.Create(ctx, person); err != nil {
		return nil, fmt.Errorf("人物の作成に失敗しました: %w", err)
	}

	return person, nil
}

// CreateFromParsed はAIパース結果から人物を作成する。
// 元の自由入力文とパース結果を監査用のAIコンテキストとして保存する。
func (s *Service) CreateFromParsed(ctx context.Context, userID string, parsed *assistant.ParsedPerson, rawInput string) (*model.Person, error) {
	if parsed == nil || parsed.Name == "" {
		return nil, model.NewAIParseFailedError("人物情報")
	}

	var birthday *time.Time
	if parsed.Birthday != "" {
		if t, err := time.Parse("2006-01-02", parsed.Birthday); err == nil {
			birthday = &t
		}
	}

	input := CreateInput{
		Name:         parsed.Name,
		Relationship: parsed.Relationship,
		Age:          parsed.Age,
		Birthday:     birthday,
		Interests:    parsed.Interests,
		Address:      parsed.Address,
		Notes:        parsed.Notes,
		AIContext: &model.AIContext{
			RawInput:   rawInput,
			ParsedJSON: parsedPersonJSON(parsed),
			Confidence: parsed.Confidence,
		},
	}
	return s.Create(ctx, userID, input)
}

// Get は指定IDの人物を取得する。所有者以外のアクセスは未検出として扱う。
func (s *Service) Get(ctx context.Context, userID, personID string) (*model.Person, error) {
	person, err := s.personRepo.FindByID(ctx, personID)
	if err != nil {
		return nil, fmt.Errorf("人物の取得に失敗しました: %w", err)
	}
	if person == nil || person.UserID != userID {
		return nil, model.NewPersonNotFoundError(personID)
	}
	return person, nil
}

// List はユーザーの人物一覧を返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.Person, error) {
	return s.personRepo.ListByUserID(ctx, userID)
}

// UpdateInput は人物更新の入力を表す。nilフィールドは変更しない。
type UpdateInput struct {
	Name         *string
	Relationship *string
	Age          *int
	Birthday     *time.Time
	Interests    []string
	Address      *string
	Notes        *string
}

// Update は人物情報を部分更新する。
func (s *Service) Update(ctx context.Context, userID, personID string, input UpdateInput) (*model.Person, error) {
	person, err := s.Get(ctx, userID, personID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		if *input.Name == "" {
			return nil, model.NewNameRequiredError()
		}
		person.Name = *input.Name
	}
	if input.Relationship != nil {
		person.Relationship = *input.Relationship
	}
	if input.Age != nil {
		person.Age = *input.Age
	}
	if input.Birthday != nil {
		person.Birthday = input.Birthday
	}
	if input.Interests != nil {
		person.Interests = input.Interests
	}
	if input.Address != nil {
		person.Address = *input.Address
	}
	if input.Notes != nil {
		person.Notes = s.sanitizer.Sanitize(*input.Notes)
	}
	person.UpdatedAt = time.Now()

	if err := s.personRepo.Update(ctx, person); err != nil {
		return nil, fmt.Errorf("人物の更新に失敗しました: %w", err)
	}

	return person, nil
}

// Delete は人物を削除する。
// 紐付く特別な日付は削除されず、人物参照だけが外れる。
func (s *Service) Delete(ctx context.Context, userID, personID string) error {
	if _, err := s.Get(ctx, userID, personID); err != nil {
		return err
	}
	if err := s.personRepo.Delete(ctx, personID); err != nil {
		return fmt.Errorf("人物の削除に失敗しました: %w", err)
	}
	return nil
}

// ListPeopleNames はプロンプトコンテキスト用の人物名一覧を返す。
func (s *Service) ListPeopleNames(ctx context.Context, userID string) ([]string, error) {
	people, err := s.personRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(people))
	for _, person := range people {
		names = append(names, person.Name)
	}
	return names, nil
}

// parsedPersonJSON はパース結果を監査用JSON文字列に整形する。
func parsedPersonJSON(parsed *assistant.ParsedPerson) string {
	b, err := json.Marshal(parsed)
	if err != nil {
		return ""
	}
	return string(b)
}

// compile-time interface check
var _ assistant.PersonCreator = (*Service)(nil)
