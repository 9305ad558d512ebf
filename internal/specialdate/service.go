// Package specialdate は誕生日・記念日などの特別な日付の管理を提供する。
package specialdate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/giftman/internal/assistant"
	"github.com/hitoshi/giftman/internal/model"
	"github.com/hitoshi/giftman/internal/repository"
)

// defaultReminderDays はリマインド開始リードタイムの既定値。
const defaultReminderDays = 7

// Service は特別な日付のサービス層。
type Service struct {
	dateRepo   repository.SpecialDateRepository
	personRepo repository.PersonRepository
	now        func() time.Time // テスト時に差し替え可能
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(dateRepo repository.SpecialDateRepository, personRepo repository.PersonRepository) *Service {
	return &Service{
		dateRepo:   dateRepo,
		personRepo: personRepo,
		now:        time.Now,
	}
}

// CreateInput は特別な日付作成の入力を表す。
type CreateInput struct {
	PersonID     string
	Name         string
	Date         time.Time
	Recurrence   model.Recurrence
	Category     string
	ReminderDays int
}

// Create は特別な日付を作成する。人物への紐付けは任意。
func (s *Service) Create(ctx context.Context, userID string, input CreateInput) (*model.SpecialDate, error) {
	if input.Name == "" {
		return nil, model.NewNameRequiredError()
	}
	if input.Recurrence == "" {
		input.Recurrence = model.RecurrenceNone
	}
	if !input.Recurrence.IsValid() {
		return nil, model.NewInvalidRecurrenceError(string(input.Recurrence))
	}
	if input.ReminderDays <= 0 {
		input.ReminderDays = defaultReminderDays
	}

	// 紐付け先の人物は本人所有のものに限る
	if input.PersonID != "" {
		person, err := s.personRepo.FindByID(ctx, input.PersonID)
		if err != nil {
			return nil, fmt.Errorf("人物の取得に失敗しました: %w", err)
		}
		if person == nil || person.UserID != userID {
			return nil, model.NewPersonNotFoundError(input.PersonID)
		}
	}

	now := time.Now()
	date := &model.SpecialDate{
		ID:           uuid.New().String(),
		UserID:       userID,
		PersonID:     input.PersonID,
		Name:         input.Name,
		Date:         input.Date,
		Recurrence:   input.Recurrence,
		Category:     input.Category,
		ReminderDays: input.ReminderDays,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.dateRepo.Create(ctx, date); err != nil {
		return nil, fmt.Errorf("特別な日付の作成に失敗しました: %w", err)
	}

	return date, nil
}

// CreateFromParsed はAIパース結果から特別な日付を作成する。
// 人物名が既知の人物と一致する場合のみ紐付ける。
func (s *Service) CreateFromParsed(ctx context.Context, userID string, parsed *assistant.ParsedEvent) (*model.SpecialDate, error) {
	if parsed == nil || parsed.Name == "" {
		return nil, model.NewAIParseFailedError("日付情報")
	}

	date, err := time.Parse("2006-01-02", parsed.Date)
	if err != nil {
		return nil, model.NewAIParseFailedError("日付情報")
	}

	var personID string
	if parsed.PersonName != "" {
		person, err := s.personRepo.FindByUserAndName(ctx, userID, parsed.PersonName)
		if err != nil {
			return nil, fmt.Errorf("人物の検索に失敗しました: %w", err)
		}
		if person != nil {
			personID = person.ID
		}
	}

	recurrence := model.Recurrence(parsed.Recurrence)
	if !recurrence.IsValid() {
		recurrence = model.RecurrenceNone
	}

	return s.Create(ctx, userID, CreateInput{
		PersonID:   personID,
		Name:       parsed.Name,
		Date:       date,
		Recurrence: recurrence,
		Category:   parsed.Category,
	})
}

// Get は指定IDの特別な日付を取得する。
func (s *Service) Get(ctx context.Context, userID, dateID string) (*model.SpecialDate, error) {
	date, err := s.dateRepo.FindByID(ctx, dateID)
	if err != nil {
		return nil, fmt.Errorf("特別な日付の取得に失敗しました: %w", err)
	}
	if date == nil || date.UserID != userID {
		return nil, model.NewDateNotFoundError(dateID)
	}
	return date, nil
}

// List はユーザーの特別な日付一覧を返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.SpecialDate, error) {
	return s.dateRepo.ListByUserID(ctx, userID)
}

// UpcomingDate は次回発生日を付与した特別な日付を表す。
type UpcomingDate struct {
	Date           *model.SpecialDate
	NextOccurrence time.Time
}

// ListUpcoming は今後withinDays日以内に発生する特別な日付を
// 次回発生日の昇順で返す。発生予定のない1回限りの日付は含まれない。
func (s *Service) ListUpcoming(ctx context.Context, userID string, withinDays int) ([]UpcomingDate, error) {
	dates, err := s.dateRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("特別な日付の一覧取得に失敗しました: %w", err)
	}

	now := s.now()
	horizon := now.AddDate(0, 0, withinDays)
	results := make([]UpcomingDate, 0, len(dates))
	for _, date := range dates {
		next, ok := NextOccurrence(date.Date, date.Recurrence, now)
		if !ok || next.After(horizon) {
			continue
		}
		results = append(results, UpcomingDate{Date: date, NextOccurrence: next})
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].NextOccurrence.Before(results[j].NextOccurrence)
	})
	return results, nil
}

// ListByPerson は指定人物に紐付く特別な日付一覧を返す。
func (s *Service) ListByPerson(ctx context.Context, userID, personID string) ([]*model.SpecialDate, error) {
	person, err := s.personRepo.FindByID(ctx, personID)
	if err != nil {
		return nil, fmt.Errorf("人物の取得に失敗しました: %w", err)
	}
	if person == nil || person.UserID != userID {
		return nil, model.NewPersonNotFoundError(personID)
	}
	return s.dateRepo.ListByPersonID(ctx, personID)
}

// UpdateInput は特別な日付更新の入力を表す。nilフィールドは変更しない。
type UpdateInput struct {
	PersonID     *string
	Name         *string
	Date         *time.Time
	Recurrence   *model.Recurrence
	Category     *string
	ReminderDays *int
}

// Update は特別な日付を部分更新する。
func (s *Service) Update(ctx context.Context, userID, dateID string, input UpdateInput) (*model.SpecialDate, error) {
	date, err := s.Get(ctx, userID, dateID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		if *input.Name == "" {
			return nil, model.NewNameRequiredError()
		}
		date.Name = *input.Name
	}
	if input.Recurrence != nil {
		if !input.Recurrence.IsValid() {
			return nil, model.NewInvalidRecurrenceError(string(*input.Recurrence))
		}
		date.Recurrence = *input.Recurrence
	}
	if input.PersonID != nil {
		if *input.PersonID != "" {
			person, err := s.personRepo.FindByID(ctx, *input.PersonID)
			if err != nil {
				return nil, fmt.Errorf("人物の取得に失敗しました: %w", err)
			}
			if person == nil || person.UserID != userID {
				return nil, model.NewPersonNotFoundError(*input.PersonID)
			}
		}
		date.PersonID = *input.PersonID
	}
	if input.Date != nil {
		date.Date = *input.Date
	}
	if input.Category != nil {
		date.Category = *input.Category
	}
	if input.ReminderDays != nil && *input.ReminderDays > 0 {
		date.ReminderDays = *input.ReminderDays
	}
	date.UpdatedAt = time.Now()

	if err := s.dateRepo.Update(ctx, date); err != nil {
		return nil, fmt.Errorf("特別な日付の更新に失敗しました: %w", err)
	}

	return date, nil
}

// Delete は特別な日付を削除する。紐付いていた人物には影響しない。
func (s *Service) Delete(ctx context.Context, userID, dateID string) error {
	if _, err := s.Get(ctx, userID, dateID); err != nil {
		return err
	}
	if err := s.dateRepo.Delete(ctx, dateID); err != nil {
		return fmt.Errorf("特別な日付の削除に失敗しました: %w", err)
	}
	return nil
}

// ListEventNames はプロンプトコンテキスト用の日付名一覧を返す。
func (s *Service) ListEventNames(ctx context.Context, userID string) ([]string, error) {
	dates, err := s.dateRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(dates))
	for _, date := range dates {
		names = append(names, date.Name)
	}
	return names, nil
}

// compile-time interface check
var _ assistant.EventCreator = (*Service)(nil)
