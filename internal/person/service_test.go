package person

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/giftman/internal/assistant"
	"github.com/hitoshi/giftman/internal/model"
)

type mockPersonRepo struct {
	findByIDFunc     func(ctx context.Context, id string) (*model.Person, error)
	listByUserIDFunc func(ctx context.Context, userID string) ([]*model.Person, error)
	createFunc       func(ctx context.Context, person *model.Person) error
	updateFunc       func(ctx context.Context, person *model.Person) error
	deleteFunc       func(ctx context.Context, id string) error
	createCalls      int
}

func (m *mockPersonRepo) FindByID(ctx context.Context, id string) (*model.Person, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockPersonRepo) FindByUserAndName(ctx context.Context, userID, name string) (*model.Person, error) {
	return nil, nil
}

func (m *mockPersonRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Person, error) {
	if m.listByUserIDFunc != nil {
		return m.listByUserIDFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockPersonRepo) Create(ctx context.Context, person *model.Person) error {
	m.createCalls++
	if m.createFunc != nil {
		return m.createFunc(ctx, person)
	}
	return nil
}

func (m *mockPersonRepo) Update(ctx context.Context, person *model.Person) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, person)
	}
	return nil
}

func (m *mockPersonRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func (m *mockPersonRepo) DeleteByUserID(ctx context.Context, userID string) error {
	return nil
}

type passthroughSanitizer struct{}

func (passthroughSanitizer) Sanitize(rawHTML string) string { return rawHTML }

type strippingSanitizer struct{}

func (strippingSanitizer) Sanitize(rawHTML string) string {
	return strings.ReplaceAll(rawHTML, "<script>", "")
}

func TestCreate_RequiresName(t *testing.T) {
	repo := &mockPersonRepo{}
	svc := NewService(repo, passthroughSanitizer{})

	_, err := svc.Create(context.Background(), "user-1", CreateInput{Name: ""})
	if err == nil {
		t.Fatal("expected error for empty name")
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeNameRequired {
		t.Errorf("expected NAME_REQUIRED, got %s", apiErr.Code)
	}
	if repo.createCalls != 0 {
		t.Errorf("repo.Create should not be called, got %d calls", repo.createCalls)
	}
}

func TestCreate_SanitizesNotes(t *testing.T) {
	var saved *model.Person
	repo := &mockPersonRepo{
		createFunc: func(ctx context.Context, person *model.Person) error {
			saved = person
			return nil
		},
	}
	svc := NewService(repo, strippingSanitizer{})

	person, err := svc.Create(context.Background(), "user-1", CreateInput{
		Name:  "Mary",
		Notes: "<script>likes roses",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if person.Notes != "likes roses" {
		t.Errorf("notes not sanitized: %q", person.Notes)
	}
	if saved == nil {
		t.Fatal("person was not saved")
	}
	if saved.ID == "" {
		t.Error("expected generated ID")
	}
	if saved.UserID != "user-1" {
		t.Errorf("expected user-1, got %s", saved.UserID)
	}
}

func TestCreate_PreservesInterestOrder(t *testing.T) {
	var saved *model.Person
	repo := &mockPersonRepo{
		createFunc: func(ctx context.Context, person *model.Person) error {
			saved = person
			return nil
		},
	}
	svc := NewService(repo, passthroughSanitizer{})

	interests := []string{"gardening", "cooking", "reading"}
	_, err := svc.Create(context.Background(), "user-1", CreateInput{
		Name:      "Mary",
		Interests: interests,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, want := range interests {
		if saved.Interests[i] != want {
			t.Errorf("interests[%d] = %q, want %q", i, saved.Interests[i], want)
		}
	}
}

func TestCreateFromParsed(t *testing.T) {
	var saved *model.Person
	repo := &mockPersonRepo{
		createFunc: func(ctx context.Context, person *model.Person) error {
			saved = person
			return nil
		},
	}
	svc := NewService(repo, passthroughSanitizer{})

	parsed := &assistant.ParsedPerson{
		Name:         "Mary",
		Relationship: "mother",
		Age:          68,
		Birthday:     "2024-06-05",
		Interests:    []string{"gardening", "cooking"},
		Address:      "12 Rose Lane, Portland",
		Confidence:   0.92,
	}
	rawInput := "My mom Mary turns 68 next month, she loves gardening and cooking"

	person, err := svc.CreateFromParsed(context.Background(), "user-1", parsed, rawInput)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if person.Name != "Mary" {
		t.Errorf("expected Mary, got %s", person.Name)
	}
	if person.Birthday == nil || person.Birthday.Format("2006-01-02") != "2024-06-05" {
		t.Errorf("birthday not parsed: %v", person.Birthday)
	}
	if person.Address != "12 Rose Lane, Portland" {
		t.Errorf("address = %q, want %q", person.Address, "12 Rose Lane, Portland")
	}
	if saved.AIContext == nil {
		t.Fatal("expected AI context to be recorded")
	}
	if saved.AIContext.RawInput != rawInput {
		t.Errorf("raw input not preserved: %q", saved.AIContext.RawInput)
	}
	if saved.AIContext.Confidence != 0.92 {
		t.Errorf("confidence = %g, want 0.92", saved.AIContext.Confidence)
	}
	if !strings.Contains(saved.AIContext.ParsedJSON, `"Mary"`) {
		t.Errorf("parsed JSON missing name: %s", saved.AIContext.ParsedJSON)
	}
}

func TestCreateFromParsed_EmptyName(t *testing.T) {
	repo := &mockPersonRepo{}
	svc := NewService(repo, passthroughSanitizer{})

	_, err := svc.CreateFromParsed(context.Background(), "user-1", &assistant.ParsedPerson{}, "gibberish")
	if err == nil {
		t.Fatal("expected error for parsed result without name")
	}
	if repo.createCalls != 0 {
		t.Error("repo.Create should not be called")
	}
}

func TestCreateFromParsed_InvalidBirthday(t *testing.T) {
	var saved *model.Person
	repo := &mockPersonRepo{
		createFunc: func(ctx context.Context, person *model.Person) error {
			saved = person
			return nil
		},
	}
	svc := NewService(repo, passthroughSanitizer{})

	_, err := svc.CreateFromParsed(context.Background(), "user-1", &assistant.ParsedPerson{
		Name:     "Mary",
		Birthday: "next month",
	}, "raw")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved.Birthday != nil {
		t.Errorf("unparsable birthday should be dropped, got %v", saved.Birthday)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo := &mockPersonRepo{}
	svc := NewService(repo, passthroughSanitizer{})

	_, err := svc.Get(context.Background(), "user-1", "missing")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodePersonNotFound {
		t.Errorf("expected PERSON_NOT_FOUND, got %s", apiErr.Code)
	}
}

func TestGet_OtherUsersPerson(t *testing.T) {
	repo := &mockPersonRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Person, error) {
			return &model.Person{ID: id, UserID: "someone-else", Name: "Mary"}, nil
		},
	}
	svc := NewService(repo, passthroughSanitizer{})

	_, err := svc.Get(context.Background(), "user-1", "person-1")
	if err == nil {
		t.Fatal("expected not-found for another user's person")
	}
}

func TestUpdate_PartialFields(t *testing.T) {
	birthday := time.Date(1956, 6, 5, 0, 0, 0, 0, time.UTC)
	repo := &mockPersonRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Person, error) {
			return &model.Person{
				ID:           id,
				UserID:       "user-1",
				Name:         "Mary",
				Relationship: "mother",
				Age:          67,
				Birthday:     &birthday,
			}, nil
		},
	}
	svc := NewService(repo, passthroughSanitizer{})

	age := 68
	updated, err := svc.Update(context.Background(), "user-1", "person-1", UpdateInput{Age: &age})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Age != 68 {
		t.Errorf("age = %d, want 68", updated.Age)
	}
	if updated.Name != "Mary" || updated.Relationship != "mother" {
		t.Error("untouched fields changed")
	}
	if updated.Birthday == nil || !updated.Birthday.Equal(birthday) {
		t.Error("birthday should be unchanged")
	}
}

func TestUpdate_EmptyNameRejected(t *testing.T) {
	repo := &mockPersonRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Person, error) {
			return &model.Person{ID: id, UserID: "user-1", Name: "Mary"}, nil
		},
	}
	svc := NewService(repo, passthroughSanitizer{})

	empty := ""
	_, err := svc.Update(context.Background(), "user-1", "person-1", UpdateInput{Name: &empty})
	if err == nil {
		t.Fatal("expected error for empty name")
	}
}

func TestDelete_NotFound(t *testing.T) {
	repo := &mockPersonRepo{}
	svc := NewService(repo, passthroughSanitizer{})

	if err := svc.Delete(context.Background(), "user-1", "missing"); err == nil {
		t.Fatal("expected error for missing person")
	}
}

func TestListPeopleNames(t *testing.T) {
	repo := &mockPersonRepo{
		listByUserIDFunc: func(ctx context.Context, userID string) ([]*model.Person, error) {
			return []*model.Person{
				{Name: "Mary"},
				{Name: "John"},
			}, nil
		},
	}
	svc := NewService(repo, passthroughSanitizer{})

	names, err := svc.ListPeopleNames(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(names) != 2 || names[0] != "Mary" || names[1] != "John" {
		t.Errorf("unexpected names: %v", names)
	}
}
