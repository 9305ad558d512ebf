package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/giftman/internal/model"
)

// PostgresPersonRepo はPostgreSQLを使用した人物リポジトリ。
type PostgresPersonRepo struct {
	db *sql.DB
}

// NewPostgresPersonRepo はPostgresPersonRepoを生成する。
func NewPostgresPersonRepo(db *sql.DB) *PostgresPersonRepo {
	return &PostgresPersonRepo{db: db}
}

const personColumns = `id, user_id, name, relationship, age, birthday, interests,
	        address, notes, ai_context, created_at, updated_at`

// FindByID は指定IDの人物を取得する。見つからない場合はnilを返す。
func (r *PostgresPersonRepo) FindByID(ctx context.Context, id string) (*model.Person, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+personColumns+` FROM people WHERE id = $1`,
		id,
	)
	person, err := scanPerson(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("人物の取得に失敗しました: %w", err)
	}
	return person, nil
}

// FindByUserAndName はユーザーIDと名前（完全一致）で人物を検索する。見つからない場合はnilを返す。
func (r *PostgresPersonRepo) FindByUserAndName(ctx context.Context, userID, name string) (*model.Person, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+personColumns+` FROM people WHERE user_id = $1 AND name = $2`,
		userID, name,
	)
	person, err := scanPerson(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("名前による人物の検索に失敗しました: %w", err)
	}
	return person, nil
}

// ListByUserID はユーザーの人物一覧を名前昇順で返す。
func (r *PostgresPersonRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Person, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+personColumns+` FROM people WHERE user_id = $1 ORDER BY name ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("人物一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var people []*model.Person
	for rows.Next() {
		person, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("人物一覧の読み取りに失敗しました: %w", err)
		}
		people = append(people, person)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("人物一覧の走査に失敗しました: %w", err)
	}
	return people, nil
}

// Create は人物を作成する。
func (r *PostgresPersonRepo) Create(ctx context.Context, person *model.Person) error {
	aiContext, err := marshalAIContext(person.AIContext)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO people (id, user_id, name, relationship, age, birthday, interests,
		                     address, notes, ai_context, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		person.ID, person.UserID, person.Name, person.Relationship,
		person.Age, person.Birthday, pq.Array(person.Interests),
		person.Address, person.Notes, aiContext,
		person.CreatedAt, person.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("人物の作成に失敗しました: %w", err)
	}
	return nil
}

// Update は人物情報を更新する。
func (r *PostgresPersonRepo) Update(ctx context.Context, person *model.Person) error {
	aiContext, err := marshalAIContext(person.AIContext)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE people SET
		    name = $2, relationship = $3, age = $4, birthday = $5,
		    interests = $6, address = $7, notes = $8, ai_context = $9,
		    updated_at = $10
		 WHERE id = $1`,
		person.ID, person.Name, person.Relationship, person.Age, person.Birthday,
		pq.Array(person.Interests), person.Address, person.Notes, aiContext,
		person.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("人物の更新に失敗しました: %w", err)
	}
	return nil
}

// Delete は指定IDの人物を削除する。
func (r *PostgresPersonRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM people WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("人物の削除に失敗しました: %w", err)
	}
	return nil
}

// DeleteByUserID はユーザーの全人物を削除する。
func (r *PostgresPersonRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM people WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの人物削除に失敗しました: %w", err)
	}
	return nil
}

// rowScanner はsql.Rowとsql.Rowsの共通スキャンインターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanPerson は1行分の人物データをスキャンする。
func scanPerson(row rowScanner) (*model.Person, error) {
	person := &model.Person{}
	var interests pq.StringArray
	var aiContext []byte

	err := row.Scan(
		&person.ID, &person.UserID, &person.Name, &person.Relationship,
		&person.Age, &person.Birthday, &interests,
		&person.Address, &person.Notes, &aiContext,
		&person.CreatedAt, &person.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	person.Interests = []string(interests)
	if len(aiContext) > 0 {
		parsed := &model.AIContext{}
		if err := json.Unmarshal(aiContext, parsed); err != nil {
			return nil, fmt.Errorf("AIコンテキストの読み取りに失敗しました: %w", err)
		}
		person.AIContext = parsed
	}

	return person, nil
}

// marshalAIContext はAIContextをJSONB格納用のバイト列に変換する。nilの場合はnilを返す。
func marshalAIContext(aiContext *model.AIContext) ([]byte, error) {
	if aiContext == nil {
		return nil, nil
	}
	data, err := json.Marshal(aiContext)
	if err != nil {
		return nil, fmt.Errorf("AIコンテキストの変換に失敗しました: %w", err)
	}
	return data, nil
}

// compile-time interface check
var _ PersonRepository = (*PostgresPersonRepo)(nil)
