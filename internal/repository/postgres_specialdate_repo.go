package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/giftman/internal/model"
)

// PostgresSpecialDateRepo はPostgreSQLを使用した特別な日付リポジトリ。
type PostgresSpecialDateRepo struct {
	db *sql.DB
}

// NewPostgresSpecialDateRepo はPostgresSpecialDateRepoを生成する。
func NewPostgresSpecialDateRepo(db *sql.DB) *PostgresSpecialDateRepo {
	return &PostgresSpecialDateRepo{db: db}
}

const specialDateColumns = `id, user_id, person_id, name, date, recurrence, category,
	        reminder_days, created_at, updated_at`

// FindByID は指定IDの特別な日付を取得する。見つからない場合はnilを返す。
func (r *PostgresSpecialDateRepo) FindByID(ctx context.Context, id string) (*model.SpecialDate, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+specialDateColumns+` FROM special_dates WHERE id = $1`,
		id,
	)
	date, err := scanSpecialDate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("特別な日付の取得に失敗しました: %w", err)
	}
	return date, nil
}

// ListByUserID はユーザーの特別な日付一覧を日付昇順で返す。
func (r *PostgresSpecialDateRepo) ListByUserID(ctx context.Context, userID string) ([]*model.SpecialDate, error) {
	return r.list(ctx,
		`SELECT `+specialDateColumns+` FROM special_dates WHERE user_id = $1 ORDER BY date ASC`,
		userID,
	)
}

// ListByPersonID は指定の人物に紐付く特別な日付一覧を返す。
func (r *PostgresSpecialDateRepo) ListByPersonID(ctx context.Context, personID string) ([]*model.SpecialDate, error) {
	return r.list(ctx,
		`SELECT `+specialDateColumns+` FROM special_dates WHERE person_id = $1 ORDER BY date ASC`,
		personID,
	)
}

// ListAll は全ユーザーの特別な日付を返す。リマインドワーカーが使用する。
func (r *PostgresSpecialDateRepo) ListAll(ctx context.Context) ([]*model.SpecialDate, error) {
	return r.list(ctx,
		`SELECT `+specialDateColumns+` FROM special_dates ORDER BY date ASC`,
	)
}

func (r *PostgresSpecialDateRepo) list(ctx context.Context, query string, args ...any) ([]*model.SpecialDate, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("特別な日付一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var dates []*model.SpecialDate
	for rows.Next() {
		date, err := scanSpecialDate(rows)
		if err != nil {
			return nil, fmt.Errorf("特別な日付一覧の読み取りに失敗しました: %w", err)
		}
		dates = append(dates, date)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("特別な日付一覧の走査に失敗しました: %w", err)
	}
	return dates, nil
}

// Create は特別な日付を作成する。
func (r *PostgresSpecialDateRepo) Create(ctx context.Context, date *model.SpecialDate) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO special_dates (id, user_id, person_id, name, date, recurrence,
		                            category, reminder_days, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		date.ID, date.UserID, nullString(date.PersonID), date.Name, date.Date,
		date.Recurrence, date.Category, date.ReminderDays,
		date.CreatedAt, date.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("特別な日付の作成に失敗しました: %w", err)
	}
	return nil
}

// Update は特別な日付を更新する。
func (r *PostgresSpecialDateRepo) Update(ctx context.Context, date *model.SpecialDate) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE special_dates SET
		    person_id = $2, name = $3, date = $4, recurrence = $5,
		    category = $6, reminder_days = $7, updated_at = $8
		 WHERE id = $1`,
		date.ID, nullString(date.PersonID), date.Name, date.Date,
		date.Recurrence, date.Category, date.ReminderDays, date.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("特別な日付の更新に失敗しました: %w", err)
	}
	return nil
}

// Delete は指定IDの特別な日付を削除する。
func (r *PostgresSpecialDateRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM special_dates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("特別な日付の削除に失敗しました: %w", err)
	}
	return nil
}

// DeleteByUserID はユーザーの全特別な日付を削除する。
func (r *PostgresSpecialDateRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM special_dates WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの特別な日付削除に失敗しました: %w", err)
	}
	return nil
}

// scanSpecialDate は1行分の特別な日付データをスキャンする。
func scanSpecialDate(row rowScanner) (*model.SpecialDate, error) {
	date := &model.SpecialDate{}
	var personID sql.NullString

	err := row.Scan(
		&date.ID, &date.UserID, &personID, &date.Name, &date.Date,
		&date.Recurrence, &date.Category, &date.ReminderDays,
		&date.CreatedAt, &date.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	date.PersonID = nullStringValue(personID)
	return date, nil
}

// PostgresReminderRepo はPostgreSQLを使用したリマインド記録リポジトリ。
type PostgresReminderRepo struct {
	db *sql.DB
}

// NewPostgresReminderRepo はPostgresReminderRepoを生成する。
func NewPostgresReminderRepo(db *sql.DB) *PostgresReminderRepo {
	return &PostgresReminderRepo{db: db}
}

// CreateIfAbsent はリマインド記録を冪等に作成する。
// 同一の (special_date_id, occurrence_on) が既に存在する場合は偽を返し何もしない。
func (r *PostgresReminderRepo) CreateIfAbsent(ctx context.Context, reminder *model.Reminder) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO reminders (id, special_date_id, user_id, occurrence_on, reminded_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (special_date_id, occurrence_on) DO NOTHING`,
		reminder.ID, reminder.SpecialDateID, reminder.UserID,
		reminder.OccurrenceOn, reminder.RemindedAt,
	)
	if err != nil {
		return false, fmt.Errorf("リマインド記録の作成に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("リマインド記録の作成結果の確認に失敗しました: %w", err)
	}
	return affected > 0, nil
}

// ListByUserID はユーザーのリマインド記録をreminded_at降順で返す。
func (r *PostgresReminderRepo) ListByUserID(ctx context.Context, userID string, limit int) ([]*model.Reminder, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, special_date_id, user_id, occurrence_on, reminded_at
		 FROM reminders WHERE user_id = $1
		 ORDER BY reminded_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("リマインド記録一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var reminders []*model.Reminder
	for rows.Next() {
		reminder := &model.Reminder{}
		if err := rows.Scan(
			&reminder.ID, &reminder.SpecialDateID, &reminder.UserID,
			&reminder.OccurrenceOn, &reminder.RemindedAt,
		); err != nil {
			return nil, fmt.Errorf("リマインド記録の読み取りに失敗しました: %w", err)
		}
		reminders = append(reminders, reminder)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("リマインド記録の走査に失敗しました: %w", err)
	}
	return reminders, nil
}

// DeleteOlderThan は指定日時より古いリマインド記録を削除し、削除件数を返す。
func (r *PostgresReminderRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM reminders WHERE reminded_at < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("古いリマインド記録の削除に失敗しました: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("リマインド記録の削除件数の確認に失敗しました: %w", err)
	}
	return deleted, nil
}

// compile-time interface check
var _ SpecialDateRepository = (*PostgresSpecialDateRepo)(nil)
var _ ReminderRepository = (*PostgresReminderRepo)(nil)
