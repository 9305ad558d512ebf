// Package model はギフト管理のドメインモデルを定義する。
package model

import "time"

// SpecialDate は誕生日や記念日などの特別な日付を表す。
// Personへの参照は任意で、参照先のPersonが削除されてもカスケードしない。
type SpecialDate struct {
	ID           string
	UserID       string
	PersonID     string // 任意。空文字列の場合は人に紐付かない日付
	Name         string
	Date         time.Time
	Recurrence   Recurrence
	Category     string
	ReminderDays int // リマインド開始のリードタイム（日数）
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Recurrence は特別な日付の繰り返し種別を表す。
type Recurrence string

const (
	// RecurrenceNone は繰り返しなし（1回限り）。
	RecurrenceNone Recurrence = "none"
	// RecurrenceAnnual は毎年の繰り返し。
	RecurrenceAnnual Recurrence = "annual"
	// RecurrenceQuarterly は3か月ごとの繰り返し。
	RecurrenceQuarterly Recurrence = "quarterly"
	// RecurrenceMonthly は毎月の繰り返し。
	RecurrenceMonthly Recurrence = "monthly"
)

// IsValid はRecurrenceが定義済みの値かどうかを返す。
func (r Recurrence) IsValid() bool {
	switch r {
	case RecurrenceNone, RecurrenceAnnual, RecurrenceQuarterly, RecurrenceMonthly:
		return true
	}
	return false
}

// Reminder は特別な日付に対して発火したリマインドの記録を表す。
// 同一の発生日（occurrence）に対して1回だけ記録される（冪等）。
type Reminder struct {
	ID            string
	SpecialDateID string
	UserID        string
	OccurrenceOn  time.Time // リマインド対象の発生日
	RemindedAt    time.Time
}
