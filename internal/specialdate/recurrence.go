package specialdate

import (
	"time"

	"github.com/hitoshi/giftman/internal/model"
)

// NextOccurrence は基準日afterより後の最初の発生日を返す。
// 繰り返しなしの日付が既に過ぎている場合はok=falseを返す。
// 月末由来の日付（31日や2月29日など）は短い月では月末に丸める。
func NextOccurrence(date time.Time, recurrence model.Recurrence, after time.Time) (time.Time, bool) {
	date = truncateToDay(date)
	after = truncateToDay(after)

	switch recurrence {
	case model.RecurrenceNone:
		if date.After(after) {
			return date, true
		}
		return time.Time{}, false

	case model.RecurrenceAnnual:
		next := occurrenceInYear(date, after.Year())
		if !next.After(after) {
			next = occurrenceInYear(date, after.Year()+1)
		}
		return next, true

	case model.RecurrenceQuarterly:
		return nextByMonths(date, after, 3), true

	case model.RecurrenceMonthly:
		return nextByMonths(date, after, 1), true
	}

	return time.Time{}, false
}

// occurrenceInYear は指定年での発生日を返す。2月29日は平年では2月28日になる。
func occurrenceInYear(date time.Time, year int) time.Time {
	day := clampDay(year, date.Month(), date.Day())
	return time.Date(year, date.Month(), day, 0, 0, 0, 0, date.Location())
}

// nextByMonths は元の日付からstepヶ月刻みで進めて、afterより後の最初の発生日を返す。
// 発生日の「日」は常に元の日付の「日」を基準に短い月へ丸める。
// AddDateの正規化（1月31日+1ヶ月=3月3日）を避けるため、年月を直接計算する。
func nextByMonths(date time.Time, after time.Time, step int) time.Time {
	if date.After(after) {
		return date
	}

	// 元の日付からの経過月数を求め、次のステップ境界まで進める
	months := (after.Year()-date.Year())*12 + int(after.Month()) - int(date.Month())
	months = (months / step) * step

	for {
		year := date.Year() + (int(date.Month())-1+months)/12
		month := time.Month((int(date.Month())-1+months)%12 + 1)
		day := clampDay(year, month, date.Day())
		next := time.Date(year, month, day, 0, 0, 0, 0, date.Location())
		if next.After(after) {
			return next
		}
		months += step
	}
}

// clampDay は指定年月に存在する日に丸める。
func clampDay(year int, month time.Month, day int) int {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		return last
	}
	return day
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
