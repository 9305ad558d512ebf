// Package reminder は特別な日付のリマインド生成処理を提供する。
package reminder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/giftman/internal/metrics"
	"github.com/hitoshi/giftman/internal/model"
	"github.com/hitoshi/giftman/internal/repository"
	"github.com/hitoshi/giftman/internal/specialdate"
)

// Scheduler はリマインド対象の特別な日付を定期的に走査する。
// 次回発生日がリードタイム内に入った日付に対してリマインドを記録する。
// 同一発生日への記録は冪等で、再走査しても重複しない。
type Scheduler struct {
	dateRepo       repository.SpecialDateRepository
	reminderRepo   repository.ReminderRepository
	collector      metrics.MetricsCollector
	logger         *slog.Logger
	maxConcurrency int
	now            func() time.Time
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値10を使用する。
func NewScheduler(
	dateRepo repository.SpecialDateRepository,
	reminderRepo repository.ReminderRepository,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	maxConcurrency int,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 10
	}
	return &Scheduler{
		dateRepo:       dateRepo,
		reminderRepo:   reminderRepo,
		collector:      collector,
		logger:         logger,
		maxConcurrency: maxConcurrency,
		now:            time.Now,
	}
}

// Start はティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("リマインドスケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("リマインドサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("リマインドスケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("リマインドサイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は全特別な日付を1回走査し、リードタイム内の日付に並列でリマインドを記録する。
// semaphoreパターンで最大並列数を制御する。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := s.now()

	dates, err := s.dateRepo.ListAll(ctx)
	if err != nil {
		return err
	}

	if len(dates) == 0 {
		s.logger.Info("リマインド対象の日付はありません")
		return nil
	}

	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for _, date := range dates {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(d *model.SpecialDate) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			if err := s.remindIfDue(ctx, d); err != nil {
				s.logger.Error("リマインドの記録に失敗しました",
					slog.String("date_id", d.ID),
					slog.String("date_name", d.Name),
					slog.String("error", err.Error()),
				)
			}
		}(date)
	}

	wg.Wait()

	duration := time.Since(start)
	s.logger.Info("リマインドサイクルが完了しました",
		slog.Int("date_count", len(dates)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// remindIfDue は次回発生日がリードタイム内であればリマインドを記録する。
// ON CONFLICTにより同一発生日への記録は1回だけ行われる。
func (s *Scheduler) remindIfDue(ctx context.Context, date *model.SpecialDate) error {
	now := s.now()

	occurrence, ok := specialdate.NextOccurrence(date.Date, date.Recurrence, now)
	if !ok {
		return nil // 過去の1回限りの日付
	}

	lead := time.Duration(date.ReminderDays) * 24 * time.Hour
	if occurrence.Sub(now) > lead {
		return nil
	}

	created, err := s.reminderRepo.CreateIfAbsent(ctx, &model.Reminder{
		ID:            uuid.New().String(),
		SpecialDateID: date.ID,
		UserID:        date.UserID,
		OccurrenceOn:  occurrence,
		RemindedAt:    now,
	})
	if err != nil {
		return err
	}
	if !created {
		return nil // この発生日は既にリマインド済み
	}

	s.collector.RecordReminderSent()
	s.logger.Info("リマインドを記録しました",
		slog.String("date_id", date.ID),
		slog.String("date_name", date.Name),
		slog.String("user_id", date.UserID),
		slog.Time("occurrence_on", occurrence),
	)
	return nil
}
