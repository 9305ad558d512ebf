// Package cleanup は期限切れデータの自動削除ジョブを提供する。
// 期限切れセッションと保持期間（デフォルト90日）を超過したリマインド記録を
// 日次バッチで削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/giftman/internal/repository"
)

// CleanupJob は期限切れデータの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	sessionRepo   repository.SessionRepository
	reminderRepo  repository.ReminderRepository
	logger        *slog.Logger
	RetentionDays int // リマインド記録の保持日数（デフォルト: 90）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの保持日数は90日。
func NewCleanupJob(sessionRepo repository.SessionRepository, reminderRepo repository.ReminderRepository, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		sessionRepo:   sessionRepo,
		reminderRepo:  reminderRepo,
		logger:        logger,
		RetentionDays: 90,
	}
}

// Run は期限切れセッションと古いリマインド記録を削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	expiredSessions, err := j.sessionRepo.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("期限切れセッションの削除に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("期限切れセッションの削除に失敗: %w", err)
	}

	before := time.Now().AddDate(0, 0, -j.RetentionDays)
	oldReminders, err := j.reminderRepo.DeleteOlderThan(ctx, before)
	if err != nil {
		j.logger.Error("リマインド記録の削除に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("リマインド記録の削除に失敗: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("deleted_sessions", expiredSessions),
		slog.Int64("deleted_reminders", oldReminders),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
