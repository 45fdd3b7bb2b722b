// Package cleanup は認証監査データの保持期間超過分を削除するジョブを提供する。
// 期限切れ・消費済みのトークン行と失効済みセッション行は監査のため
// 即時削除せず、保持期間（デフォルト180日）を超えたものだけを
// 日次バッチで物理削除する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// CleanupJob は保持期間を超過した認証監査データの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	db            Executor
	logger        *slog.Logger
	RetentionDays int // 監査データの保持日数（デフォルト: 180）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの保持日数は180日。
func NewCleanupJob(db Executor, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		db:            db,
		logger:        logger,
		RetentionDays: 180,
	}
}

// Run は保持期間を超過した認証監査データを削除する。
// 有効期限切れからRetentionDays日を超えたログイントークンと、
// 無効（失効済みまたは期限切れ）になってからRetentionDays日を超えた
// セッションをDELETEする。有効なセッションは期間に関わらず削除しない。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	interval := fmt.Sprintf("%d days", j.RetentionDays)

	tokenQuery := `DELETE FROM login_tokens WHERE expires_at < now() - $1::interval`
	tokensDeleted, err := j.exec(ctx, tokenQuery, interval)
	if err != nil {
		j.logger.Error("トークンクリーンアップの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("トークンクリーンアップの実行に失敗: %w", err)
	}

	sessionQuery := `DELETE FROM sessions
		WHERE COALESCE(revoked_at, expires_at) < now() - $1::interval
		AND (revoked_at IS NOT NULL OR expires_at < now())`
	sessionsDeleted, err := j.exec(ctx, sessionQuery, interval)
	if err != nil {
		j.logger.Error("セッションクリーンアップの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("認証監査データのクリーンアップジョブが完了しました",
		slog.Int64("tokens_deleted", tokensDeleted),
		slog.Int64("sessions_deleted", sessionsDeleted),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// exec はDELETE文を実行して削除件数を返す。
func (j *CleanupJob) exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	result, err := j.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗: %w", err)
	}
	return deleted, nil
}
