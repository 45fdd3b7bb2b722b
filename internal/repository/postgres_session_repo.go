package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/CaioHVectorA/professores-da-uff-sub000/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用したセッションリポジトリ。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// CreateReplacing は同一ユーザーの有効セッションをすべて失効させた上で
// 新しいセッションを作成する。失効と作成は同一トランザクションで実行し、
// 常にユーザーあたり有効セッションが1系統になるようにする。
func (r *PostgresSessionRepo) CreateReplacing(ctx context.Context, session *model.Session) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = $2 WHERE user_id = $1 AND revoked_at IS NULL`,
		session.UserID, session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke prior sessions: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, token_hash, request_ip, user_agent, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		session.ID, session.UserID, session.TokenHash,
		session.RequestIP, session.UserAgent, session.ExpiresAt, session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// FindActiveByTokenHash はトークンハッシュで有効なセッションを検索する。
// 失効済み・期限切れ・未存在の場合はnilを返す。
func (r *PostgresSessionRepo) FindActiveByTokenHash(ctx context.Context, tokenHash string) (*model.Session, error) {
	session := &model.Session{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, token_hash, request_ip, user_agent, expires_at, revoked_at, created_at
		 FROM sessions
		 WHERE token_hash = $1 AND revoked_at IS NULL AND expires_at > now()`,
		tokenHash,
	).Scan(&session.ID, &session.UserID, &session.TokenHash,
		&session.RequestIP, &session.UserAgent, &session.ExpiresAt, &session.RevokedAt, &session.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	return session, nil
}

// RevokeByTokenHash はトークンハッシュに一致するセッションを失効させる。
// 該当行が存在しない、または既に失効済みでも成功として扱う（冪等）。
func (r *PostgresSessionRepo) RevokeByTokenHash(ctx context.Context, tokenHash string, revokedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = $2 WHERE token_hash = $1 AND revoked_at IS NULL`,
		tokenHash, revokedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// RevokeAllByUserID は指定ユーザーの有効セッションをすべて失効させる。
func (r *PostgresSessionRepo) RevokeAllByUserID(ctx context.Context, userID string, revokedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = $2 WHERE user_id = $1 AND revoked_at IS NULL`,
		userID, revokedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke user sessions: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
