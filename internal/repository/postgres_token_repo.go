package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/CaioHVectorA/professores-da-uff-sub000/internal/model"
)

// PostgresLoginTokenRepo はPostgreSQLを使用したマジックリンクトークンリポジトリ。
type PostgresLoginTokenRepo struct {
	db *sql.DB
}

// NewPostgresLoginTokenRepo はPostgresLoginTokenRepoを生成する。
func NewPostgresLoginTokenRepo(db *sql.DB) *PostgresLoginTokenRepo {
	return &PostgresLoginTokenRepo{db: db}
}

// Create はトークンを作成する。
func (r *PostgresLoginTokenRepo) Create(ctx context.Context, token *model.LoginToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO login_tokens (id, user_id, token_hash, purpose, request_ip, user_agent, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		token.ID, token.UserID, token.TokenHash, token.Purpose,
		token.RequestIP, token.UserAgent, token.ExpiresAt, token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create login token: %w", err)
	}
	return nil
}

// FindByTokenHash はトークンハッシュでトークンを検索する。見つからない場合はnilを返す。
// 期限切れ・使用済みの行もそのまま返し、状態判定はサービス層で行う
// （未検出と期限切れを別のエラーコードで区別するため）。
func (r *PostgresLoginTokenRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.LoginToken, error) {
	token := &model.LoginToken{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, token_hash, purpose, request_ip, user_agent, expires_at, used_at, created_at
		 FROM login_tokens
		 WHERE token_hash = $1`,
		tokenHash,
	).Scan(&token.ID, &token.UserID, &token.TokenHash, &token.Purpose,
		&token.RequestIP, &token.UserAgent, &token.ExpiresAt, &token.UsedAt, &token.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find login token: %w", err)
	}

	return token, nil
}

// Consume はトークンを消費済みにする。
// 「未使用の場合のみ」の条件付きUPDATEを1文で発行し、更新行数で成否を判定する。
// read-then-writeは行わないため、同一トークンへの同時消費で成功するのは常に1件のみ。
func (r *PostgresLoginTokenRepo) Consume(ctx context.Context, id string, usedAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE login_tokens SET used_at = $2 WHERE id = $1 AND used_at IS NULL`,
		id, usedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to consume login token: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

// compile-time interface check
var _ LoginTokenRepository = (*PostgresLoginTokenRepo)(nil)
