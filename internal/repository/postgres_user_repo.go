package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/CaioHVectorA/professores-da-uff-sub000/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email_hash, COALESCE(email, ''), verified_at, is_admin, created_at, updated_at
		 FROM users WHERE id = $1`,
		id,
	).Scan(&user.ID, &user.EmailHash, &user.Email, &user.VerifiedAt, &user.IsAdmin, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	return user, nil
}

// FindByEmailHash はメールハッシュでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmailHash(ctx context.Context, emailHash string) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email_hash, COALESCE(email, ''), verified_at, is_admin, created_at, updated_at
		 FROM users WHERE email_hash = $1`,
		emailHash,
	).Scan(&user.ID, &user.EmailHash, &user.Email, &user.VerifiedAt, &user.IsAdmin, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email hash: %w", err)
	}

	return user, nil
}

// CreateOrGet はユーザーを作成するか、同一email_hashの既存行を返す。
// INSERT ... ON CONFLICT DO NOTHINGで挿入を試み、競合した場合は既存行を再取得する。
// 同時に同じメールアドレスでリクエストされてもユーザー行は1つしか作られない。
func (r *PostgresUserRepo) CreateOrGet(ctx context.Context, user *model.User) (*model.User, error) {
	created := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (id, email_hash, email, is_admin, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (email_hash) DO NOTHING
		 RETURNING id, email_hash, COALESCE(email, ''), verified_at, is_admin, created_at, updated_at`,
		user.ID, user.EmailHash, user.Email, user.IsAdmin, user.CreatedAt, user.UpdatedAt,
	).Scan(&created.ID, &created.EmailHash, &created.Email, &created.VerifiedAt, &created.IsAdmin, &created.CreatedAt, &created.UpdatedAt)

	if err == nil {
		return created, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	// ON CONFLICT DO NOTHINGにより挿入されなかった場合は既存行を返す。
	// ここでnilが返るのは競合相手がコミット前の稀なタイミングのみで、
	// その場合は呼び出し側の有限リトライで吸収する。
	return r.FindByEmailHash(ctx, user.EmailHash)
}

// MarkVerified はユーザーの初回認証時刻を記録する。
// COALESCEにより既存のverified_atは上書きしない（再認証は無害な冪等操作）。
func (r *PostgresUserRepo) MarkVerified(ctx context.Context, id string, verifiedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET verified_at = COALESCE(verified_at, $2), updated_at = now() WHERE id = $1`,
		id, verifiedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to mark user verified: %w", err)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
