// Package auth はマジックリンク認証フローとセッションのライフサイクル管理を提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/CaioHVectorA/professores-da-uff-sub000/internal/logger"
	"github.com/CaioHVectorA/professores-da-uff-sub000/internal/metrics"
	"github.com/CaioHVectorA/professores-da-uff-sub000/internal/model"
	"github.com/CaioHVectorA/professores-da-uff-sub000/internal/repository"
)

// userCreateRetries はユーザー作成の書き込み競合を吸収するための有限リトライ回数。
// ストレージ到達不能はこのステップでのみリトライし、それ以外は即時失敗させる。
const userCreateRetries = 3

// MessageDispatcher はログインリンクの送信インターフェース。
// 本番実装はmailerパッケージが提供する。
type MessageDispatcher interface {
	// SendLoginLink は宛先メールアドレスにマジックリンクURLを送信する。
	SendLoginLink(ctx context.Context, toEmail, linkURL string) error
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	AllowedEmailDomains []string
	LoginTokenTTL       time.Duration
	SessionTTL          time.Duration
	BaseURL             string

	// DevLoginMode が有効な場合、メール送信をスキップして
	// 生トークンをRequestLoginの結果で返す。本番では必ず無効にすること。
	DevLoginMode bool
}

// Service は認証ライフサイクル（トークン発行・検証・消費、セッション管理）の
// ビジネスロジックを提供する。
// LoginTokenとSessionの状態遷移はこのサービスだけが行う。
type Service struct {
	pepper      string
	userRepo    repository.UserRepository
	tokenRepo   repository.LoginTokenRepository
	sessionRepo repository.SessionRepository
	dispatcher  MessageDispatcher
	collector   metrics.MetricsCollector
	config      ServiceConfig

	// now はテストで時刻を固定するための時刻取得関数。
	now func() time.Time
}

// NewService はServiceを生成する。
// pepperはメールアドレスとトークンのハッシュ計算に使う静的シークレット。
func NewService(
	pepper string,
	userRepo repository.UserRepository,
	tokenRepo repository.LoginTokenRepository,
	sessionRepo repository.SessionRepository,
	dispatcher MessageDispatcher,
	collector metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	return &Service{
		pepper:      pepper,
		userRepo:    userRepo,
		tokenRepo:   tokenRepo,
		sessionRepo: sessionRepo,
		dispatcher:  dispatcher,
		collector:   collector,
		config:      config,
		now:         time.Now,
	}
}

// RequestLoginInput はログインリンクリクエストの入力。
type RequestLoginInput struct {
	Email     string
	RequestIP string
	UserAgent string
}

// LoginRequestResult はログインリンクリクエストの結果。
type LoginRequestResult struct {
	// DevToken はDevLoginMode有効時のみ設定される生トークン。
	// 本番投入時は常に空。
	DevToken string
}

// RequestLogin はログインリンクの発行とメール送信を行う。
// メールアドレスを正規化・検証し、ユーザーを遅延作成し、
// リクエストごとに新しいトークンを発行してマジックリンクを送信する。
// 許可ドメイン外の場合はINVALID_EMAIL_DOMAIN、送信失敗時はDELIVERY_FAILEDを返す。
func (s *Service) RequestLogin(ctx context.Context, input RequestLoginInput) (*LoginRequestResult, error) {
	s.collector.RecordLoginRequested()

	email := normalizeEmail(input.Email)
	if !isAllowedEmail(email, s.config.AllowedEmailDomains) {
		return nil, model.NewInvalidEmailDomainError()
	}

	emailHash := hashWithPepper(email, s.pepper)

	// 1. ユーザーの解決（存在しなければ遅延作成）
	user, err := s.resolveUser(ctx, email, emailHash)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}

	// 2. トークンの発行（リクエストごとに1行。既存トークンは再利用しない）
	secret, err := generateSecret(loginTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate login token: %w", err)
	}

	now := s.now()
	token := &model.LoginToken{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		TokenHash: hashWithPepper(secret, s.pepper),
		Purpose:   model.TokenPurposeSignin,
		RequestIP: input.RequestIP,
		UserAgent: input.UserAgent,
		ExpiresAt: now.Add(s.config.LoginTokenTTL),
		CreatedAt: now,
	}
	if err := s.tokenRepo.Create(ctx, token); err != nil {
		return nil, fmt.Errorf("failed to save login token: %w", err)
	}

	// 3. マジックリンクの組み立てと送信
	// リンクには生シークレットを埋め込む。ハッシュは決して外に出さない。
	link := s.buildLoginLink(secret)

	if s.config.DevLoginMode {
		// 開発用バイパス: 送信をスキップして生トークンを返す
		slog.Info("dev login mode: skipping mail dispatch",
			slog.String("user_id", user.ID),
			slog.String("token_ref", logger.HashRef(token.TokenHash)),
		)
		return &LoginRequestResult{DevToken: secret}, nil
	}

	if err := s.dispatcher.SendLoginLink(ctx, user.Email, link); err != nil {
		// 送信失敗時のトークン行は孤児となるが、シークレットは誰にも届かないため
		// 使用されることはなく、期限切れで論理的に無効化される。
		s.collector.RecordDeliveryFailure()
		slog.Error("failed to dispatch login link",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewDeliveryFailedError()
	}

	s.collector.RecordLoginLinkSent()
	slog.Info("login link dispatched",
		slog.String("user_id", user.ID),
		slog.String("token_ref", logger.HashRef(token.TokenHash)),
	)

	return &LoginRequestResult{}, nil
}

// VerifyInput はトークン検証の入力。
type VerifyInput struct {
	RawToken  string
	RequestIP string
	UserAgent string
}

// VerifiedSession はトークン検証成功時の結果。
// RawSessionTokenは呼び出し側がCookie等の不透明なベアラー資格情報として保存する。
// ログや永続化に平文のまま残してはならない。
type VerifiedSession struct {
	UserID          string
	RawSessionToken string
	ExpiresAt       time.Time
}

// VerifyToken はマジックリンクトークンを検証・消費し、新しいセッションを発行する。
// トークンの消費は「未使用の場合のみ」の条件付き書き込みで行うため、
// 同一トークンへの同時検証で成功するのは1件のみで、残りはTOKEN_ALREADY_USEDになる。
// セッション発行は失効・作成を1トランザクションで行い、
// ユーザーの有効セッションは常に最新の1系統に置き換える。
func (s *Service) VerifyToken(ctx context.Context, input VerifyInput) (*VerifiedSession, error) {
	tokenHash := hashWithPepper(input.RawToken, s.pepper)

	token, err := s.tokenRepo.FindByTokenHash(ctx, tokenHash)
	if err != nil {
		return nil, fmt.Errorf("failed to find login token: %w", err)
	}
	if token == nil {
		s.collector.RecordVerifyFailure(model.ErrCodeTokenNotFound)
		return nil, model.NewTokenNotFoundError()
	}

	now := s.now()
	if token.IsExpired(now) {
		s.collector.RecordVerifyFailure(model.ErrCodeTokenExpired)
		return nil, model.NewTokenExpiredError()
	}
	if token.IsUsed() {
		s.collector.RecordVerifyFailure(model.ErrCodeTokenAlreadyUsed)
		return nil, model.NewTokenAlreadyUsedError()
	}

	// 消費: 条件付きUPDATEの更新行数で勝敗を判定する。
	// 事前の使用済みチェックを通過していても、ここで負けた側は使用済み扱いになる。
	consumed, err := s.tokenRepo.Consume(ctx, token.ID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to consume login token: %w", err)
	}
	if !consumed {
		s.collector.RecordVerifyFailure(model.ErrCodeTokenAlreadyUsed)
		return nil, model.NewTokenAlreadyUsedError()
	}

	// 初回認証時刻の記録（設定済みの場合は維持される冪等操作）
	if err := s.userRepo.MarkVerified(ctx, token.UserID, now); err != nil {
		return nil, fmt.Errorf("failed to mark user verified: %w", err)
	}

	// セッション発行。ここで失敗した場合、ユーザーは認証済みだが
	// セッションを持たない状態になる。リンクの再リクエストで復旧可能。
	session, rawSessionToken, err := s.createSession(ctx, token.UserID, input, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.collector.RecordVerifySuccess()
	slog.Info("login token verified",
		slog.String("user_id", token.UserID),
		slog.String("token_ref", logger.HashRef(token.TokenHash)),
		slog.String("session_ref", logger.HashRef(session.TokenHash)),
	)

	return &VerifiedSession{
		UserID:          token.UserID,
		RawSessionToken: rawSessionToken,
		ExpiresAt:       session.ExpiresAt,
	}, nil
}

// ValidateSession はセッショントークンを検証し、ユーザーの公開射影を返す。
// セッションが存在しない・期限切れ・失効済みの場合はエラーではなくnilを返す。
// 未認証は正常な状態であり、エラーとしては扱わない。
func (s *Service) ValidateSession(ctx context.Context, rawSessionToken string) (*model.PublicUser, error) {
	if rawSessionToken == "" {
		return nil, nil
	}

	tokenHash := hashWithPepper(rawSessionToken, s.pepper)
	session, err := s.sessionRepo.FindActiveByTokenHash(ctx, tokenHash)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, nil
	}

	return user.Public(), nil
}

// Logout はセッションを失効させる。
// セッションが存在しない、または既に失効済みでもエラーにしない（冪等）。
func (s *Service) Logout(ctx context.Context, rawSessionToken string) error {
	if rawSessionToken == "" {
		return nil
	}

	tokenHash := hashWithPepper(rawSessionToken, s.pepper)
	if err := s.sessionRepo.RevokeByTokenHash(ctx, tokenHash, s.now()); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	s.collector.RecordLogout()
	return nil
}

// RevokeAllSessions は指定ユーザーの有効セッションをすべて失効させる。
// 別経路の認証フローがセッション系統を置き換える際に使用する。
func (s *Service) RevokeAllSessions(ctx context.Context, userID string) error {
	if err := s.sessionRepo.RevokeAllByUserID(ctx, userID, s.now()); err != nil {
		return fmt.Errorf("failed to revoke user sessions: %w", err)
	}
	return nil
}

// resolveUser はメールハッシュでユーザーを解決する。存在しなければ作成する。
// 同時作成の競合（ユニーク制約衝突の書き込みレース）を吸収するため有限回リトライする。
func (s *Service) resolveUser(ctx context.Context, email, emailHash string) (*model.User, error) {
	var lastErr error

	for attempt := 0; attempt < userCreateRetries; attempt++ {
		now := s.now()
		user, err := s.userRepo.CreateOrGet(ctx, &model.User{
			ID:        uuid.New().String(),
			EmailHash: emailHash,
			Email:     email,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			lastErr = err
			continue
		}
		if user != nil {
			return user, nil
		}
		// 競合相手のコミット前に挿入も取得もできなかった稀なケース。リトライする。
		lastErr = fmt.Errorf("user creation race not settled")
	}

	return nil, fmt.Errorf("gave up after %d attempts: %w", userCreateRetries, lastErr)
}

// createSession は新しいセッションを発行し、既存の有効セッションを置き換える。
func (s *Service) createSession(ctx context.Context, userID string, input VerifyInput, now time.Time) (*model.Session, string, error) {
	secret, err := generateSecret(sessionTokenBytes)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate session token: %w", err)
	}

	session := &model.Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		TokenHash: hashWithPepper(secret, s.pepper),
		RequestIP: input.RequestIP,
		UserAgent: input.UserAgent,
		ExpiresAt: now.Add(s.config.SessionTTL),
		CreatedAt: now,
	}

	if err := s.sessionRepo.CreateReplacing(ctx, session); err != nil {
		return nil, "", err
	}

	return session, secret, nil
}

// buildLoginLink は検証エンドポイントへのマジックリンクURLを組み立てる。
func (s *Service) buildLoginLink(secret string) string {
	return s.config.BaseURL + "/auth/verify?token=" + url.QueryEscape(secret)
}
