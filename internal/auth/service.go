// Package auth はパスワード認証によるユーザー登録とログインを提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/ayurshop/internal/metrics"
	"github.com/hitoshi/ayurshop/internal/model"
	"github.com/hitoshi/ayurshop/internal/repository"
)

// RegisterInput はユーザー登録の入力。
type RegisterInput struct {
	Name     string
	Email    string
	Phone    string
	Password string
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	BcryptCost  int      // bcryptのコスト。0ならbcrypt.DefaultCost
	AdminEmails []string // 登録時に管理者ロールを付与するメールアドレス
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo     repository.UserRepository
	loginLogRepo repository.LoginLogRepository
	metrics      metrics.MetricsCollector
	config       ServiceConfig
	admins       map[string]struct{}
	now          func() time.Time

	dummyOnce sync.Once
	dummyHash []byte
}

// NewService はServiceを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewService(
	userRepo repository.UserRepository,
	loginLogRepo repository.LoginLogRepository,
	collector metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	if collector == nil {
		collector = metrics.NopCollector{}
	}

	admins := make(map[string]struct{}, len(config.AdminEmails))
	for _, e := range config.AdminEmails {
		if n := NormalizeEmail(e); n != "" {
			admins[n] = struct{}{}
		}
	}

	return &Service{
		userRepo:     userRepo,
		loginLogRepo: loginLogRepo,
		metrics:      collector,
		config:       config,
		admins:       admins,
		now:          time.Now,
	}
}

// NormalizeEmail はメールアドレスを比較用に正規化する（前後空白除去と小文字化）。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register はユーザーを登録し、採番されたIDを返す。
// パスワードはbcryptでハッシュ化して保存する。
// 正規化後のメールアドレスが既に存在する場合はDUPLICATE_EMAILエラーを返す。
func (s *Service) Register(ctx context.Context, in RegisterInput) (int64, error) {
	email := NormalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	if name == "" || email == "" || in.Password == "" {
		return 0, model.NewValidationError("名前、メールアドレス、パスワードは必須です")
	}

	// 1. 重複チェック（最終的な保証はDBの一意制約）
	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return 0, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return 0, model.NewDuplicateEmailError()
	}

	// 2. パスワードをハッシュ化
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.config.BcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return 0, model.NewValidationError("パスワードは72バイト以下にしてください")
		}
		return 0, fmt.Errorf("failed to hash password: %w", err)
	}

	// 3. ロールを決定して登録
	role := model.RoleCustomer
	if _, ok := s.admins[email]; ok {
		role = model.RoleAdmin
	}

	user := &model.User{
		Name:         name,
		Email:        email,
		Phone:        strings.TrimSpace(in.Phone),
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    s.now(),
	}

	id, err := s.userRepo.Create(ctx, user)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			return 0, apiErr
		}
		return 0, fmt.Errorf("failed to create user: %w", err)
	}

	s.metrics.RecordRegistration()
	slog.Info("user registered",
		slog.Int64("user_id", id),
		slog.String("role", string(role)),
	)
	return id, nil
}

// Authenticate はメールアドレスとパスワードを検証する。
// 認証に失敗した場合（ユーザー不在、パスワード不一致、空パスワード）はnil, nilを返す。
func (s *Service) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	if password == "" {
		return nil, nil
	}

	user, err := s.userRepo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if user == nil {
		// 応答時間からアカウントの有無を推測されないよう、ダミーハッシュと比較する
		_ = bcrypt.CompareHashAndPassword(s.getDummyHash(), []byte(password))
		return nil, nil
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return nil, nil
	}

	return user, nil
}

// Login は認証を行い、成功した場合はログイン監査ログを追記する。
// 認証失敗時はINVALID_CREDENTIALSエラーを返す。
// 監査ログの追記は認証とは別のコミットで行い、失敗した場合はログイン自体を失敗とする。
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if user == nil {
		s.metrics.RecordLogin(false)
		return nil, model.NewInvalidCredentialsError()
	}

	event := &model.LoginEvent{
		UserID:    user.ID,
		UserName:  user.Name,
		Email:     user.Email,
		LoginTime: s.now(),
	}
	if err := s.loginLogRepo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}

	s.metrics.RecordLogin(true)
	slog.Info("user logged in",
		slog.Int64("user_id", user.ID),
		slog.Int64("login_log_id", event.ID),
	)
	return user, nil
}

func (s *Service) getDummyHash() []byte {
	s.dummyOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte("ayurshop-dummy-password"), s.config.BcryptCost)
		if err != nil {
			slog.Error("failed to generate dummy hash", slog.String("error", err.Error()))
			return
		}
		s.dummyHash = h
	})
	return s.dummyHash
}
