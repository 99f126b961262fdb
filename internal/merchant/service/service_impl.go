package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/smallbiznis/paygate/internal/clock"
	"github.com/smallbiznis/paygate/internal/config"
	merchantdomain "github.com/smallbiznis/paygate/internal/merchant/domain"
	"github.com/smallbiznis/paygate/internal/observability/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	apiKeyPrefix    = "pk_"
	apiSecretPrefix = "sk_"
	apiKeyBytes     = 16
	apiSecretBytes  = 24
	tokenType       = "Bearer"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Clock  clock.Clock
	Repo   merchantdomain.Repository
	Config config.Config
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	repo      merchantdomain.Repository
	jwt       config.JWTConfig
	secret    []byte
	cost      int
	dummyOnce sync.Once
	dummyHash string
}

func New(p Params) (merchantdomain.Service, error) {
	return newService(p)
}

func newService(p Params) (*Service, error) {
	log := p.Log.Named("merchant.service")

	secret := strings.TrimSpace(p.Config.JWT.Secret)
	if secret == "" {
		if p.Config.IsProduction() {
			return nil, merchantdomain.ErrSigningKeyMissing
		}
		generated, err := randomHex(32)
		if err != nil {
			return nil, err
		}
		secret = generated
		log.Warn("JWT_SECRET not set, using an ephemeral signing key")
	}

	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}

	s := &Service{
		db:     p.DB,
		log:    log,
		clock:  clk,
		repo:   p.Repo,
		jwt:    p.Config.JWT,
		secret: []byte(secret),
		cost:   bcrypt.DefaultCost,
	}
	if s.jwt.Expiry <= 0 {
		s.jwt.Expiry = 24 * time.Hour
	}
	return s, nil
}

func (s *Service) Create(ctx context.Context, req merchantdomain.CreateRequest) (*merchantdomain.Credentials, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || utf8.RuneCountInString(name) > merchantdomain.MaxNameLength {
		return nil, merchantdomain.ErrInvalidName
	}

	apiKey, apiSecret, hash, err := s.generateCredentials()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	m := &merchantdomain.Merchant{
		ID:            uuid.New(),
		Name:          name,
		APIKey:        apiKey,
		APISecretHash: hash,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Insert(ctx, s.db, m); err != nil {
		return nil, err
	}

	logger.WithContext(ctx, s.log).Info("merchant created",
		zap.String("merchant_id", m.ID.String()),
		zap.String("api_key", m.APIKey),
	)
	return &merchantdomain.Credentials{MerchantID: m.ID, Name: m.Name, APIKey: apiKey, APISecret: apiSecret}, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*merchantdomain.Response, error) {
	m, err := s.load(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	resp := toResponse(m)
	return &resp, nil
}

// Authenticate exchanges API credentials for a signed access token.
func (s *Service) Authenticate(ctx context.Context, req merchantdomain.LoginRequest) (*merchantdomain.Token, error) {
	log := logger.WithContext(ctx, s.log)
	apiKey := strings.TrimSpace(req.APIKey)
	if apiKey == "" || req.APISecret == "" {
		return nil, merchantdomain.ErrInvalidCredentials
	}

	m, err := s.repo.FindByAPIKey(ctx, s.db, apiKey)
	if err != nil {
		return nil, err
	}
	if m == nil {
		// Compare anyway so unknown keys cost the same as wrong secrets.
		merchantdomain.VerifySecret(s.placeholderHash(), req.APISecret)
		log.Warn("login with unknown api key")
		return nil, merchantdomain.ErrInvalidCredentials
	}
	if !merchantdomain.VerifySecret(m.APISecretHash, req.APISecret) {
		log.Warn("login with invalid secret", zap.String("merchant_id", m.ID.String()))
		return nil, merchantdomain.ErrInvalidCredentials
	}
	if !m.IsActive {
		return nil, merchantdomain.ErrInactive
	}

	now := s.clock.Now()
	expiresAt := now.Add(s.jwt.Expiry)
	claims := merchantdomain.Claims{
		MerchantID:   m.ID.String(),
		MerchantName: m.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.jwt.Issuer,
			Subject:   m.ID.String(),
			Audience:  jwt.ClaimStrings{s.jwt.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, err
	}

	log.Info("merchant authenticated", zap.String("merchant_id", m.ID.String()))
	return &merchantdomain.Token{
		AccessToken: signed,
		TokenType:   tokenType,
		ExpiresAt:   expiresAt,
		MerchantID:  m.ID,
	}, nil
}

// ParseToken validates signature, issuer, audience and expiry.
func (s *Service) ParseToken(ctx context.Context, token string) (*merchantdomain.Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	}
	if s.jwt.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.jwt.Issuer))
	}
	if s.jwt.Audience != "" {
		opts = append(opts, jwt.WithAudience(s.jwt.Audience))
	}

	claims := &merchantdomain.Claims{}
	parsed, err := jwt.ParseWithClaims(strings.TrimSpace(token), claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return nil, merchantdomain.ErrInvalidToken
	}
	if _, err := uuid.Parse(claims.MerchantID); err != nil {
		return nil, merchantdomain.ErrInvalidToken
	}
	return claims, nil
}

func (s *Service) Activate(ctx context.Context, id uuid.UUID) error {
	return s.setActive(ctx, id, true)
}

func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	return s.setActive(ctx, id, false)
}

func (s *Service) setActive(ctx context.Context, id uuid.UUID, active bool) error {
	m, err := s.load(ctx, s.db, id)
	if err != nil {
		return err
	}
	if m.IsActive == active {
		return nil
	}
	m.IsActive = active
	m.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, m); err != nil {
		return err
	}
	logger.WithContext(ctx, s.log).Info("merchant status changed",
		zap.String("merchant_id", id.String()),
		zap.Bool("active", active),
	)
	return nil
}

// RotateCredentials replaces the key pair. The old pair stops working at once.
func (s *Service) RotateCredentials(ctx context.Context, id uuid.UUID) (*merchantdomain.Credentials, error) {
	var result *merchantdomain.Credentials
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}

		apiKey, apiSecret, hash, err := s.generateCredentials()
		if err != nil {
			return err
		}
		m.APIKey = apiKey
		m.APISecretHash = hash
		m.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(ctx, tx, m); err != nil {
			return err
		}

		result = &merchantdomain.Credentials{MerchantID: m.ID, Name: m.Name, APIKey: apiKey, APISecret: apiSecret}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.WithContext(ctx, s.log).Info("merchant credentials rotated", zap.String("merchant_id", id.String()))
	return result, nil
}

func (s *Service) load(ctx context.Context, db *gorm.DB, id uuid.UUID) (*merchantdomain.Merchant, error) {
	if id == uuid.Nil {
		return nil, merchantdomain.ErrInvalidMerchantID
	}
	m, err := s.repo.FindByID(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, merchantdomain.ErrNotFound
	}
	return m, nil
}

func (s *Service) generateCredentials() (apiKey, apiSecret, hash string, err error) {
	keyPart, err := randomHex(apiKeyBytes)
	if err != nil {
		return "", "", "", err
	}
	secretPart, err := randomHex(apiSecretBytes)
	if err != nil {
		return "", "", "", err
	}
	apiKey = apiKeyPrefix + keyPart
	apiSecret = apiSecretPrefix + secretPart
	hash, err = merchantdomain.HashSecret(apiSecret, s.cost)
	if err != nil {
		return "", "", "", err
	}
	return apiKey, apiSecret, hash, nil
}

func (s *Service) placeholderHash() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = merchantdomain.HashSecret("placeholder", s.cost)
	})
	return s.dummyHash
}

func toResponse(m *merchantdomain.Merchant) merchantdomain.Response {
	return merchantdomain.Response{
		ID:        m.ID,
		Name:      m.Name,
		APIKey:    m.APIKey,
		IsActive:  m.IsActive,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
