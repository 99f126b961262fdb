package domain

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const MaxNameLength = 100

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Credentials, error)
	Get(ctx context.Context, id uuid.UUID) (*Response, error)
	Authenticate(ctx context.Context, req LoginRequest) (*Token, error)
	ParseToken(ctx context.Context, token string) (*Claims, error)
	Activate(ctx context.Context, id uuid.UUID) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	RotateCredentials(ctx context.Context, id uuid.UUID) (*Credentials, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, m *Merchant) error
	Update(ctx context.Context, db *gorm.DB, m *Merchant) error
	FindByID(ctx context.Context, db *gorm.DB, id uuid.UUID) (*Merchant, error)
	FindByAPIKey(ctx context.Context, db *gorm.DB, apiKey string) (*Merchant, error)
}

type CreateRequest struct {
	Name string `json:"name"`
}

type LoginRequest struct {
	APIKey    string `json:"apiKey"`
	APISecret string `json:"apiSecret"`
}

type Response struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	APIKey    string    `json:"apiKey"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Credentials carries the plain API secret. It is only returned once.
type Credentials struct {
	MerchantID uuid.UUID `json:"merchantId"`
	Name       string    `json:"name"`
	APIKey     string    `json:"apiKey"`
	APISecret  string    `json:"apiSecret"`
}

type Token struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	ExpiresAt   time.Time `json:"expiresAt"`
	MerchantID  uuid.UUID `json:"merchantId"`
}

// Claims are the merchant claims carried in access tokens.
type Claims struct {
	MerchantID   string `json:"merchant_id"`
	MerchantName string `json:"merchant_name"`
	jwt.RegisteredClaims
}

var (
	ErrInvalidName        = errors.New("invalid_name")
	ErrInvalidMerchantID  = errors.New("invalid_merchant_id")
	ErrNotFound           = errors.New("merchant_not_found")
	ErrInactive           = errors.New("merchant_inactive")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidToken       = errors.New("invalid_token")
	ErrSigningKeyMissing  = errors.New("jwt_secret_missing")
)
