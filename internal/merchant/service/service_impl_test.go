package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/smallbiznis/paygate/internal/clock"
	"github.com/smallbiznis/paygate/internal/config"
	merchantdomain "github.com/smallbiznis/paygate/internal/merchant/domain"
	"github.com/smallbiznis/paygate/internal/merchant/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	testNow       = time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)
	apiKeyPattern = regexp.MustCompile(`^pk_[0-9a-f]{32}$`)
	secretPattern = regexp.MustCompile(`^sk_[0-9a-f]{48}$`)
)

func newTestService(t *testing.T) (*Service, *clock.FakeClock, *gorm.DB) {
	t.Helper()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(testNow)
	svc, err := newService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: clk,
		Repo:  repository.Provide(),
		Config: config.Config{JWT: config.JWTConfig{
			Secret:   "test-secret",
			Issuer:   "paygate",
			Audience: "paygate-merchants",
			Expiry:   time.Hour,
		}},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	svc.cost = bcrypt.MinCost
	return svc, clk, db
}

func TestCreateIssuesCredentials(t *testing.T) {
	ctx := context.Background()
	svc, _, db := newTestService(t)

	creds, err := svc.Create(ctx, merchantdomain.CreateRequest{Name: "  Acme Store "})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !apiKeyPattern.MatchString(creds.APIKey) {
		t.Fatalf("unexpected api key %q", creds.APIKey)
	}
	if !secretPattern.MatchString(creds.APISecret) {
		t.Fatalf("unexpected api secret %q", creds.APISecret)
	}
	if creds.Name != "Acme Store" {
		t.Fatalf("expected trimmed name, got %q", creds.Name)
	}

	var stored string
	if err := db.Raw(`SELECT api_secret_hash FROM merchants WHERE id = ?`, creds.MerchantID.String()).Scan(&stored).Error; err != nil {
		t.Fatalf("load hash: %v", err)
	}
	if stored == creds.APISecret || !merchantdomain.VerifySecret(stored, creds.APISecret) {
		t.Fatalf("secret must be stored as a bcrypt hash")
	}

	got, err := svc.Get(ctx, creds.MerchantID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.IsActive || got.APIKey != creds.APIKey {
		t.Fatalf("unexpected merchant %+v", got)
	}
}

func TestCreateValidatesName(t *testing.T) {
	svc, _, _ := newTestService(t)
	long := make([]byte, merchantdomain.MaxNameLength+1)
	for i := range long {
		long[i] = 'a'
	}
	for _, name := range []string{"", "   ", string(long)} {
		if _, err := svc.Create(context.Background(), merchantdomain.CreateRequest{Name: name}); !errors.Is(err, merchantdomain.ErrInvalidName) {
			t.Fatalf("name %q: expected invalid name, got %v", name, err)
		}
	}
}

func TestAuthenticateAndParseToken(t *testing.T) {
	ctx := context.Background()
	svc, clk, _ := newTestService(t)

	creds, err := svc.Create(ctx, merchantdomain.CreateRequest{Name: "Acme"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	token, err := svc.Authenticate(ctx, merchantdomain.LoginRequest{APIKey: creds.APIKey, APISecret: creds.APISecret})
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if token.TokenType != "Bearer" || !token.ExpiresAt.Equal(testNow.Add(time.Hour)) {
		t.Fatalf("unexpected token %+v", token)
	}

	claims, err := svc.ParseToken(ctx, token.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.MerchantID != creds.MerchantID.String() || claims.MerchantName != "Acme" {
		t.Fatalf("unexpected claims %+v", claims)
	}

	clk.Advance(2 * time.Hour)
	if _, err := svc.ParseToken(ctx, token.AccessToken); !errors.Is(err, merchantdomain.ErrInvalidToken) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}

func TestAuthenticateRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	creds, err := svc.Create(ctx, merchantdomain.CreateRequest{Name: "Acme"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	cases := map[string]merchantdomain.LoginRequest{
		"wrong secret": {APIKey: creds.APIKey, APISecret: "sk_wrong"},
		"unknown key":  {APIKey: "pk_unknown", APISecret: creds.APISecret},
		"empty":        {},
	}
	for name, req := range cases {
		if _, err := svc.Authenticate(ctx, req); !errors.Is(err, merchantdomain.ErrInvalidCredentials) {
			t.Fatalf("%s: expected invalid credentials, got %v", name, err)
		}
	}
}

func TestDeactivatedMerchantCannotAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	creds, err := svc.Create(ctx, merchantdomain.CreateRequest{Name: "Acme"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Deactivate(ctx, creds.MerchantID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	login := merchantdomain.LoginRequest{APIKey: creds.APIKey, APISecret: creds.APISecret}
	if _, err := svc.Authenticate(ctx, login); !errors.Is(err, merchantdomain.ErrInactive) {
		t.Fatalf("expected inactive, got %v", err)
	}

	if err := svc.Activate(ctx, creds.MerchantID); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if _, err := svc.Authenticate(ctx, login); err != nil {
		t.Fatalf("expected login after activation, got %v", err)
	}
}

func TestRotateCredentialsInvalidatesOldPair(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	old, err := svc.Create(ctx, merchantdomain.CreateRequest{Name: "Acme"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	rotated, err := svc.RotateCredentials(ctx, old.MerchantID)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if rotated.APIKey == old.APIKey || rotated.APISecret == old.APISecret {
		t.Fatalf("expected fresh credentials")
	}

	if _, err := svc.Authenticate(ctx, merchantdomain.LoginRequest{APIKey: old.APIKey, APISecret: old.APISecret}); !errors.Is(err, merchantdomain.ErrInvalidCredentials) {
		t.Fatalf("expected old credentials to fail, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, merchantdomain.LoginRequest{APIKey: rotated.APIKey, APISecret: rotated.APISecret}); err != nil {
		t.Fatalf("expected new credentials to work, got %v", err)
	}
}

func TestUnknownMerchant(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	if _, err := svc.Get(ctx, uuid.New()); !errors.Is(err, merchantdomain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := svc.Activate(ctx, uuid.Nil); !errors.Is(err, merchantdomain.ErrInvalidMerchantID) {
		t.Fatalf("expected invalid merchant id, got %v", err)
	}
	if _, err := svc.RotateCredentials(ctx, uuid.New()); !errors.Is(err, merchantdomain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestParseTokenRejectsForeignSignature(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	other, _, _ := newTestService(t)
	other.secret = []byte("another-secret")

	creds, err := other.Create(ctx, merchantdomain.CreateRequest{Name: "Mallory"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	token, err := other.Authenticate(ctx, merchantdomain.LoginRequest{APIKey: creds.APIKey, APISecret: creds.APISecret})
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if _, err := svc.ParseToken(ctx, token.AccessToken); !errors.Is(err, merchantdomain.ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
	if _, err := svc.ParseToken(ctx, "not-a-jwt"); !errors.Is(err, merchantdomain.ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
}

func TestMissingSigningKeyInProduction(t *testing.T) {
	_, err := newService(Params{
		Log:    zap.NewNop(),
		Repo:   repository.Provide(),
		Config: config.Config{Environment: "production"},
	})
	if !errors.Is(err, merchantdomain.ErrSigningKeyMissing) {
		t.Fatalf("expected missing signing key error, got %v", err)
	}
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&merchantdomain.Merchant{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
