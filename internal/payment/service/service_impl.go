package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	acquirerdomain "github.com/smallbiznis/paygate/internal/acquirer/domain"
	"github.com/smallbiznis/paygate/internal/clock"
	"github.com/smallbiznis/paygate/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/paygate/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/paygate/internal/payment/domain"
	"github.com/smallbiznis/paygate/pkg/db/pagination"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const persistTimeout = 10 * time.Second

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       paymentdomain.Repository
	Acquirer   acquirerdomain.Client
	Cache      paymentdomain.StatusCache       `optional:"true"`
	Locker     paymentdomain.IdempotencyLocker `optional:"true"`
	Publisher  paymentdomain.EventPublisher    `optional:"true"`
	ObsMetrics *obsmetrics.Metrics             `optional:"true"`
	Gateway    *obsmetrics.GatewayMetrics      `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       paymentdomain.Repository
	acquirer   acquirerdomain.Client
	cache      paymentdomain.StatusCache
	locker     paymentdomain.IdempotencyLocker
	publisher  paymentdomain.EventPublisher
	obsMetrics *obsmetrics.Metrics
	gateway    *obsmetrics.GatewayMetrics
	tracer     trace.Tracer
}

func NewService(p Params) *Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.service"),
		genID:      p.GenID,
		clock:      clk,
		repo:       p.Repo,
		acquirer:   p.Acquirer,
		cache:      p.Cache,
		locker:     p.Locker,
		publisher:  p.Publisher,
		obsMetrics: p.ObsMetrics,
		gateway:    p.Gateway,
		tracer:     otel.Tracer("paygate/payment"),
	}
}

// ProcessPayment charges a card once per (merchant, idempotency key).
// Validation errors are returned as *paymentdomain.ValidationErrors; acquirer
// failures as *paymentdomain.PaymentFailedError after the Failed payment is
// stored. Anything else surfaces as ErrProcessingFailed.
func (s *Service) ProcessPayment(ctx context.Context, cmd paymentdomain.ProcessPaymentCommand) (view *paymentdomain.PaymentView, err error) {
	ctx, span := s.tracer.Start(ctx, "payment.process")
	defer span.End()

	log := logger.WithContext(ctx, s.log)

	defer func() {
		if r := recover(); r != nil {
			log.Error("unexpected failure processing payment", zap.Any("panic", r), zap.Stack("stack"))
			view, err = nil, paymentdomain.ErrProcessingFailed
		}
		s.obsMetrics.RecordPaymentSubmission(ctx, submissionResult(err))
	}()

	if cmd.IdempotencyKey != nil {
		replay, release, err := s.claimIdempotencyKey(ctx, log, cmd)
		if err != nil {
			return nil, err
		}
		if replay != nil {
			return replay, nil
		}
		defer release()
	}

	now := s.clock.Now()
	verrs := &paymentdomain.ValidationErrors{}
	amount, err := paymentdomain.NewMoney(cmd.Amount, cmd.Currency)
	if err != nil {
		verrs.Merge(err)
	}
	card, err := paymentdomain.NewCard(cmd.CardNumber, cmd.CardHolderName, cmd.ExpiryMonth, cmd.ExpiryYear, cmd.CVV, now)
	if err != nil {
		verrs.Merge(err)
	}
	if err := verrs.Err(); err != nil {
		return nil, err
	}

	payment, err := paymentdomain.NewPayment(uuid.New(), cmd.MerchantID, amount, card, cmd.IdempotencyKey, now)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("payment_id", payment.ID().String()))
	log = log.With(zap.String("payment_id", payment.ID().String()))

	result := s.acquirer.ProcessPayment(ctx, acquirerdomain.NewRequest(payment))
	failure := s.applyResult(log, payment, result)

	records, err := s.eventRecords(payment)
	if err != nil {
		log.Error("failed to encode payment events", zap.Error(err))
		return nil, paymentdomain.ErrProcessingFailed
	}

	// The card may already be charged: the write must not be abandoned with the request.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	stored, err := s.persist(persistCtx, log, payment, records)
	if err != nil {
		return nil, err
	}
	if stored != payment {
		v := paymentdomain.NewPaymentView(stored)
		return &v, nil
	}

	s.gateway.IncPaymentProcessed(string(payment.Status()))
	log.Info("payment processed",
		zap.String("status", string(payment.Status())),
		zap.String("acquirer_outcome", string(result.Outcome)),
	)

	s.cacheStatus(persistCtx, log, payment)
	s.dispatch(persistCtx, log, payment, records)

	v := paymentdomain.NewPaymentView(payment)
	if failure != nil {
		return nil, &paymentdomain.PaymentFailedError{Payment: v, Err: failure}
	}
	return &v, nil
}

// claimIdempotencyKey returns the stored payment for a replayed key, or takes
// the key's lock. The lookup repeats under the lock so a winner that committed
// between the first lookup and Acquire is replayed instead of charged again.
func (s *Service) claimIdempotencyKey(ctx context.Context, log *zap.Logger, cmd paymentdomain.ProcessPaymentCommand) (*paymentdomain.PaymentView, func(), error) {
	key := *cmd.IdempotencyKey
	existing, err := s.resolveIdempotent(ctx, cmd.MerchantID, key)
	if err != nil {
		return nil, nil, err
	}
	if existing == nil {
		release, err := s.lock(ctx, log, cmd.MerchantID, key)
		if err != nil {
			return nil, nil, err
		}
		existing, err = s.resolveIdempotent(ctx, cmd.MerchantID, key)
		if err != nil || existing != nil {
			release()
		}
		if err != nil {
			return nil, nil, err
		}
		if existing == nil {
			return nil, release, nil
		}
	}

	logReplay(log, existing, cmd)
	v := paymentdomain.NewPaymentView(existing)
	return &v, nil, nil
}

func (s *Service) resolveIdempotent(ctx context.Context, merchantID uuid.UUID, key string) (*paymentdomain.Payment, error) {
	if err := paymentdomain.ValidateIdempotencyKey(key); err != nil {
		return nil, err
	}
	existing, err := s.repo.FindByIdempotencyKey(ctx, s.db, merchantID, key)
	if err != nil {
		logger.WithContext(ctx, s.log).Error("idempotency lookup failed", zap.Error(err))
		return nil, paymentdomain.ErrProcessingFailed
	}
	return existing, nil
}

// lock keeps a concurrent duplicate away from the acquirer. The store's
// uniqueness constraint still decides the winner when the lock is unavailable.
func (s *Service) lock(ctx context.Context, log *zap.Logger, merchantID uuid.UUID, key string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	release, acquired, err := s.locker.Acquire(ctx, merchantID, key)
	if err != nil {
		log.Warn("idempotency lock unavailable", zap.Error(err))
		return func() {}, nil
	}
	if !acquired {
		return nil, paymentdomain.ErrDuplicateIdempotencyKey
	}
	return release, nil
}

// logReplay flags replays whose body differs from the stored payment. The
// stored payment is still returned.
func logReplay(log *zap.Logger, existing *paymentdomain.Payment, cmd paymentdomain.ProcessPaymentCommand) {
	fields := []zap.Field{
		zap.String("payment_id", existing.ID().String()),
		zap.String("status", string(existing.Status())),
	}
	amount := existing.Amount()
	currency := strings.ToUpper(strings.TrimSpace(cmd.Currency))
	if !amount.Amount().Equal(cmd.Amount) || amount.Currency() != currency {
		log.Warn("idempotency key replayed with a different amount", fields...)
		return
	}
	log.Info("idempotent replay", fields...)
}

// applyResult moves the payment to its terminal state and returns the
// caller-facing failure, if any.
func (s *Service) applyResult(log *zap.Logger, payment *paymentdomain.Payment, result acquirerdomain.Result) error {
	now := s.clock.Now()
	if result.Approved() {
		err := payment.MarkAsSuccessful(result.Reference, now)
		if err == nil {
			return nil
		}
		log.Error("acquirer approval could not be recorded", zap.Error(err))
		if ferr := payment.MarkAsFailed(now); ferr != nil {
			log.Error("failed to mark payment as failed", zap.Error(ferr))
		}
		return paymentdomain.ErrAcquirerUnavailable
	}

	if err := payment.MarkAsFailed(now); err != nil {
		log.Error("failed to mark payment as failed", zap.Error(err))
	}
	if result.Outcome == acquirerdomain.OutcomeDeclined {
		log.Warn("payment declined", zap.String("reason", result.Message))
		return paymentdomain.ErrPaymentDeclined
	}
	log.Error("acquirer unavailable",
		zap.String("outcome", string(result.Outcome)),
		zap.String("message", result.Message),
	)
	return paymentdomain.ErrAcquirerUnavailable
}

func (s *Service) eventRecords(payment *paymentdomain.Payment) ([]paymentdomain.EventRecord, error) {
	events := payment.PendingEvents()
	records := make([]paymentdomain.EventRecord, 0, len(events))
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return nil, err
		}
		records = append(records, paymentdomain.EventRecord{
			ID:         s.genID.Generate(),
			PaymentID:  e.PaymentID.String(),
			MerchantID: e.MerchantID.String(),
			EventType:  string(e.Type),
			Payload:    datatypes.JSON(payload),
			OccurredAt: e.OccurredAt,
		})
	}
	return records, nil
}

// persist writes the payment and its events in one transaction. When a
// concurrent request won the idempotency key, the winner is returned.
func (s *Service) persist(ctx context.Context, log *zap.Logger, payment *paymentdomain.Payment, records []paymentdomain.EventRecord) (*paymentdomain.Payment, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, payment); err != nil {
			return err
		}
		return s.repo.InsertEvents(ctx, tx, records)
	})
	if err == nil {
		return payment, nil
	}

	s.gateway.IncPersistError(err)
	if !errors.Is(err, paymentdomain.ErrDuplicateIdempotencyKey) {
		log.Error("failed to persist payment", zap.Error(err))
		return nil, paymentdomain.ErrProcessingFailed
	}

	key, _ := payment.IdempotencyKey()
	winner, ferr := s.repo.FindByIdempotencyKey(ctx, s.db, payment.MerchantID(), key)
	if ferr != nil {
		log.Error("failed to load concurrent payment", zap.Error(ferr))
		return nil, paymentdomain.ErrProcessingFailed
	}
	if winner == nil {
		return nil, paymentdomain.ErrDuplicateIdempotencyKey
	}
	log.Warn("lost idempotency race, returning concurrent payment",
		zap.String("winner_payment_id", winner.ID().String()),
		zap.String("discarded_status", string(payment.Status())),
	)
	return winner, nil
}

func (s *Service) cacheStatus(ctx context.Context, log *zap.Logger, payment *paymentdomain.Payment) {
	if s.cache == nil || !payment.Status().IsTerminal() {
		return
	}
	if err := s.cache.Set(ctx, paymentdomain.NewStatusView(payment)); err != nil {
		log.Warn("failed to cache payment status", zap.Error(err))
	}
}

// dispatch publishes committed events in order and stops at the first
// failure; the rest stay in the outbox for PublishPending.
func (s *Service) dispatch(ctx context.Context, log *zap.Logger, payment *paymentdomain.Payment, records []paymentdomain.EventRecord) {
	defer payment.ClearEvents()
	if s.publisher == nil {
		return
	}

	published := make([]snowflake.ID, 0, len(records))
	for i, e := range payment.PendingEvents() {
		if err := s.publisher.Publish(ctx, e); err != nil {
			log.Warn("failed to publish payment event",
				zap.String("event_type", string(e.Type)),
				zap.String("publisher", s.publisher.Name()),
				zap.Error(err),
			)
			break
		}
		s.obsMetrics.RecordEventPublished(ctx, s.publisher.Name(), string(e.Type))
		published = append(published, records[i].ID)
	}
	if len(published) == 0 {
		return
	}
	if err := s.repo.MarkEventsPublished(ctx, s.db, published, s.clock.Now()); err != nil {
		log.Warn("failed to mark payment events published", zap.Error(err))
	}
}

// GetPaymentStatus serves terminal payments from the cache when possible.
// Cache errors are treated as misses.
func (s *Service) GetPaymentStatus(ctx context.Context, paymentID, merchantID uuid.UUID) (*paymentdomain.StatusView, error) {
	ctx, span := s.tracer.Start(ctx, "payment.get_status",
		trace.WithAttributes(attribute.String("payment_id", paymentID.String())),
	)
	defer span.End()

	log := logger.WithContext(ctx, s.log).With(zap.String("payment_id", paymentID.String()))
	if paymentID == uuid.Nil {
		return nil, paymentdomain.ErrPaymentNotFound
	}

	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, paymentID)
		switch {
		case err != nil:
			s.gateway.IncCacheLookup(obsmetrics.CacheResultError)
			log.Warn("payment status cache unavailable", zap.Error(err))
		case ok:
			s.gateway.IncCacheLookup(obsmetrics.CacheResultHit)
			if cached.MerchantID != merchantID {
				return nil, paymentdomain.ErrUnauthorizedAccess
			}
			return cached, nil
		default:
			s.gateway.IncCacheLookup(obsmetrics.CacheResultMiss)
		}
	}

	payment, err := s.repo.FindByID(ctx, s.db, paymentID)
	if err != nil {
		log.Error("failed to load payment", zap.Error(err))
		return nil, paymentdomain.ErrProcessingFailed
	}
	if payment == nil {
		return nil, paymentdomain.ErrPaymentNotFound
	}
	if payment.MerchantID() != merchantID {
		log.Warn("cross-merchant payment access", zap.String("owner_merchant_id", payment.MerchantID().String()))
		return nil, paymentdomain.ErrUnauthorizedAccess
	}

	s.cacheStatus(ctx, log, payment)
	view := paymentdomain.NewStatusView(payment)
	return &view, nil
}

// ListPayments returns the merchant's payments, newest first.
func (s *Service) ListPayments(ctx context.Context, merchantID uuid.UUID, page pagination.Pagination) (*paymentdomain.ListResult, error) {
	cursor, err := pagination.DecodeCursor(page.PageToken)
	if err != nil {
		return nil, paymentdomain.ErrInvalidPageToken
	}

	size := page.Size()
	items, err := s.repo.ListByMerchant(ctx, s.db, merchantID, cursor, size+1)
	if err != nil {
		logger.WithContext(ctx, s.log).Error("failed to list payments", zap.Error(err))
		return nil, paymentdomain.ErrProcessingFailed
	}

	items, pageInfo := pagination.Trim(items, size, func(p *paymentdomain.Payment) pagination.Cursor {
		return pagination.Cursor{ID: p.ID().String(), CreatedAt: p.CreatedAt()}
	})

	views := make([]paymentdomain.PaymentView, 0, len(items))
	for _, p := range items {
		views = append(views, paymentdomain.NewPaymentView(p))
	}
	return &paymentdomain.ListResult{Payments: views, PageInfo: pageInfo}, nil
}

// PublishPending retries outbox rows that were not published after commit.
// It stops at the first publish failure so per-payment order is kept.
func (s *Service) PublishPending(ctx context.Context, limit int) (int, error) {
	if s.publisher == nil {
		return 0, nil
	}
	if limit <= 0 {
		limit = 100
	}

	records, err := s.repo.ListUnpublishedEvents(ctx, s.db, limit)
	if err != nil {
		return 0, err
	}

	log := logger.WithContext(ctx, s.log)
	published := make([]snowflake.ID, 0, len(records))
	for _, rec := range records {
		var e paymentdomain.Event
		if err := json.Unmarshal(rec.Payload, &e); err != nil {
			log.Error("skipping undecodable outbox event", zap.Int64("event_id", rec.ID.Int64()), zap.Error(err))
			continue
		}
		if err := s.publisher.Publish(ctx, e); err != nil {
			log.Warn("outbox publish failed", zap.Int64("event_id", rec.ID.Int64()), zap.Error(err))
			break
		}
		s.obsMetrics.RecordEventPublished(ctx, s.publisher.Name(), string(e.Type))
		published = append(published, rec.ID)
	}

	s.gateway.SetOutboxPending(len(records) - len(published))
	if len(published) == 0 {
		return 0, nil
	}
	if err := s.repo.MarkEventsPublished(ctx, s.db, published, s.clock.Now()); err != nil {
		return 0, err
	}
	return len(published), nil
}

func submissionResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, paymentdomain.ErrPaymentDeclined):
		return "declined"
	case errors.Is(err, paymentdomain.ErrAcquirerUnavailable):
		return "unavailable"
	default:
		var verrs *paymentdomain.ValidationErrors
		if errors.As(err, &verrs) {
			return "invalid"
		}
		return "error"
	}
}

var _ paymentdomain.Service = (*Service)(nil)
