package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/fjod/pawmart/internal/cache"
	"github.com/fjod/pawmart/internal/domain"
	"github.com/fjod/pawmart/internal/payment"
	"github.com/fjod/pawmart/internal/repository"
)

const (
	OutcomeSuccess           = "success"
	OutcomeSessionCreated    = "session_created"
	OutcomeDuplicate         = "duplicate"
	OutcomeEmptyCart         = "empty_cart"
	OutcomeInsufficientStock = "insufficient_stock"
	OutcomeOversold          = "oversold"
	OutcomeInvalid           = "invalid"
	OutcomeIgnored           = "ignored"
	OutcomeError             = "error"
)

type CheckoutConfig struct {
	Currency         string
	AllowBackorder   bool
	WebhookSecret    string
	WebhookTolerance time.Duration
}

// CheckoutService turns carts into orders. Cash orders commit immediately; card orders are
// committed when the gateway reports the payment through the webhook.
type CheckoutService struct {
	repo      CheckoutRepository
	carts     CartRepository
	gateway   PaymentGateway
	views     ViewCache
	cartCache cache.CartCache
	metrics   CheckoutRecorder
	cfg       CheckoutConfig
	log       *slog.Logger
	now       func() time.Time
}

func NewCheckoutService(
	repo CheckoutRepository,
	carts CartRepository,
	gateway PaymentGateway,
	views ViewCache,
	cartCache cache.CartCache,
	metrics CheckoutRecorder,
	cfg CheckoutConfig,
	log *slog.Logger,
) *CheckoutService {
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &CheckoutService{
		repo:      repo,
		carts:     carts,
		gateway:   gateway,
		views:     views,
		cartCache: cartCache,
		metrics:   metrics,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// PlaceOrder runs the checkout for the identity in ctx.
func (s *CheckoutService) PlaceOrder(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutResult, error) {
	id, err := domain.IdentityFrom(ctx)
	if err != nil {
		return nil, err
	}
	if err := req.Shipping.Validate(); err != nil {
		s.metrics.ObserveCheckout(req.PaymentMethod, OutcomeInvalid)
		return nil, err
	}

	switch req.PaymentMethod {
	case domain.PaymentCard:
		return s.startCardPayment(ctx, id.UserID, req.Shipping)
	case domain.PaymentCashOnDelivery:
		order, err := s.commitOrder(ctx, id.UserID, req.Shipping, domain.PaymentCashOnDelivery, nil, domain.CardPaymentCompleted{})
		if err != nil {
			return nil, err
		}
		return &domain.CheckoutResult{Order: order}, nil
	default:
		return nil, domain.NewValidationError("payment")
	}
}

// startCardPayment opens a gateway session for the current cart. No order exists until the
// webhook confirms the payment.
func (s *CheckoutService) startCardPayment(ctx context.Context, userID string, shipping domain.ShippingInfo) (*domain.CheckoutResult, error) {
	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		s.metrics.ObserveCheckout(domain.PaymentCard, OutcomeError)
		return nil, fmt.Errorf("load cart: %w", err)
	}
	snapshot, err := cart.Snapshot(s.cfg.Currency, s.now())
	if err != nil {
		s.metrics.ObserveCheckout(domain.PaymentCard, outcomeFor(err))
		return nil, err
	}
	if !s.cfg.AllowBackorder {
		if err := cart.CheckStock(); err != nil {
			s.metrics.ObserveCheckout(domain.PaymentCard, outcomeFor(err))
			return nil, err
		}
	}

	sessionReq, err := s.gateway.NewSessionRequest(userID, shipping, snapshot)
	if err != nil {
		s.metrics.ObserveCheckout(domain.PaymentCard, OutcomeError)
		return nil, err
	}
	session, err := s.gateway.CreateSession(ctx, sessionReq)
	if err != nil {
		s.log.ErrorContext(ctx, "payment session creation failed", slog.String("user_id", userID), slog.Any("error", err))
		s.metrics.ObserveCheckout(domain.PaymentCard, OutcomeError)
		return nil, err
	}

	s.log.InfoContext(ctx, "payment session created",
		slog.String("user_id", userID),
		slog.String("session_id", session.ID),
		slog.String("total", snapshot.TotalAmount.String()))
	s.metrics.ObserveCheckout(domain.PaymentCard, OutcomeSessionCreated)
	return &domain.CheckoutResult{SessionID: session.ID, SessionURL: session.URL}, nil
}

// FinalizeCardPayment commits the order for a paid session. Replays of the same session return
// the order created the first time without further writes. The money is already captured, so a
// line that no longer fits the stock is still ordered and reported as oversold.
func (s *CheckoutService) FinalizeCardPayment(ctx context.Context, p domain.CardPaymentCompleted) (*domain.Order, error) {
	if err := p.Shipping.Validate(); err != nil {
		s.metrics.ObserveCheckout(domain.PaymentCard, OutcomeInvalid)
		return nil, err
	}

	existing, err := s.repo.FindOrderByPaymentSession(ctx, p.SessionID)
	if err == nil {
		s.log.InfoContext(ctx, "payment session already finalized",
			slog.String("session_id", p.SessionID), slog.String("order_id", existing.ID.String()))
		s.metrics.ObserveCheckout(domain.PaymentCard, OutcomeDuplicate)
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("check payment session: %w", err)
	}

	sessionID := p.SessionID
	order, err := s.commitOrder(ctx, p.UserID, p.Shipping, domain.PaymentCard, &sessionID, p)
	if errors.Is(err, repository.ErrDuplicatePaymentSession) {
		// A concurrent delivery of the same event won the insert.
		return s.repo.FindOrderByPaymentSession(ctx, p.SessionID)
	}
	return order, err
}

// HandleWebhook authenticates and dispatches a gateway event. It returns the finalized order for
// checkout.session.completed and nil for event types that are acknowledged without action.
func (s *CheckoutService) HandleWebhook(ctx context.Context, payload []byte, signature string) (*domain.Order, error) {
	if err := payment.VerifySignature(payload, signature, s.cfg.WebhookSecret, s.cfg.WebhookTolerance, s.now()); err != nil {
		s.metrics.ObserveWebhook("unknown", OutcomeInvalid)
		return nil, err
	}

	event, err := payment.ParseEvent(payload)
	if err != nil {
		s.metrics.ObserveWebhook("unknown", OutcomeInvalid)
		return nil, err
	}
	if event.Type != payment.EventCheckoutSessionCompleted {
		s.log.InfoContext(ctx, "ignoring payment event", slog.String("event_id", event.ID), slog.String("type", event.Type))
		s.metrics.ObserveWebhook(event.Type, OutcomeIgnored)
		return nil, nil
	}

	session, err := event.Session()
	if err != nil {
		s.metrics.ObserveWebhook(event.Type, OutcomeInvalid)
		return nil, err
	}
	completed, err := session.CardPayment()
	if err != nil {
		s.metrics.ObserveWebhook(event.Type, OutcomeInvalid)
		return nil, err
	}

	order, err := s.FinalizeCardPayment(ctx, completed)
	if err != nil {
		s.metrics.ObserveWebhook(event.Type, outcomeFor(err))
		return nil, err
	}
	s.metrics.ObserveWebhook(event.Type, OutcomeSuccess)
	return order, nil
}

// commitOrder performs every order write in one transaction while walking the checkout state
// machine. paid carries the gateway's view of the amount for card orders.
func (s *CheckoutService) commitOrder(
	ctx context.Context,
	userID string,
	shipping domain.ShippingInfo,
	method domain.PaymentMethod,
	sessionID *string,
	paid domain.CardPaymentCompleted,
) (*domain.Order, error) {
	fsm := newCheckoutFSM()
	var order *domain.Order
	var replayed bool
	var oversold []int64

	err := s.repo.WithCheckoutTx(ctx, func(tx repository.CheckoutTx) error {
		cart, err := tx.LockCart(ctx, userID)
		if err != nil {
			return fmt.Errorf("lock cart: %w", err)
		}

		if sessionID != nil {
			existing, err := tx.FindOrderByPaymentSession(ctx, *sessionID)
			if err == nil {
				order, replayed = existing, true
				return nil
			}
			if !errors.Is(err, domain.ErrNotFound) {
				return err
			}
		}

		snapshot, err := cart.Snapshot(s.cfg.Currency, s.now())
		if err != nil {
			return err
		}
		if method == domain.PaymentCard && !paid.AmountTotal.IsZero() && !paid.AmountTotal.Equal(snapshot.TotalAmount) {
			s.log.WarnContext(ctx, "paid amount differs from cart total",
				slog.String("session_id", paid.SessionID),
				slog.String("paid", paid.AmountTotal.String()),
				slog.String("cart_total", snapshot.TotalAmount.String()))
		}

		// Lock product rows in a stable order.
		lines := append([]domain.CartSnapshotItem(nil), snapshot.Items...)
		sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
		oversold = oversold[:0]
		for _, line := range lines {
			err := tx.DecrementStock(ctx, line.ProductID, line.Quantity, s.cfg.AllowBackorder)
			if errors.Is(err, domain.ErrInsufficientStock) && sessionID != nil {
				// Paid orders are never refused for stock.
				oversold = append(oversold, line.ProductID)
				err = tx.DecrementStock(ctx, line.ProductID, line.Quantity, true)
			}
			if err != nil {
				return err
			}
		}
		if err := fsm.to(domain.CheckoutReserved); err != nil {
			return err
		}

		order = domain.NewOrderFromSnapshot(userID, shipping, method, snapshot)
		order.PaymentSessionID = sessionID
		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}
		if err := tx.ClearCart(ctx, userID); err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, domain.NewOrderEvent(domain.EventOrderPlaced, order, s.now())); err != nil {
			return err
		}
		return fsm.to(domain.CheckoutCommitted)
	})
	if err != nil {
		fsm.fail()
		s.log.ErrorContext(ctx, "checkout rolled back",
			slog.String("user_id", userID),
			slog.String("payment_method", string(method)),
			slog.String("state", fsm.state.String()),
			slog.Any("error", err))
		s.metrics.ObserveCheckout(method, outcomeFor(err))
		return nil, err
	}

	if replayed {
		s.metrics.ObserveCheckout(method, OutcomeDuplicate)
		return order, nil
	}
	if err := fsm.to(domain.CheckoutFinalized); err != nil {
		return nil, err
	}

	s.afterOrderPlaced(order)
	s.log.InfoContext(ctx, "order placed",
		slog.String("order_id", order.ID.String()),
		slog.String("user_id", userID),
		slog.String("payment_method", string(method)),
		slog.String("total", order.TotalPrice.String()))
	if len(oversold) > 0 {
		s.log.WarnContext(ctx, "paid order exceeds stock, fulfil as backorder or refund",
			slog.String("order_id", order.ID.String()),
			slog.Any("product_ids", oversold))
		s.metrics.ObserveCheckout(method, OutcomeOversold)
		return order, nil
	}
	s.metrics.ObserveCheckout(method, OutcomeSuccess)
	return order, nil
}

// afterOrderPlaced drops the views a new order makes stale: the buyer's cart, order lists, and
// the stock shown for every ordered product.
func (s *CheckoutService) afterOrderPlaced(order *domain.Order) {
	if s.cartCache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		if err := s.cartCache.Delete(ctx, order.UserID); err != nil {
			s.log.Warn("cache invalidate error", slog.String("user_id", order.UserID), slog.Any("error", err))
		}
		cancel()
	}

	tags := []string{cache.TagOrders, cache.UserOrdersTag(order.UserID), cache.TagCatalog}
	for _, item := range order.Items {
		tags = append(tags, cache.ProductTag(item.ProductID))
	}
	invalidate(s.views, s.log, tags...)
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyCart):
		return OutcomeEmptyCart
	case errors.Is(err, domain.ErrInsufficientStock):
		return OutcomeInsufficientStock
	case errors.Is(err, repository.ErrDuplicatePaymentSession):
		return OutcomeDuplicate
	case errors.Is(err, domain.ErrValidation):
		return OutcomeInvalid
	default:
		return OutcomeError
	}
}

type checkoutFSM struct {
	state domain.CheckoutState
}

func newCheckoutFSM() *checkoutFSM {
	return &checkoutFSM{state: domain.CheckoutInitiated}
}

func (f *checkoutFSM) to(next domain.CheckoutState) error {
	if !domain.CanTransitionTo(f.state, next) {
		return fmt.Errorf("%s -> %s: %w", f.state, next, domain.ErrIllegalTransition)
	}
	f.state = next
	return nil
}

// fail records a rollback. The transaction has already been rolled back by the repository.
func (f *checkoutFSM) fail() {
	if f.state.IsTerminal() {
		return
	}
	if f.to(domain.CheckoutFailed) == nil {
		_ = f.to(domain.CheckoutRolledBack)
	}
}
