package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cache"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Service is the order fulfillment engine.
type Service interface {
	PlaceOrder(ctx context.Context, userID uuid.UUID, input PlaceOrderInput) (*OrderDTO, error)
	CancelOrder(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error)
	AdminUpdateStatus(ctx context.Context, actorID, orderID uuid.UUID, next enums.OrderStatus) (*OrderDTO, error)
	ExpirePending(ctx context.Context, cutoff time.Time, limit int) (int, error)
	GetUserOrder(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error)
	ListUserOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderListResult, error)
	AdminListOrders(ctx context.Context, status *enums.OrderStatus, params pagination.Params) (*OrderListResult, error)
}

// ServiceParams wires the engine's collaborators.
type ServiceParams struct {
	Repo      Repository
	Carts     cart.CartRepository
	Inventory *inventory.Repository
	Tx        txRunner
	Outbox    outbox.Emitter
	Cache     *cache.Cache
	Metrics   *metrics.OrderMetrics
	Logger    *logger.Logger
	Now       func() time.Time
}

type service struct {
	repo      Repository
	carts     cart.CartRepository
	inventory *inventory.Repository
	tx        txRunner
	outbox    outbox.Emitter
	cache     *cache.Cache
	metrics   *metrics.OrderMetrics
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	c := params.Cache
	if c == nil {
		c = cache.Disabled()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:      params.Repo,
		carts:     params.Carts,
		inventory: params.Inventory,
		tx:        params.Tx,
		outbox:    params.Outbox,
		cache:     c,
		metrics:   params.Metrics,
		logg:      params.Logger,
		now:       now,
	}, nil
}

// PlaceOrder converts the user's cart into a PENDING order. Either every line
// is bought or nothing changes: any unfulfillable line rejects the whole
// order, and a lost stock race rolls the transaction back.
func (s *service) PlaceOrder(ctx context.Context, userID uuid.UUID, input PlaceOrderInput) (*OrderDTO, error) {
	var placed *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.carts.WithTx(tx)
		userCart, err := cartRepo.LockByUser(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
			}
			return err
		}

		lines, unavailable := partition(userCart.Items)
		if len(unavailable) > 0 {
			return pkgerrors.New(pkgerrors.CodeOrderRejected, "some items are unavailable").
				WithDetails(map[string]any{"unavailableItems": unavailable})
		}
		if len(lines) == 0 {
			return pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
		}

		order := buildOrder(userID, input, lines)
		if err := s.repo.WithTx(tx).CreateOrder(ctx, order); err != nil {
			return err
		}

		stock := s.inventory.WithTx(tx)
		for _, item := range order.Items {
			ok, err := stock.Decrement(ctx, item.ProductID, item.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeTransactionFailed, "stock changed while placing the order").
					WithDetails(map[string]any{"productId": item.ProductID})
			}
		}

		if _, err := cartRepo.ClearItems(ctx, userCart.ID); err != nil {
			return err
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPlaced,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: userID, Role: string(enums.UserRoleCustomer)},
			Data: payloads.OrderPlacedEvent{
				OrderID:     order.ID,
				UserID:      userID,
				TotalAmount: order.TotalAmount.StringFixed(2),
				Items:       eventLines(order.Items),
			},
		}); err != nil {
			return err
		}

		placed = order
		return nil
	})
	if err != nil {
		s.metrics.Placement(placementOutcome(err))
		return nil, s.txError(ctx, err, "place order")
	}

	s.cache.Invalidate(ctx, cache.ForOrderPlaced(userID, productIDs(placed.Items)))
	s.metrics.Placement("placed")
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":     placed.ID,
		"total_amount": placed.TotalAmount.StringFixed(2),
		"item_count":   len(placed.Items),
	}), "order placed")

	dto := NewOrderDTO(placed)
	return &dto, nil
}

// CancelOrder lets the owner cancel a PENDING order. Orders owned by someone
// else are reported as not found.
func (s *service) CancelOrder(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error) {
	var (
		cancelled *models.Order
		restored  []uuid.UUID
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.repo.WithTx(tx).FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return mapLoadError(err)
		}
		if order.UserID != userID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if order.Status != enums.OrderStatusPending {
			return invalidTransition(order.Status, enums.OrderStatusCancelled)
		}
		restored, err = s.cancelInTx(ctx, tx, order, &outbox.ActorRef{UserID: userID, Role: string(enums.UserRoleCustomer)}, payloads.CancelReasonCustomer)
		if err != nil {
			return err
		}
		cancelled = order
		return nil
	})
	if err != nil {
		return nil, s.txError(ctx, err, "cancel order")
	}

	s.afterTransition(ctx, cancelled, enums.OrderStatusPending, restored)
	dto := NewOrderDTO(cancelled)
	return &dto, nil
}

// AdminUpdateStatus moves an order forward or cancels it. Cancelling from any
// non-terminal status restores stock in the same transaction.
func (s *service) AdminUpdateStatus(ctx context.Context, actorID, orderID uuid.UUID, next enums.OrderStatus) (*OrderDTO, error) {
	if !next.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status").
			WithDetails(map[string]any{"status": next})
	}

	var (
		updated  *models.Order
		from     enums.OrderStatus
		restored []uuid.UUID
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return mapLoadError(err)
		}
		from = order.Status
		if !from.CanTransitionTo(next) {
			return invalidTransition(from, next)
		}

		actor := &outbox.ActorRef{UserID: actorID, Role: string(enums.UserRoleAdmin)}
		if next == enums.OrderStatusCancelled {
			restored, err = s.cancelInTx(ctx, tx, order, actor, payloads.CancelReasonAdmin)
			if err != nil {
				return err
			}
			updated = order
			return nil
		}

		ok, err := repo.UpdateStatus(ctx, order.ID, from, next, nil)
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeTransactionFailed, "order changed concurrently")
		}
		order.Status = next
		order.UpdatedAt = s.now().UTC()
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor,
			Data: payloads.OrderStatusChangedEvent{
				OrderID: order.ID,
				UserID:  order.UserID,
				From:    from,
				To:      next,
			},
		}); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, s.txError(ctx, err, "update order status")
	}

	s.afterTransition(ctx, updated, from, restored)
	dto := NewOrderDTO(updated)
	return &dto, nil
}

// ExpirePending cancels up to limit PENDING orders created before cutoff, each
// in its own transaction. Orders that moved on in the meantime are skipped.
func (s *service) ExpirePending(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = pagination.MaxLimit
	}
	stale, err := s.repo.FindPendingBefore(ctx, cutoff, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pending orders")
	}

	expired := 0
	var errs error
	for _, candidate := range stale {
		var (
			order    *models.Order
			restored []uuid.UUID
		)
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			current, err := s.repo.WithTx(tx).FindByIDForUpdate(ctx, candidate.ID)
			if err != nil {
				return err
			}
			if current.Status != enums.OrderStatusPending {
				return nil
			}
			restored, err = s.cancelInTx(ctx, tx, current, nil, payloads.CancelReasonExpired)
			if err != nil {
				return err
			}
			order = current
			return nil
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", candidate.ID, err))
			continue
		}
		if order == nil {
			continue
		}
		expired++
		s.afterTransition(ctx, order, enums.OrderStatusPending, restored)
	}
	return expired, errs
}

func (s *service) GetUserOrder(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error) {
	dto, err := cache.ReadThrough(ctx, s.cache, cache.OrderKey(orderID), func(ctx context.Context) (OrderDTO, error) {
		order, err := s.repo.FindByID(ctx, orderID)
		if err != nil {
			return OrderDTO{}, mapLoadError(err)
		}
		return NewOrderDTO(order), nil
	})
	if err != nil {
		return nil, err
	}
	// ownership is checked after the cache so a shared entry never leaks
	if dto.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return &dto, nil
}

func (s *service) ListUserOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderListResult, error) {
	params = params.Normalize()
	key := cache.UserOrdersKey(userID, params.Page, params.Limit)
	return s.readPage(ctx, key, params, func(ctx context.Context) ([]models.Order, int64, error) {
		return s.repo.ListByUser(ctx, userID, params)
	})
}

func (s *service) AdminListOrders(ctx context.Context, status *enums.OrderStatus, params pagination.Params) (*OrderListResult, error) {
	params = params.Normalize()
	label := ""
	if status != nil {
		if !status.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status")
		}
		label = status.String()
	}
	key := cache.AdminOrdersKey(label, params.Page, params.Limit)
	return s.readPage(ctx, key, params, func(ctx context.Context) ([]models.Order, int64, error) {
		return s.repo.ListAll(ctx, status, params)
	})
}

func (s *service) readPage(ctx context.Context, key cache.Key, params pagination.Params, load func(context.Context) ([]models.Order, int64, error)) (*OrderListResult, error) {
	page, err := cache.ReadThrough(ctx, s.cache, key, func(ctx context.Context) (OrderListResult, error) {
		rows, total, err := load(ctx)
		if err != nil {
			return OrderListResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
		}
		items := make([]OrderDTO, 0, len(rows))
		for i := range rows {
			items = append(items, NewOrderDTO(&rows[i]))
		}
		return pagination.NewPage(items, params, total), nil
	})
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// cancelInTx marks order CANCELLED and gives every line's stock back. The
// status update is conditional on the status read under lock, so stock is
// restored at most once even if two cancellations race.
func (s *service) cancelInTx(ctx context.Context, tx *gorm.DB, order *models.Order, actor *outbox.ActorRef, reason string) ([]uuid.UUID, error) {
	from := order.Status
	now := s.now().UTC()

	ok, err := s.repo.WithTx(tx).UpdateStatus(ctx, order.ID, from, enums.OrderStatusCancelled, &now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeTransactionFailed, "order changed concurrently")
	}

	stock := s.inventory.WithTx(tx)
	restored := make([]uuid.UUID, 0, len(order.Items))
	restoredLines := make([]models.OrderItem, 0, len(order.Items))
	for _, item := range order.Items {
		ok, err := stock.Increment(ctx, item.ProductID, item.Quantity)
		if err != nil {
			return nil, err
		}
		if !ok {
			// product deleted since purchase; nothing to give back to
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"order_id":   order.ID,
				"product_id": item.ProductID,
			}), "inventory row missing on cancellation")
			continue
		}
		restored = append(restored, item.ProductID)
		restoredLines = append(restoredLines, item)
	}

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCancelled,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		Data: payloads.OrderCancelledEvent{
			OrderID:        order.ID,
			UserID:         order.UserID,
			PreviousStatus: from,
			Reason:         reason,
			RestoredItems:  eventLines(restoredLines),
		},
	}); err != nil {
		return nil, err
	}

	order.Status = enums.OrderStatusCancelled
	order.CancelledAt = &now
	order.UpdatedAt = now
	return restored, nil
}

func (s *service) afterTransition(ctx context.Context, order *models.Order, from enums.OrderStatus, restored []uuid.UUID) {
	s.cache.Invalidate(ctx, cache.ForOrderTransition(order.ID, order.UserID, restored))
	s.metrics.Transition(from.String(), order.Status.String())
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id": order.ID,
		"from":     from,
		"to":       order.Status,
	}), "order status changed")
}

// txError passes typed errors through and turns anything else that failed
// inside the unit of work into a retryable TransactionFailed.
func (s *service) txError(ctx context.Context, err error, op string) error {
	if typed := pkgerrors.As(err); typed != nil {
		if typed.Code() == pkgerrors.CodeTransactionFailed {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), op+": transaction failed")
		}
		return err
	}
	s.logg.Error(ctx, op+": transaction failed", err)
	return pkgerrors.Wrap(pkgerrors.CodeTransactionFailed, err, op)
}

type cartLine struct {
	productID uuid.UUID
	name      string
	price     decimal.Decimal
	quantity  int
}

// partition splits the cart into purchasable lines and the reasons the rest
// cannot be fulfilled.
func partition(items []models.CartItem) ([]cartLine, []UnavailableItem) {
	lines := make([]cartLine, 0, len(items))
	var unavailable []UnavailableItem
	for _, item := range items {
		p := item.Product
		if p == nil || !p.IsActive {
			unavailable = append(unavailable, UnavailableItem{ProductID: item.ProductID, Reason: enums.UnavailableNotAvailable})
			continue
		}
		available := 0
		if p.Inventory != nil {
			available = p.Inventory.Quantity
		}
		if available < item.Quantity {
			qty := available
			unavailable = append(unavailable, UnavailableItem{ProductID: item.ProductID, Reason: enums.UnavailableInsufficientStock, Available: &qty})
			continue
		}
		lines = append(lines, cartLine{productID: p.ID, name: p.Name, price: p.Price.Round(2), quantity: item.Quantity})
	}
	return lines, unavailable
}

func buildOrder(userID uuid.UUID, input PlaceOrderInput, lines []cartLine) *models.Order {
	order := &models.Order{
		ID:              uuid.New(),
		UserID:          userID,
		Status:          enums.OrderStatusPending,
		ShippingAddress: input.ShippingAddress,
		Notes:           input.Notes,
		Items:           make([]models.OrderItem, 0, len(lines)),
	}
	total := decimal.Zero
	for _, line := range lines {
		order.Items = append(order.Items, models.OrderItem{
			OrderID:     order.ID,
			ProductID:   line.productID,
			ProductName: line.name,
			Price:       line.price,
			Quantity:    line.quantity,
		})
		total = total.Add(lineTotal(line.price, line.quantity))
	}
	order.TotalAmount = total.Round(2)
	return order
}

func eventLines(items []models.OrderItem) []payloads.OrderLine {
	out := make([]payloads.OrderLine, 0, len(items))
	for _, item := range items {
		out = append(out, payloads.OrderLine{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price.StringFixed(2),
		})
	}
	return out
}

func productIDs(items []models.OrderItem) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	return ids
}

func invalidTransition(from, to enums.OrderStatus) error {
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf("cannot move order from %s to %s", from, to)).
		WithDetails(map[string]any{"from": from, "to": to})
}

func mapLoadError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}

func placementOutcome(err error) string {
	switch {
	case pkgerrors.IsCode(err, pkgerrors.CodeOrderRejected):
		return "rejected"
	case pkgerrors.IsCode(err, pkgerrors.CodeEmptyCart):
		return "empty_cart"
	case pkgerrors.IsCode(err, pkgerrors.CodeTransactionFailed):
		return "tx_failed"
	case pkgerrors.As(err) == nil:
		return "tx_failed"
	default:
		return "error"
	}
}
