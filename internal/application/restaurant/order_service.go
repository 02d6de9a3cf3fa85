package restaurant

import (
	"context"

	"github.com/google/uuid"
	"github.com/mise/backend/internal/application/tenancy"
	"github.com/mise/backend/internal/domain/audit"
	"github.com/mise/backend/internal/domain/restaurant"
	"github.com/mise/backend/internal/domain/shared"
	domaintenancy "github.com/mise/backend/internal/domain/tenancy"
	"github.com/mise/backend/internal/infrastructure/logger"
	"github.com/mise/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// OrderService handles orders of the caller's tenant
type OrderService struct {
	orders  restaurant.OrderRepository
	auditor audit.Recorder
}

// NewOrderService creates a new OrderService
func NewOrderService(orders restaurant.OrderRepository, auditor audit.Recorder) *OrderService {
	return &OrderService{orders: orders, auditor: auditor}
}

// Create opens an order placed by the calling user
func (s *OrderService) Create(ctx context.Context, req CreateOrderRequest) (*OrderResponse, error) {
	order, err := restaurant.NewOrder("", req.TableLabel, domaintenancy.UserID(ctx), req.Total)
	if err != nil {
		return nil, err
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, err
	}
	resp := ToOrderResponse(order)
	return &resp, nil
}

// GetByID returns one order
func (s *OrderService) GetByID(ctx context.Context, id uuid.UUID) (*OrderResponse, error) {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToOrderResponse(order)
	return &resp, nil
}

// List returns a page of orders
func (s *OrderService) List(ctx context.Context, filter shared.Filter) (shared.Paginated[OrderResponse], error) {
	orders, total, err := s.orders.FindAll(ctx, filter)
	if err != nil {
		return shared.Paginated[OrderResponse]{}, err
	}
	out := make([]OrderResponse, len(orders))
	for i := range orders {
		out[i] = ToOrderResponse(&orders[i])
	}
	return shared.NewPaginated(out, total, filter.Page, filter.Limit()), nil
}

// MarkPaid settles an open order
func (s *OrderService) MarkPaid(ctx context.Context, id uuid.UUID) (*OrderResponse, error) {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := order.MarkPaid(); err != nil {
		return nil, err
	}
	if err := s.orders.Update(ctx, order); err != nil {
		return nil, err
	}
	resp := ToOrderResponse(order)
	return &resp, nil
}

// Void cancels an order. Voiding rewrites a financial record, so the caller
// must present a fresh verification for this request.
func (s *OrderService) Void(ctx context.Context, proof tenancy.Verification, id uuid.UUID, reason string) (*OrderResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "order", "void",
		telemetry.WithAttribute(telemetry.SpanAttrOrderID, id.String()))
	defer span.End()

	if err := proof.Check(ctx); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := order.Void(reason); err != nil {
		return nil, err
	}
	if err := s.orders.Update(ctx, order); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	rc, _ := domaintenancy.FromContext(ctx)
	if s.auditor != nil {
		s.auditor.Record(ctx, audit.Allowed(audit.ActionOrderVoided, rc.TenantID(), rc.UserID(), rc.RequestID(),
			"order "+order.ID.String()+": "+order.VoidReason))
	}
	logger.L(ctx).Info("Order voided",
		zap.String("order_id", order.ID.String()),
		zap.String("total", order.Total.StringFixed(2)),
	)

	resp := ToOrderResponse(order)
	return &resp, nil
}

// Summary counts the tenant's orders and sums their totals by status
func (s *OrderService) Summary(ctx context.Context) (*OrderSummary, error) {
	count, err := s.orders.Count(ctx)
	if err != nil {
		return nil, err
	}
	gross, err := s.orders.SumTotals(ctx, "")
	if err != nil {
		return nil, err
	}
	paid, err := s.orders.SumTotals(ctx, restaurant.OrderStatusPaid)
	if err != nil {
		return nil, err
	}
	voided, err := s.orders.SumTotals(ctx, restaurant.OrderStatusVoided)
	if err != nil {
		return nil, err
	}
	return &OrderSummary{
		Count:       count,
		GrossTotal:  gross.Round(2),
		PaidTotal:   paid.Round(2),
		VoidedTotal: voided.Round(2),
	}, nil
}

