package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"sewain/internal/models"
	"sewain/internal/pricing"
	"sewain/internal/repositories"
)

// EventPublisher publishes order lifecycle events to the message queue.
// *rabbitmq.Client satisfies it; tests pass a mock or nil.
type EventPublisher interface {
	Publish(exchange, routingKey string, body []byte) error
}

// PickupInfo carries the fulfillment fields a partner sets when confirming
// an order. MarkReady requests the waiting -> ready transition on top of the
// field update.
type PickupInfo struct {
	PickupAddress     string
	ContactNumber     string
	PickupTime        string
	Notes             string
	ReturnInformation string
	MarkReady         bool
}

// OrderView is the order shape returned by listings, with related entities
// reduced to summaries instead of lazily loaded relations.
type OrderView struct {
	models.Order
	ProductSummary  *models.ProductSummary `json:"product_summary,omitempty"`
	CustomerSummary *models.UserSummary    `json:"customer_summary,omitempty"`
	PartnerSummary  *models.UserSummary    `json:"partner_summary,omitempty"`
}

// OrderService owns the order lifecycle state machine: creation, partner
// confirmation, pickup, return and completion, plus the admin override.
type OrderService struct {
	orderRepo   repositories.OrderRepository
	productRepo repositories.ProductRepository
	publisher   EventPublisher
}

// NewOrderService creates a new OrderService.
func NewOrderService(orderRepo repositories.OrderRepository, productRepo repositories.ProductRepository, publisher EventPublisher) *OrderService {
	return &OrderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		publisher:   publisher,
	}
}

// CreateOrder places a rental order for the acting user. It validates the
// rental window against the product's limits, reserves one unit of stock
// atomically, and computes the total price and end date.
func (s *OrderService) CreateOrder(actor AuthContext, productID string, duration int, startDate time.Time) (*models.Order, error) {
	product, err := s.productRepo.GetByID(productID)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]string)
	if duration < 1 {
		fields["duration"] = "duration must be at least 1 day"
	} else if duration > product.MaxRentDays {
		fields["duration"] = fmt.Sprintf("rent duration exceeds maximum of %d days", product.MaxRentDays)
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	if startDate.Before(today) {
		fields["start_date"] = "start date must not be in the past"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	// One unit is reserved per order regardless of duration. The decrement
	// is conditional on remaining stock, so the last unit cannot be sold
	// twice under concurrent creation.
	if err := s.productRepo.DecrementStock(productID); err != nil {
		return nil, err
	}

	order := &models.Order{
		CustomerID: actor.UserID,
		PartnerID:  product.PartnerID, // copied from the product at creation time
		ProductID:  product.ID,
		StartDate:  startDate,
		EndDate:    startDate.AddDate(0, 0, duration),
		Duration:   duration,
		TotalPrice: pricing.RentalTotal(product.RentPricePerDay, duration),
		Status:     models.StatusWaiting,
	}
	if err := s.orderRepo.Create(order); err != nil {
		return nil, fmt.Errorf("failed to create order in repository: %w", err)
	}

	s.publishEvent("order.created", order, actor)
	return order, nil
}

// ConfirmPickup updates the fulfillment fields of the order and, when
// requested, performs the waiting -> ready transition. The fields remain
// editable on later statuses; the transition is only legal from waiting.
func (s *OrderService) ConfirmPickup(actor AuthContext, orderID string, info PickupInfo) error {
	order, err := s.ownedOrder(actor, orderID)
	if err != nil {
		return err
	}

	fields := make(map[string]string)
	if info.PickupAddress == "" {
		fields["pickup_address"] = "pickup address is required"
	}
	if info.ContactNumber == "" {
		fields["contact_number"] = "contact number is required"
	}
	if info.PickupTime == "" {
		fields["pickup_time"] = "pickup time is required"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}

	order.PickupAddress = info.PickupAddress
	order.ContactNumber = info.ContactNumber
	order.PickupTime = info.PickupTime
	order.Notes = info.Notes
	if info.ReturnInformation != "" {
		order.ReturnInformation = info.ReturnInformation
	}
	if err := s.orderRepo.UpdateFulfillment(order); err != nil {
		return err
	}

	if info.MarkReady {
		if err := s.transition(order.ID, models.StatusWaiting, models.StatusReady, actor); err != nil {
			return err
		}
	}
	return nil
}

// Cancel moves a waiting order to the terminal canceled status. Stock is
// not restored.
func (s *OrderService) Cancel(actor AuthContext, orderID string) error {
	if _, err := s.ownedOrder(actor, orderID); err != nil {
		return err
	}
	return s.transition(orderID, models.StatusWaiting, models.StatusCanceled, actor)
}

// MarkPickedUp records that the customer picked the device up. Only legal
// from ready.
func (s *OrderService) MarkPickedUp(actor AuthContext, orderID string) error {
	if _, err := s.ownedOrder(actor, orderID); err != nil {
		return err
	}
	return s.transition(orderID, models.StatusReady, models.StatusRented, actor)
}

// MarkFinished completes an order whose rental period has expired. Only
// legal from return_now. An optional return information text is recorded.
func (s *OrderService) MarkFinished(actor AuthContext, orderID string, returnInformation string) error {
	order, err := s.ownedOrder(actor, orderID)
	if err != nil {
		return err
	}
	if err := s.transition(orderID, models.StatusReturnNow, models.StatusFinished, actor); err != nil {
		return err
	}
	if returnInformation != "" {
		order.ReturnInformation = returnInformation
		if err := s.orderRepo.UpdateFulfillment(order); err != nil {
			return err
		}
	}
	return nil
}

// AdminSetStatus overwrites the order status without state-machine
// enforcement. Canceled is deliberately not reachable this way; admins
// correct the lifecycle, cancellation stays a partner action.
func (s *OrderService) AdminSetStatus(actor AuthContext, orderID string, status models.OrderStatus) error {
	if !actor.IsAdmin() {
		return fmt.Errorf("admin role required: %w", ErrForbidden)
	}
	switch status {
	case models.StatusWaiting, models.StatusReady, models.StatusRented, models.StatusReturnNow, models.StatusFinished:
	default:
		return NewValidationError("status", fmt.Sprintf("invalid order status: %s", status))
	}
	if err := s.orderRepo.SetStatus(orderID, status); err != nil {
		return err
	}
	s.publishStatusEvent(orderID, status, actor)
	return nil
}

// GetOrder retrieves a single order, enforcing read scope: customers see
// their own orders, partners the orders they fulfill, admins everything.
func (s *OrderService) GetOrder(actor AuthContext, orderID string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && order.CustomerID != actor.UserID && order.PartnerID != actor.UserID {
		return nil, fmt.Errorf("order %s does not belong to caller: %w", orderID, ErrForbidden)
	}
	return order, nil
}

// ListOrders returns the orders visible to the acting user, scoped by role.
func (s *OrderService) ListOrders(actor AuthContext) ([]OrderView, error) {
	var (
		orders []models.Order
		err    error
	)
	switch {
	case actor.IsAdmin():
		orders, err = s.orderRepo.ListAll()
	case actor.IsPartner():
		orders, err = s.orderRepo.ListForPartner(actor.UserID)
	default:
		orders, err = s.orderRepo.ListForCustomer(actor.UserID)
	}
	if err != nil {
		return nil, err
	}

	views := make([]OrderView, 0, len(orders))
	for _, order := range orders {
		views = append(views, newOrderView(order))
	}
	return views, nil
}

// SweepExpiredRentals transitions every rented order whose end date has
// passed to return_now. Re-running the sweep is a no-op for orders already
// moved, and per-order failures are logged without aborting the sweep.
func (s *OrderService) SweepExpiredRentals(now time.Time) (int, error) {
	expired, err := s.orderRepo.ListExpiredRented(now)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired rentals: %w", err)
	}

	swept := 0
	for _, order := range expired {
		err := s.orderRepo.UpdateStatusFrom(order.ID, models.StatusRented, models.StatusReturnNow)
		if err != nil {
			if errors.Is(err, repositories.ErrStaleStatus) {
				// Someone else moved the order between the listing and the
				// swap. Nothing to do.
				continue
			}
			log.Printf("Sweep: failed to transition order %s: %v", order.ID, err)
			continue
		}
		s.publishStatusEvent(order.ID, models.StatusReturnNow, AuthContext{})
		swept++
	}
	return swept, nil
}

// ownedOrder loads the order and verifies the acting partner owns it.
// Admins bypass the ownership check.
func (s *OrderService) ownedOrder(actor AuthContext, orderID string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin() {
		return order, nil
	}
	if !actor.IsPartner() {
		return nil, fmt.Errorf("partner role required: %w", ErrForbidden)
	}
	if order.PartnerID != actor.UserID {
		return nil, fmt.Errorf("order %s is not fulfilled by caller: %w", orderID, ErrForbidden)
	}
	return order, nil
}

// transition performs a compare-and-swap status change and converts a stale
// precondition into the state-machine error callers expect.
func (s *OrderService) transition(orderID string, from, to models.OrderStatus, actor AuthContext) error {
	if err := s.orderRepo.UpdateStatusFrom(orderID, from, to); err != nil {
		if errors.Is(err, repositories.ErrStaleStatus) {
			return fmt.Errorf("cannot move order %s to %q, it is no longer %q: %w", orderID, to, from, ErrInvalidTransition)
		}
		return err
	}
	s.publishStatusEvent(orderID, to, actor)
	return nil
}

func (s *OrderService) publishEvent(routingKey string, order *models.Order, actor AuthContext) {
	if s.publisher == nil {
		return
	}
	body, err := json.Marshal(map[string]interface{}{
		"order_id":    order.ID,
		"customer_id": order.CustomerID,
		"partner_id":  order.PartnerID,
		"product_id":  order.ProductID,
		"status":      order.Status,
		"total_price": order.TotalPrice,
		"actor_id":    actor.UserID,
	})
	if err != nil {
		log.Printf("Failed to marshal %s event for order %s: %v", routingKey, order.ID, err)
		return
	}
	if err := s.publisher.Publish("order", routingKey, body); err != nil {
		log.Printf("Warning: failed to publish %s event for order %s: %v", routingKey, order.ID, err)
	}
}

func (s *OrderService) publishStatusEvent(orderID string, status models.OrderStatus, actor AuthContext) {
	if s.publisher == nil {
		return
	}
	body, err := json.Marshal(map[string]interface{}{
		"order_id": orderID,
		"status":   status,
		"actor_id": actor.UserID,
	})
	if err != nil {
		log.Printf("Failed to marshal status event for order %s: %v", orderID, err)
		return
	}
	if err := s.publisher.Publish("order", "order.status_changed", body); err != nil {
		log.Printf("Warning: failed to publish status event for order %s: %v", orderID, err)
	}
}

func newOrderView(order models.Order) OrderView {
	view := OrderView{Order: order}
	if order.Product != nil {
		summary := order.Product.Summary()
		view.ProductSummary = &summary
	}
	if order.Customer != nil {
		summary := order.Customer.Summary()
		view.CustomerSummary = &summary
	}
	if order.Partner != nil {
		summary := order.Partner.Summary()
		view.PartnerSummary = &summary
	}
	// The raw relations stay out of the payload; summaries replace them.
	view.Product = nil
	view.Customer = nil
	view.Partner = nil
	return view
}
