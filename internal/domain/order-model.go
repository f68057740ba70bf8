package domain

import (
	"time"
)

// OrderKind distinguishes passenger trips from parcel deliveries.
// Both kinds share one status machine and one timer subsystem.
type OrderKind string

const (
	KindTrip     OrderKind = "TRIP"
	KindDelivery OrderKind = "DELIVERY"
)

// State is the lifecycle state of an order.
type State string

const (
	StateInitiated  State = "initiated"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateCanceled   State = "canceled"
	StateFailed     State = "failed"
)

// AllowedTransitions represents the status graph as code.
// processing -> initiated is the system-only processing-timeout edge.
var AllowedTransitions = map[State][]State{
	StateInitiated:  {StateProcessing, StateCompleted, StateCanceled, StateFailed},
	StateProcessing: {StateInitiated, StateCompleted, StateCanceled, StateFailed},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to State) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is permitted.
func (s State) IsTerminal() bool {
	_, ok := AllowedTransitions[s]
	return !ok
}

// IsActive reports whether the order can still be resolved by an actor.
func (s State) IsActive() bool {
	return s == StateInitiated || s == StateProcessing
}

// Package type constants (delivery orders)
const (
	PackageTypeDocument = "DOCUMENT"
	PackageTypeParcel   = "PARCEL"
	PackageTypeFragile  = "FRAGILE"
	PackageTypeValuable = "VALUABLE"
	PackageTypeOther    = "OTHER"
)

// Package size constants (delivery orders)
const (
	PackageSizeSmall      = "SMALL"
	PackageSizeMedium     = "MEDIUM"
	PackageSizeLarge      = "LARGE"
	PackageSizeExtraLarge = "EXTRA_LARGE"
)

// Order represents one transportation or delivery request.
// Route and package attributes are immutable after creation; only the
// status record, the single driver assignment and the channel message id
// change during the order's lifetime.
type Order struct {
	ID          int64     `json:"id" db:"id"`
	Kind        OrderKind `json:"kind" db:"kind"`
	PassengerID string    `json:"passenger_id" db:"passenger_id"`
	DriverID    *string   `json:"driver_id" db:"driver_id"`

	FromRegionID   int64 `json:"from_region_id" db:"from_region_id"`
	FromDistrictID int64 `json:"from_district_id" db:"from_district_id"`
	ToRegionID     int64 `json:"to_region_id" db:"to_region_id"`
	ToDistrictID   int64 `json:"to_district_id" db:"to_district_id"`

	// Resolved names, populated by repository joins for rendering.
	FromRegion   string `json:"from_region" db:"-"`
	FromDistrict string `json:"from_district" db:"-"`
	ToRegion     string `json:"to_region" db:"-"`
	ToDistrict   string `json:"to_district" db:"-"`

	// Trip attributes
	Passengers    int        `json:"passengers" db:"passengers"`
	DepartureTime *time.Time `json:"departure_time" db:"departure_time"`

	// Delivery attributes
	PackageType        string   `json:"package_type" db:"package_type"`
	PackageSize        string   `json:"package_size" db:"package_size"`
	PackageWeight      *float64 `json:"package_weight" db:"package_weight"`
	PackageDescription string   `json:"package_description" db:"package_description"`
	ReceiverName       string   `json:"receiver_name" db:"receiver_name"`
	ReceiverPhone      string   `json:"receiver_phone" db:"receiver_phone"`

	// ChannelMessageID is the id of the public channel announcement, nil
	// until posted and after deletion.
	ChannelMessageID *int64 `json:"channel_message_id" db:"channel_message_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// Status is the attached 1:1 lifecycle record.
	Status *OrderStatus `json:"status" db:"-"`
}

// OrderStatus is the mutable lifecycle record, 1:1 with Order.
type OrderStatus struct {
	OrderID   int64     `json:"order_id" db:"order_id"`
	State     State     `json:"state" db:"status"`
	ActorID   *string   `json:"actor_id" db:"actor_id"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CreateOrderRequest carries the attributes a conversation flow collected.
type CreateOrderRequest struct {
	Kind        OrderKind `json:"kind"`
	PassengerID string    `json:"passenger_id"`

	FromRegionID   int64 `json:"from_region_id"`
	FromDistrictID int64 `json:"from_district_id"`
	ToRegionID     int64 `json:"to_region_id"`
	ToDistrictID   int64 `json:"to_district_id"`

	Passengers    int        `json:"passengers"`
	DepartureTime *time.Time `json:"departure_time"`

	PackageType        string   `json:"package_type"`
	PackageSize        string   `json:"package_size"`
	PackageWeight      *float64 `json:"package_weight"`
	PackageDescription string   `json:"package_description"`
	ReceiverName       string   `json:"receiver_name"`
	ReceiverPhone      string   `json:"receiver_phone"`
}

// OrderStatistics aggregates order counts for the admin panel.
type OrderStatistics struct {
	TotalOrders    int64           `json:"total_orders"`
	TotalTrips     int64           `json:"total_trips"`
	TotalDelivery  int64           `json:"total_deliveries"`
	TodayOrders    int64           `json:"today_orders"`
	WeeklyOrders   int64           `json:"weekly_orders"`
	ByState        map[State]int64 `json:"by_state"`
	TotalUsers     int64           `json:"total_users"`
	DriverCount    int64           `json:"driver_count"`
	PassengerCount int64           `json:"passenger_count"`
}
