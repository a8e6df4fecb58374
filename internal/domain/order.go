package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusPickedUp       OrderStatus = "picked_up"
	OrderStatusInProcess      OrderStatus = "in_process"
	OrderStatusReady          OrderStatus = "ready"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCompleted      OrderStatus = "completed"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

type Address struct {
	Street   string `json:"street"`
	Area     string `json:"area"`
	City     string `json:"city"`
	State    string `json:"state"`
	Landmark string `json:"landmark,omitempty"`
}

func (a Address) IsZero() bool {
	return a.Street == "" && a.City == ""
}

type OrderItem struct {
	Service     string          `json:"service"`
	GarmentType GarmentType     `json:"garmentType"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	IsExpress   bool            `json:"isExpress"`
	Notes       string          `json:"notes,omitempty"`
}

// Order is the server-side view of an order. IsPaid and Status are only ever
// taken from the API, never set locally.
type Order struct {
	ID             string          `json:"_id"`
	OrderNumber    string          `json:"orderNumber"`
	Items          []OrderItem     `json:"items"`
	PickupDate     string          `json:"pickupDate"`
	PickupTimeSlot TimeSlot        `json:"pickupTimeSlot"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DeliveryFee    decimal.Decimal `json:"deliveryFee"`
	Total          decimal.Decimal `json:"total"`
	Status         OrderStatus     `json:"status"`
	IsPaid         bool            `json:"isPaid"`
	PaymentMethod  string          `json:"paymentMethod,omitempty"`
	CustomerNotes  string          `json:"customerNotes,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

type CreateOrderItemInput struct {
	ServiceID   string      `json:"serviceId"`
	GarmentType GarmentType `json:"garmentType"`
	Quantity    int         `json:"quantity"`
	IsExpress   bool        `json:"isExpress"`
	Notes       string      `json:"notes,omitempty"`
}

type CreateOrderInput struct {
	BranchID        string                 `json:"branchId"`
	Items           []CreateOrderItemInput `json:"items"`
	PickupDate      string                 `json:"pickupDate"`
	PickupTimeSlot  TimeSlot               `json:"pickupTimeSlot"`
	PickupAddress   Address                `json:"pickupAddress"`
	DeliveryAddress Address                `json:"deliveryAddress"`
	CustomerNotes   string                 `json:"customerNotes,omitempty"`
}

// Profile is the authenticated user as the API reports it. Each user has
// exactly one address.
type Profile struct {
	ID      string  `json:"_id"`
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Role    string  `json:"role"`
	Address Address `json:"address"`
}
