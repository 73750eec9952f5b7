package models

import (
	"math"
	"time"
)

type MenuItem struct {
	ID          string    `json:"id" bson:"_id"`
	Name        string    `json:"name" bson:"name"`
	Description *string   `json:"description" bson:"description,omitempty"`
	Price       float64   `json:"price" bson:"price"`
	Available   bool      `json:"available" bson:"available"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`
}

type PaymentType string

const (
	PaymentCash PaymentType = "CASH"
	PaymentCard PaymentType = "CARD"
)

func (p PaymentType) Valid() bool {
	return p == PaymentCash || p == PaymentCard
}

type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusDelivered OrderStatus = "DELIVERED"
)

func (s OrderStatus) Valid() bool {
	return s == StatusPending || s == StatusDelivered
}

// Toggle flips PENDING and DELIVERED. Anything else is treated as PENDING.
func (s OrderStatus) Toggle() OrderStatus {
	if s == StatusPending {
		return StatusDelivered
	}
	return StatusPending
}

// Order is a submitted ticket. Subtotal is stored exactly as the client sent it.
type Order struct {
	ID           string      `json:"id" bson:"_id"`
	CustomerName string      `json:"customerName" bson:"customerName"`
	PaymentType  PaymentType `json:"paymentType" bson:"paymentType"`
	Seating      *string     `json:"seating" bson:"seating,omitempty"`
	Subtotal     float64     `json:"subtotal" bson:"subtotal"`
	Status       OrderStatus `json:"status" bson:"status"`
	CreatedAt    time.Time   `json:"createdAt" bson:"createdAt"`
	Items        []OrderItem `json:"items" bson:"items,omitempty"`
}

// TotalItems sums the quantities of every line.
func (o Order) TotalItems() int {
	n := 0
	for _, item := range o.Items {
		n += item.Quantity
	}
	return n
}

// ComputedSubtotal prices the order from the joined menu items.
// Lines whose product is no longer on the menu count as zero.
func (o Order) ComputedSubtotal() float64 {
	var total float64
	for _, item := range o.Items {
		if item.Product != nil {
			total += item.Product.Price * float64(item.Quantity)
		}
	}
	return RoundCents(total)
}

type OrderItem struct {
	ID        string    `json:"id" bson:"_id"`
	OrderID   string    `json:"orderId" bson:"orderId"`
	ProductID string    `json:"productId" bson:"productId"`
	Quantity  int       `json:"quantity" bson:"quantity"`
	Product   *MenuItem `json:"product,omitempty" bson:"product,omitempty"`
}

// OrderLine is one product/quantity pair in an order submission.
type OrderLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
