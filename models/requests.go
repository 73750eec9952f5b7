package models

import (
	"strings"
	"time"
)

// ValidationError reports a missing or malformed request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

const MinPasswordLength = 6

type CreateOrderRequest struct {
	CustomerName string      `json:"customerName"`
	PaymentType  PaymentType `json:"paymentType,omitempty"`
	Seating      *string     `json:"seating,omitempty"`
	Items        []OrderLine `json:"items"`
	Subtotal     *float64    `json:"subtotal"`
}

// Normalize trims and defaults the request in place and reports the first invalid field.
func (r *CreateOrderRequest) Normalize(requireSeating bool) error {
	r.CustomerName = strings.TrimSpace(r.CustomerName)
	if r.CustomerName == "" {
		return invalid("customerName", "Customer name is required")
	}

	if !r.PaymentType.Valid() {
		r.PaymentType = PaymentCash
	}

	if r.Seating != nil {
		seating := strings.TrimSpace(*r.Seating)
		if seating == "" {
			r.Seating = nil
		} else {
			r.Seating = &seating
		}
	}
	if requireSeating && r.Seating == nil {
		return invalid("seating", "Seating is required")
	}

	if len(r.Items) == 0 {
		return invalid("items", "Items are required")
	}
	for _, line := range r.Items {
		if strings.TrimSpace(line.ProductID) == "" {
			return invalid("items", "Every item needs a productId")
		}
		if line.Quantity <= 0 {
			return invalid("items", "Item quantity must be greater than 0")
		}
	}

	if r.Subtotal == nil {
		return invalid("subtotal", "Subtotal is required")
	}
	if *r.Subtotal < 0 {
		return invalid("subtotal", "Subtotal must not be negative")
	}
	return nil
}

// Order builds a pending order from a normalized request.
func (r *CreateOrderRequest) Order(now time.Time) *Order {
	order := &Order{
		CustomerName: r.CustomerName,
		PaymentType:  r.PaymentType,
		Seating:      r.Seating,
		Status:       StatusPending,
		CreatedAt:    now,
		Items:        make([]OrderItem, 0, len(r.Items)),
	}
	if r.Subtotal != nil {
		order.Subtotal = RoundCents(*r.Subtotal)
	}
	for _, line := range r.Items {
		order.Items = append(order.Items, OrderItem{
			ProductID: strings.TrimSpace(line.ProductID),
			Quantity:  line.Quantity,
		})
	}
	return order
}

type UpdateStatusRequest struct {
	OrderID string      `json:"orderId"`
	Status  OrderStatus `json:"status"`
}

func (r *UpdateStatusRequest) Validate() error {
	r.OrderID = strings.TrimSpace(r.OrderID)
	if r.OrderID == "" {
		return invalid("orderId", "Order ID is required")
	}
	if !r.Status.Valid() {
		return invalid("status", "Invalid status. Must be PENDING or DELIVERED")
	}
	return nil
}

type CreateMenuItemRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

func (r *CreateMenuItemRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return invalid("name", "Name is required")
	}
	r.Description = trimOptional(r.Description)
	return nil
}

type UpdateMenuItemRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Available   *bool   `json:"available,omitempty"`
}

func (r *UpdateMenuItemRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return invalid("name", "Name is required")
	}
	r.Description = trimOptional(r.Description)
	return nil
}

type UpdatePriceRequest struct {
	Price     *float64 `json:"price"`
	Available *bool    `json:"available"`
}

func (r *UpdatePriceRequest) Validate() error {
	if r.Price == nil || *r.Price < 0 {
		return invalid("price", "Invalid price. Price must be a number greater than or equal to 0.")
	}
	if r.Available == nil {
		return invalid("available", "Invalid availability. Available must be a boolean value.")
	}
	return nil
}

type CreateUserRequest struct {
	Username string  `json:"username"`
	Password string  `json:"password"`
	Name     *string `json:"name,omitempty"`
	Role     Role    `json:"role,omitempty"`
}

func (r *CreateUserRequest) Validate() error {
	r.Username = strings.TrimSpace(r.Username)
	if r.Username == "" || r.Password == "" {
		return invalid("username", "Username and password are required")
	}
	if len(r.Password) < MinPasswordLength {
		return invalid("password", "Password must be at least 6 characters long")
	}
	if r.Role == "" {
		r.Role = RoleUser
	}
	if !r.Role.Valid() {
		return invalid("role", "Invalid role. Must be USER or ADMIN")
	}
	r.Name = trimOptional(r.Name)
	return nil
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r *LoginRequest) Validate() error {
	r.Username = strings.TrimSpace(r.Username)
	if r.Username == "" || r.Password == "" {
		return invalid("username", "Username and Password are required")
	}
	return nil
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
