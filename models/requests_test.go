package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }
func strPtr(s string) *string     { return &s }

func TestCreateOrderRequest_Normalize(t *testing.T) {
	valid := func() CreateOrderRequest {
		return CreateOrderRequest{
			CustomerName: "  Dana ",
			Items:        []OrderLine{{ProductID: "p1", Quantity: 2}},
			Subtotal:     floatPtr(8),
		}
	}

	tests := []struct {
		name           string
		mutate         func(*CreateOrderRequest)
		requireSeating bool
		field          string
	}{
		{name: "valid", mutate: func(*CreateOrderRequest) {}},
		{name: "blank customer", mutate: func(r *CreateOrderRequest) { r.CustomerName = "   " }, field: "customerName"},
		{name: "no items", mutate: func(r *CreateOrderRequest) { r.Items = nil }, field: "items"},
		{name: "zero quantity", mutate: func(r *CreateOrderRequest) { r.Items[0].Quantity = 0 }, field: "items"},
		{name: "missing product", mutate: func(r *CreateOrderRequest) { r.Items[0].ProductID = "" }, field: "items"},
		{name: "missing subtotal", mutate: func(r *CreateOrderRequest) { r.Subtotal = nil }, field: "subtotal"},
		{name: "negative subtotal", mutate: func(r *CreateOrderRequest) { r.Subtotal = floatPtr(-1) }, field: "subtotal"},
		{name: "seating required", mutate: func(r *CreateOrderRequest) { r.Seating = strPtr("  ") }, requireSeating: true, field: "seating"},
		{name: "seating given", mutate: func(r *CreateOrderRequest) { r.Seating = strPtr("T4") }, requireSeating: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(&req)
			err := req.Normalize(tt.requireSeating)
			if tt.field == "" {
				require.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestCreateOrderRequest_Defaults(t *testing.T) {
	req := CreateOrderRequest{
		CustomerName: " Dana ",
		PaymentType:  "BITCOIN",
		Seating:      strPtr("   "),
		Items:        []OrderLine{{ProductID: "p1", Quantity: 1}},
		Subtotal:     floatPtr(4.005),
	}
	require.NoError(t, req.Normalize(false))

	assert.Equal(t, "Dana", req.CustomerName)
	assert.Equal(t, PaymentCash, req.PaymentType)
	assert.Nil(t, req.Seating)

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	order := req.Order(now)
	assert.Equal(t, StatusPending, order.Status)
	assert.Equal(t, now, order.CreatedAt)
	assert.Equal(t, []OrderItem{{ProductID: "p1", Quantity: 1}}, order.Items)
}

func TestCreateUserRequest_Validate(t *testing.T) {
	req := CreateUserRequest{Username: "sam", Password: "12345"}
	var verr *ValidationError
	require.ErrorAs(t, req.Validate(), &verr)
	assert.Equal(t, "password", verr.Field)

	req = CreateUserRequest{Username: "sam", Password: "123456", Role: "OWNER"}
	require.ErrorAs(t, req.Validate(), &verr)
	assert.Equal(t, "role", verr.Field)

	req = CreateUserRequest{Username: " sam ", Password: "123456", Name: strPtr(" ")}
	require.NoError(t, req.Validate())
	assert.Equal(t, "sam", req.Username)
	assert.Equal(t, RoleUser, req.Role)
	assert.Nil(t, req.Name)
}

func TestUpdatePriceRequest_Validate(t *testing.T) {
	available := false
	assert.Error(t, (&UpdatePriceRequest{Price: floatPtr(-1), Available: &available}).Validate())
	assert.Error(t, (&UpdatePriceRequest{Price: floatPtr(1)}).Validate())
	assert.NoError(t, (&UpdatePriceRequest{Price: floatPtr(5.5), Available: &available}).Validate())
}

func TestOrderStatus_Toggle(t *testing.T) {
	assert.Equal(t, StatusDelivered, StatusPending.Toggle())
	assert.Equal(t, StatusPending, StatusDelivered.Toggle())
}

func TestOrder_ComputedSubtotal(t *testing.T) {
	order := Order{Items: []OrderItem{
		{Quantity: 2, Product: &MenuItem{Price: 4}},
		{Quantity: 1, Product: &MenuItem{Price: 3.5}},
		{Quantity: 5},
	}}
	assert.Equal(t, 11.5, order.ComputedSubtotal())
	assert.Equal(t, 8, order.TotalItems())
}
