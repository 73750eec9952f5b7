package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"go_trial/ordertaking/models"
	"go_trial/ordertaking/store"
)

var orderTracer = otel.Tracer("order-service")

// PostOrder accepts a ticket from the ordering screen. The submitted subtotal is stored as sent;
// a disagreement with current menu prices is only logged.
func (api *API) PostOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := orderTracer.Start(r.Context(), "PostOrder")
	defer span.End()

	var req models.CreateOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		api.fail(w, "ORDERS", err, "")
		return
	}
	if err := req.Normalize(api.RequireSeating); err != nil {
		api.fail(w, "ORDERS", err, "")
		return
	}

	order := req.Order(time.Now().UTC())
	err := api.Store.CreateOrder(ctx, order)
	if errors.Is(err, store.ErrUnknownProduct) {
		writeError(w, http.StatusBadRequest, "One or more items are not on the menu")
		return
	}
	if err != nil {
		span.RecordError(err)
		api.fail(w, "ORDERS", err, "Failed to create order")
		return
	}

	if computed := order.ComputedSubtotal(); computed != order.Subtotal {
		api.Log.Warn("ORDERS", fmt.Sprintf("Order %s subtotal %.2f differs from menu prices %.2f", order.ID, order.Subtotal, computed))
	}
	span.SetAttributes(attribute.String("order.id", order.ID), attribute.Int("order.items", order.TotalItems()))
	ordersCreated.WithLabelValues(string(order.PaymentType)).Inc()
	if orderSize != nil {
		orderSize.Record(ctx, int64(order.TotalItems()), metric.WithAttributes(attribute.String("payment_type", string(order.PaymentType))))
	}
	api.Log.Info("ORDERS", fmt.Sprintf("Order %s created for %s (%d items)", order.ID, order.CustomerName, order.TotalItems()))
	writeJSON(w, http.StatusCreated, order)
}

// GetOrders lists every order, newest first, with items and their menu items.
func (api *API) GetOrders(w http.ResponseWriter, r *http.Request) {
	ctx, span := orderTracer.Start(r.Context(), "GetOrders")
	defer span.End()

	orders, err := api.Store.ListOrders(ctx)
	if err != nil {
		span.RecordError(err)
		api.fail(w, "ORDERS", err, "Failed to fetch orders")
		return
	}
	for i := range orders {
		if !orders[i].PaymentType.Valid() {
			orders[i].PaymentType = models.PaymentCash
		}
	}
	writeJSON(w, http.StatusOK, orders)
}

// DeleteOrder removes the order named by ?id= together with its items.
func (api *API) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := orderTracer.Start(r.Context(), "DeleteOrder")
	defer span.End()

	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "Order ID is required")
		return
	}
	err := api.Store.DeleteOrder(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Order not found")
		return
	}
	if err != nil {
		span.RecordError(err)
		api.fail(w, "ORDERS", err, "Failed to delete order")
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Order deleted successfully"})
}

func (api *API) PatchOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := orderTracer.Start(r.Context(), "PatchOrderStatus")
	defer span.End()

	var req models.UpdateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		api.fail(w, "ORDERS", err, "")
		return
	}
	if err := req.Validate(); err != nil {
		api.fail(w, "ORDERS", err, "")
		return
	}

	order, err := api.Store.UpdateOrderStatus(ctx, req.OrderID, req.Status)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Order not found")
		return
	}
	if err != nil {
		span.RecordError(err)
		api.fail(w, "ORDERS", err, "Failed to update order status")
		return
	}
	writeJSON(w, http.StatusOK, order)
}
