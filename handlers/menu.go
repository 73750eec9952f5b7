package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"go_trial/ordertaking/models"
	"go_trial/ordertaking/store"
)

var menuTracer = otel.Tracer("menu-service")

// GetMenuItems lists the menu, newest first.
func (api *API) GetMenuItems(w http.ResponseWriter, r *http.Request) {
	ctx, span := menuTracer.Start(r.Context(), "GetMenuItems")
	defer span.End()

	items, err := api.Store.ListMenuItems(ctx, store.SortNewest)
	if err != nil {
		span.RecordError(err)
		api.fail(w, "MENU", err, "Failed to fetch menu items")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// PostMenuItem adds an available item. Prices are set separately, so a new item starts at 0.
func (api *API) PostMenuItem(w http.ResponseWriter, r *http.Request) {
	ctx, span := menuTracer.Start(r.Context(), "PostMenuItem")
	defer span.End()

	var req models.CreateMenuItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		api.fail(w, "MENU", err, "")
		return
	}
	if err := req.Validate(); err != nil {
		api.fail(w, "MENU", err, "")
		return
	}

	item := &models.MenuItem{
		Name:        req.Name,
		Description: req.Description,
		Price:       0,
		Available:   true,
	}
	if err := api.Store.CreateMenuItem(ctx, item); err != nil {
		span.RecordError(err)
		api.fail(w, "MENU", err, "Failed to create menu item")
		return
	}
	span.SetAttributes(attribute.String("menu_item.id", item.ID))
	writeJSON(w, http.StatusCreated, item)
}

// PutMenuItem renames or re-describes an item. The price is reset to 0 and availability is only
// changed when the request carries it.
func (api *API) PutMenuItem(w http.ResponseWriter, r *http.Request) {
	ctx, span := menuTracer.Start(r.Context(), "PutMenuItem")
	defer span.End()

	id := mux.Vars(r)["id"]
	var req models.UpdateMenuItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		api.fail(w, "MENU", err, "")
		return
	}
	if err := req.Validate(); err != nil {
		api.fail(w, "MENU", err, "")
		return
	}

	item, err := api.Store.GetMenuItem(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Menu item not found")
		return
	}
	if err != nil {
		api.fail(w, "MENU", err, "Failed to update menu item")
		return
	}

	item.Name = req.Name
	item.Description = req.Description
	item.Price = 0
	if req.Available != nil {
		item.Available = *req.Available
	}
	item.UpdatedAt = time.Now().UTC()
	if err := api.Store.UpdateMenuItem(ctx, item); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Menu item not found")
			return
		}
		span.RecordError(err)
		api.fail(w, "MENU", err, "Failed to update menu item")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (api *API) DeleteMenuItem(w http.ResponseWriter, r *http.Request) {
	ctx, span := menuTracer.Start(r.Context(), "DeleteMenuItem")
	defer span.End()

	err := api.Store.DeleteMenuItem(ctx, mux.Vars(r)["id"])
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Menu item not found")
		return
	}
	if err != nil {
		span.RecordError(err)
		api.fail(w, "MENU", err, "Failed to delete menu item")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// GetMenuPrices lists the menu alphabetically for the price editor.
func (api *API) GetMenuPrices(w http.ResponseWriter, r *http.Request) {
	ctx, span := menuTracer.Start(r.Context(), "GetMenuPrices")
	defer span.End()

	items, err := api.Store.ListMenuItems(ctx, store.SortByName)
	if err != nil {
		span.RecordError(err)
		api.fail(w, "MENU", err, "Failed to fetch menu prices")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (api *API) GetMenuPrice(w http.ResponseWriter, r *http.Request) {
	item, err := api.Store.GetMenuItem(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Menu item not found")
		return
	}
	if err != nil {
		api.fail(w, "MENU", err, "Failed to fetch menu item")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// PutMenuPrice sets price and availability. Both fields are required.
func (api *API) PutMenuPrice(w http.ResponseWriter, r *http.Request) {
	ctx, span := menuTracer.Start(r.Context(), "PutMenuPrice")
	defer span.End()

	id := mux.Vars(r)["id"]
	var req models.UpdatePriceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		// a string price or a non-boolean availability lands here
		var vErr *models.ValidationError
		if errors.As(err, &vErr) {
			switch vErr.Field {
			case "price":
				err = &models.ValidationError{Field: "price", Message: "Invalid price. Price must be a number greater than or equal to 0."}
			case "available":
				err = &models.ValidationError{Field: "available", Message: "Invalid availability. Available must be a boolean value."}
			}
		}
		api.fail(w, "MENU", err, "")
		return
	}
	if err := req.Validate(); err != nil {
		api.fail(w, "MENU", err, "")
		return
	}

	item, err := api.Store.GetMenuItem(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Menu item not found")
		return
	}
	if err != nil {
		api.fail(w, "MENU", err, "Failed to update menu item price")
		return
	}

	item.Price = models.RoundCents(*req.Price)
	item.Available = *req.Available
	item.UpdatedAt = time.Now().UTC()
	if err := api.Store.UpdateMenuItem(ctx, item); err != nil {
		span.RecordError(err)
		api.fail(w, "MENU", err, "Failed to update menu item price")
		return
	}
	writeJSON(w, http.StatusOK, item)
}
