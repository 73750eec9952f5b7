// Package watcher polls the order list and announces orders that were not there last time.
package watcher

import "go_trial/ordertaking/models"

// IDSet returns the set of order ids in orders.
func IDSet(orders []models.Order) map[string]struct{} {
	set := make(map[string]struct{}, len(orders))
	for _, o := range orders {
		set[o.ID] = struct{}{}
	}
	return set
}

// DiffNewOrders returns the orders in current whose id is not in previous, keeping current's order.
func DiffNewOrders(previous map[string]struct{}, current []models.Order) []models.Order {
	var fresh []models.Order
	for _, o := range current {
		if _, seen := previous[o.ID]; !seen {
			fresh = append(fresh, o)
		}
	}
	return fresh
}
