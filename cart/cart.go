// Package cart holds the in-progress order on the ordering screen.
//
// A Cart is owned by a single screen and is not safe for concurrent use. It never holds an
// entry with a quantity below one.
package cart

import "go_trial/ordertaking/models"

type Item struct {
	Product  models.MenuItem
	Quantity int
}

// LineTotal is price × quantity for the entry.
func (i Item) LineTotal() float64 {
	return models.RoundCents(i.Product.Price * float64(i.Quantity))
}

type Cart struct {
	items map[string]*Item
	order []string
}

func New() *Cart {
	return &Cart{items: make(map[string]*Item)}
}

// Add increments the product's quantity, inserting it at one. The stored snapshot is replaced
// with product so later price edits on the menu show up.
func (c *Cart) Add(product models.MenuItem) {
	if item, ok := c.items[product.ID]; ok {
		item.Product = product
		item.Quantity++
		return
	}
	c.items[product.ID] = &Item{Product: product, Quantity: 1}
	c.order = append(c.order, product.ID)
}

// UpdateQuantity adds delta to the entry. Anything that ends at zero or below is removed.
func (c *Cart) UpdateQuantity(productID string, delta int) {
	item, ok := c.items[productID]
	if !ok {
		return
	}
	item.Quantity += delta
	if item.Quantity <= 0 {
		c.Remove(productID)
	}
}

func (c *Cart) Remove(productID string) {
	if _, ok := c.items[productID]; !ok {
		return
	}
	delete(c.items, productID)
	for i, id := range c.order {
		if id == productID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Toggle is the tap on a menu tile: a single unit is taken back out, anything else adds one.
func (c *Cart) Toggle(product models.MenuItem) {
	if item, ok := c.items[product.ID]; ok && item.Quantity == 1 {
		c.Remove(product.ID)
		return
	}
	c.Add(product)
}

func (c *Cart) Quantity(productID string) int {
	if item, ok := c.items[productID]; ok {
		return item.Quantity
	}
	return 0
}

// Items returns copies of the entries in the order they were first added.
func (c *Cart) Items() []Item {
	out := make([]Item, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *c.items[id])
	}
	return out
}

func (c *Cart) Lines() []models.OrderLine {
	lines := make([]models.OrderLine, 0, len(c.order))
	for _, id := range c.order {
		lines = append(lines, models.OrderLine{ProductID: id, Quantity: c.items[id].Quantity})
	}
	return lines
}

func (c *Cart) Subtotal() float64 {
	var total float64
	for _, item := range c.items {
		total += item.LineTotal()
	}
	return models.RoundCents(total)
}

func (c *Cart) TotalItems() int {
	n := 0
	for _, item := range c.items {
		n += item.Quantity
	}
	return n
}

func (c *Cart) Len() int { return len(c.order) }

func (c *Cart) IsEmpty() bool { return len(c.order) == 0 }

func (c *Cart) Clear() {
	c.items = make(map[string]*Item)
	c.order = nil
}
