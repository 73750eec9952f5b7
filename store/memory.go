package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go_trial/ordertaking/models"
)

type InMemoryStore struct {
	mutex     sync.RWMutex
	menuItems map[string]models.MenuItem
	orders    map[string]models.Order
	users     map[string]models.User
	// insertion sequence breaks CreatedAt ties so listings stay stable
	seq map[string]int
	n   int
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		menuItems: make(map[string]models.MenuItem),
		orders:    make(map[string]models.Order),
		users:     make(map[string]models.User),
		seq:       make(map[string]int),
	}
}

func (s *InMemoryStore) next(id string) {
	s.n++
	s.seq[id] = s.n
}

func (s *InMemoryStore) ListMenuItems(_ context.Context, by MenuSort) ([]models.MenuItem, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	items := make([]models.MenuItem, 0, len(s.menuItems))
	for _, item := range s.menuItems {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		if by == SortByName {
			a, b := strings.ToLower(items[i].Name), strings.ToLower(items[j].Name)
			if a != b {
				return a < b
			}
			return s.seq[items[i].ID] < s.seq[items[j].ID]
		}
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return s.seq[items[i].ID] > s.seq[items[j].ID]
	})
	return items, nil
}

func (s *InMemoryStore) GetMenuItem(_ context.Context, id string) (*models.MenuItem, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	item, ok := s.menuItems[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &item, nil
}

func (s *InMemoryStore) CreateMenuItem(_ context.Context, item *models.MenuItem) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	stampMenuItem(item)
	if _, exists := s.menuItems[item.ID]; exists {
		return ErrDuplicate
	}
	s.menuItems[item.ID] = *item
	s.next(item.ID)
	return nil
}

func (s *InMemoryStore) UpdateMenuItem(_ context.Context, item *models.MenuItem) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.menuItems[item.ID]; !exists {
		return ErrNotFound
	}
	item.Price = models.RoundCents(item.Price)
	s.menuItems[item.ID] = *item
	return nil
}

func (s *InMemoryStore) DeleteMenuItem(_ context.Context, id string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.menuItems[id]; !exists {
		return ErrNotFound
	}
	delete(s.menuItems, id)
	return nil
}

func (s *InMemoryStore) CreateOrder(_ context.Context, order *models.Order) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, id := range productIDs(order) {
		if _, ok := s.menuItems[id]; !ok {
			return ErrUnknownProduct
		}
	}
	stampOrder(order)
	stored := *order
	stored.Items = make([]models.OrderItem, len(order.Items))
	for i, item := range order.Items {
		item.Product = nil
		stored.Items[i] = item
	}
	s.orders[order.ID] = stored
	s.next(order.ID)

	joined := s.join(stored)
	*order = joined
	return nil
}

// join attaches a copy of the current menu item to each line. Caller holds the lock.
func (s *InMemoryStore) join(order models.Order) models.Order {
	items := make([]models.OrderItem, len(order.Items))
	for i, item := range order.Items {
		if product, ok := s.menuItems[item.ProductID]; ok {
			p := product
			item.Product = &p
		}
		items[i] = item
	}
	order.Items = items
	return order
}

func (s *InMemoryStore) ListOrders(_ context.Context) ([]models.Order, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	orders := make([]models.Order, 0, len(s.orders))
	for _, order := range s.orders {
		orders = append(orders, s.join(order))
	}
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return s.seq[orders[i].ID] > s.seq[orders[j].ID]
	})
	return orders, nil
}

func (s *InMemoryStore) GetOrder(_ context.Context, id string) (*models.Order, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	joined := s.join(order)
	return &joined, nil
}

func (s *InMemoryStore) UpdateOrderStatus(_ context.Context, id string, status models.OrderStatus) (*models.Order, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	order.Status = status
	s.orders[id] = order
	joined := s.join(order)
	return &joined, nil
}

func (s *InMemoryStore) DeleteOrder(_ context.Context, id string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.orders[id]; !ok {
		return ErrNotFound
	}
	delete(s.orders, id)
	return nil
}

func (s *InMemoryStore) CreateUser(_ context.Context, user *models.User) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, existing := range s.users {
		if existing.Username == user.Username {
			return ErrDuplicate
		}
	}
	stampUser(user)
	s.users[user.ID] = *user
	s.next(user.ID)
	return nil
}

func (s *InMemoryStore) GetUser(_ context.Context, id string) (*models.User, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (s *InMemoryStore) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for _, user := range s.users {
		if user.Username == username {
			u := user
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (s *InMemoryStore) ListUsers(_ context.Context) ([]models.User, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	users := make([]models.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.After(users[j].CreatedAt)
		}
		return s.seq[users[i].ID] > s.seq[users[j].ID]
	})
	return users, nil
}

func (s *InMemoryStore) DeleteUser(_ context.Context, id string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.users[id]; !ok {
		return ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *InMemoryStore) Ping(context.Context) error { return nil }

func (s *InMemoryStore) Close() error { return nil }
