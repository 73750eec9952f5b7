// Package seed bootstraps a fresh store from a YAML file: the first administrator and a
// starting menu. Entries that already exist are left alone, so it is safe to run on every start.
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"go_trial/ordertaking/auth"
	"go_trial/ordertaking/logger"
	"go_trial/ordertaking/models"
	"go_trial/ordertaking/store"
)

type File struct {
	Admin *Admin      `yaml:"admin"`
	Menu  []MenuEntry `yaml:"menu"`
}

type Admin struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

type MenuEntry struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Price       float64 `yaml:"price"`
	Available   *bool   `yaml:"available"`
}

// Result counts what Apply created.
type Result struct {
	Users     int
	MenuItems int
}

func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing seed YAML: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) validate() error {
	if f.Admin != nil {
		f.Admin.Username = strings.TrimSpace(f.Admin.Username)
		if f.Admin.Username == "" {
			return errors.New("seed: admin username is required")
		}
		if len(f.Admin.Password) < models.MinPasswordLength {
			return fmt.Errorf("seed: admin password must be at least %d characters", models.MinPasswordLength)
		}
	}
	for i := range f.Menu {
		entry := &f.Menu[i]
		entry.Name = strings.TrimSpace(entry.Name)
		if entry.Name == "" {
			return fmt.Errorf("seed: menu entry %d has no name", i)
		}
		if entry.Price < 0 {
			return fmt.Errorf("seed: menu entry %q has a negative price", entry.Name)
		}
	}
	return nil
}

// Apply creates the admin account and any menu item whose name is not on the menu yet.
func Apply(ctx context.Context, st store.Store, f *File, log *logger.Logger) (Result, error) {
	var res Result
	if f.Admin != nil {
		created, err := ensureAdmin(ctx, st, f.Admin)
		if err != nil {
			return res, err
		}
		if created {
			res.Users++
			log.LogSecurity("SEED", fmt.Sprintf("created administrator %s", f.Admin.Username))
		}
	}

	if len(f.Menu) == 0 {
		return res, nil
	}
	existing, err := st.ListMenuItems(ctx, store.SortByName)
	if err != nil {
		return res, fmt.Errorf("list menu: %w", err)
	}
	names := make(map[string]struct{}, len(existing))
	for _, item := range existing {
		names[strings.ToLower(item.Name)] = struct{}{}
	}

	for _, entry := range f.Menu {
		key := strings.ToLower(entry.Name)
		if _, ok := names[key]; ok {
			continue
		}
		item := &models.MenuItem{
			Name:      entry.Name,
			Price:     entry.Price,
			Available: entry.Available == nil || *entry.Available,
		}
		if d := strings.TrimSpace(entry.Description); d != "" {
			item.Description = &d
		}
		if err := st.CreateMenuItem(ctx, item); err != nil {
			return res, fmt.Errorf("create menu item %q: %w", entry.Name, err)
		}
		names[key] = struct{}{}
		res.MenuItems++
	}
	log.LogDatabase("SEED", "menu_items", fmt.Sprintf("%d item(s) added", res.MenuItems))
	return res, nil
}

func ensureAdmin(ctx context.Context, st store.Store, a *Admin) (bool, error) {
	_, err := st.GetUserByUsername(ctx, a.Username)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, fmt.Errorf("look up %s: %w", a.Username, err)
	}

	hash, err := auth.HashPassword(a.Password)
	if err != nil {
		return false, err
	}
	user := &models.User{Username: a.Username, PasswordHash: hash, Role: models.RoleAdmin}
	if name := strings.TrimSpace(a.Name); name != "" {
		user.Name = &name
	}
	if err := st.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return false, nil
		}
		return false, fmt.Errorf("create %s: %w", a.Username, err)
	}
	return true, nil
}
