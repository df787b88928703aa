package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// RestaurantsConfig holds the restaurant registry (read/write).
type RestaurantsConfig struct {
	Restaurants map[string]RestaurantEntry `yaml:"restaurants,omitempty"`
}

// RestaurantEntry holds configuration for one restaurant.
type RestaurantEntry struct {
	ID          int    `yaml:"id"`
	Collection  string `yaml:"collection"`
	Description string `yaml:"description,omitempty"`
}

// LoadRestaurants loads the registry. A missing file yields an empty registry.
func LoadRestaurants(basePath string) (*RestaurantsConfig, error) {
	data, err := os.ReadFile(RestaurantsFilePath(basePath))
	if os.IsNotExist(err) {
		return &RestaurantsConfig{
			Restaurants: make(map[string]RestaurantEntry),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading restaurants file: %w", err)
	}

	var cfg RestaurantsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing restaurants file: %w", err)
	}

	if cfg.Restaurants == nil {
		cfg.Restaurants = make(map[string]RestaurantEntry)
	}

	return &cfg, nil
}

// Save writes the registry to the restaurants file.
func (r *RestaurantsConfig) Save(basePath string) error {
	if err := os.MkdirAll(ConfigDir(basePath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshaling restaurants config: %w", err)
	}

	if err := os.WriteFile(RestaurantsFilePath(basePath), data, 0600); err != nil {
		return fmt.Errorf("writing restaurants file: %w", err)
	}

	return nil
}

// Add registers a restaurant. Restaurant ids must be positive and unique.
func (r *RestaurantsConfig) Add(name string, entry RestaurantEntry) error {
	if entry.ID <= 0 {
		return fmt.Errorf("restaurant id must be positive, got %d", entry.ID)
	}
	for other, e := range r.Restaurants {
		if other != name && e.ID == entry.ID {
			return fmt.Errorf("restaurant id %d already used by %q", entry.ID, other)
		}
	}
	if r.Restaurants == nil {
		r.Restaurants = make(map[string]RestaurantEntry)
	}
	if entry.Collection == "" {
		entry.Collection = GenerateCollectionName(name)
	}
	r.Restaurants[name] = entry
	return nil
}

// Remove removes a restaurant from the registry.
func (r *RestaurantsConfig) Remove(name string) {
	delete(r.Restaurants, name)
}

// Get returns the entry for a restaurant.
func (r *RestaurantsConfig) Get(name string) (*RestaurantEntry, error) {
	if len(r.Restaurants) == 0 {
		return nil, errors.New("no restaurants configured (run 'spellstock restaurants add' first)")
	}

	entry, ok := r.Restaurants[name]
	if !ok {
		names := r.Names()
		if len(names) > 5 {
			names = append(names[:5], "...")
		}
		return nil, fmt.Errorf("restaurant %q not found (available: %s)", name, strings.Join(names, ", "))
	}

	return &entry, nil
}

// Exists checks if a restaurant is registered.
func (r *RestaurantsConfig) Exists(name string) bool {
	_, ok := r.Restaurants[name]
	return ok
}

// Names returns the registered names in sorted order.
func (r *RestaurantsConfig) Names() []string {
	names := make([]string, 0, len(r.Restaurants))
	for name := range r.Restaurants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
