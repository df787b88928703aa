package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ersonp/spellstock-core/internal/infrastructure/config"
	embedder "github.com/ersonp/spellstock-core/internal/infrastructure/embedder/openai"
	"github.com/ersonp/spellstock-core/internal/infrastructure/relationaldb/sqlite"
	"github.com/ersonp/spellstock-core/internal/infrastructure/vectordb/qdrant"
)

// restaurantManager handles the qdrant collection of a restaurant. Every
// method is a no-op when qdrant.host is unset.
type restaurantManager struct {
	cfg *config.Config
}

func newRestaurantsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restaurants",
		Short: "Manage restaurants",
		RunE:  runRestaurantsList,
	}

	cmd.AddCommand(
		newRestaurantsListCmd(),
		newRestaurantsAddCmd(),
		newRestaurantsRemoveCmd(),
	)

	return cmd
}

func newRestaurantsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all restaurants",
		RunE:  runRestaurantsList,
	}
}

func runRestaurantsList(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	restaurants, err := config.LoadRestaurants(cwd)
	if err != nil {
		return fmt.Errorf("loading restaurants: %w", err)
	}

	if len(restaurants.Restaurants) == 0 {
		fmt.Println("No restaurants configured.")
		fmt.Println("Use 'spellstock restaurants add NAME --id N' to add one.")
		return nil
	}

	fmt.Printf("%-20s %-5s %-30s %s\n", "NAME", "ID", "COLLECTION", "DESCRIPTION")
	fmt.Printf("%-20s %-5s %-30s %s\n", "----", "--", "----------", "-----------")
	for _, name := range restaurants.Names() {
		r := restaurants.Restaurants[name]
		fmt.Printf("%-20s %-5d %-30s %s\n", name, r.ID, r.Collection, r.Description)
	}
	return nil
}

func newRestaurantsAddCmd() *cobra.Command {
	var (
		id          int
		description string
	)

	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Register a restaurant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRestaurantsAdd(cmd, args[0], id, description)
		},
	}

	cmd.Flags().IntVar(&id, "id", 0, "Numeric restaurant id used in prediction feeds (required)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Restaurant description")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func runRestaurantsAdd(cmd *cobra.Command, name string, id int, description string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	cfg, err := config.Load(cwd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	entry, err := addRestaurant(cwd, name, id, description)
	if err != nil {
		return err
	}

	mgr := &restaurantManager{cfg: cfg}
	created, err := mgr.createCollection(cmd.Context(), entry.Collection)
	if err != nil {
		return fmt.Errorf("creating qdrant collection: %w", err)
	}

	fmt.Printf("Added restaurant %q (id %d)\n", name, entry.ID)
	if created {
		fmt.Printf("Created Qdrant collection: %s\n", entry.Collection)
	}
	return nil
}

func newRestaurantsRemoveCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "remove NAME",
		Short: "Remove a restaurant and its data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRestaurantsRemove(cmd, args[0], force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Remove even if the restaurant has actions")

	return cmd
}

func runRestaurantsRemove(cmd *cobra.Command, name string, force bool) error {
	ctx := cmd.Context()

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	cfg, err := config.Load(cwd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	restaurants, err := config.LoadRestaurants(cwd)
	if err != nil {
		return fmt.Errorf("loading restaurants: %w", err)
	}
	entry, err := restaurants.Get(name)
	if err != nil {
		return err
	}

	if !force {
		count, err := countActions(ctx, config.SQLitePathForRestaurant(cwd, name))
		if err == nil && count > 0 {
			return fmt.Errorf("restaurant %q has %d actions, use --force to remove", name, count)
		}
	}

	mgr := &restaurantManager{cfg: cfg}
	if err := mgr.deleteCollection(ctx, entry.Collection); err != nil {
		fmt.Printf("Warning: could not delete collection %q: %v\n", entry.Collection, err)
	}

	if err := removeRestaurant(cwd, name); err != nil {
		return err
	}

	fmt.Printf("Removed restaurant %q\n", name)
	return nil
}

// addRestaurant registers a restaurant in the registry file.
func addRestaurant(basePath, name string, id int, description string) (*config.RestaurantEntry, error) {
	restaurants, err := config.LoadRestaurants(basePath)
	if err != nil {
		return nil, fmt.Errorf("loading restaurants: %w", err)
	}
	if restaurants.Exists(name) {
		return nil, fmt.Errorf("restaurant %q already exists", name)
	}

	if err := restaurants.Add(name, config.RestaurantEntry{ID: id, Description: description}); err != nil {
		return nil, err
	}
	if err := restaurants.Save(basePath); err != nil {
		return nil, err
	}
	return restaurants.Get(name)
}

// removeRestaurant drops a restaurant from the registry and deletes its
// data directory.
func removeRestaurant(basePath, name string) error {
	restaurants, err := config.LoadRestaurants(basePath)
	if err != nil {
		return fmt.Errorf("loading restaurants: %w", err)
	}
	if !restaurants.Exists(name) {
		return fmt.Errorf("restaurant %q not found", name)
	}

	restaurants.Remove(name)
	if err := restaurants.Save(basePath); err != nil {
		return err
	}
	if err := os.RemoveAll(config.RestaurantDir(basePath, name)); err != nil {
		return fmt.Errorf("removing restaurant data: %w", err)
	}
	return nil
}

func countActions(ctx context.Context, path string) (int, error) {
	if _, err := os.Stat(path); err != nil {
		return 0, err
	}
	repo, err := sqlite.NewRepository(config.SQLiteConfig{Path: path})
	if err != nil {
		return 0, err
	}
	defer repo.Close()

	actions, err := repo.ListActions(ctx)
	if err != nil {
		return 0, err
	}
	return len(actions), nil
}

func (m *restaurantManager) repository(collection string) (*qdrant.Repository, error) {
	qdrantCfg := m.cfg.Qdrant
	qdrantCfg.Collection = collection
	return qdrant.NewRepository(qdrantCfg)
}

func (m *restaurantManager) createCollection(ctx context.Context, collection string) (bool, error) {
	if m.cfg.Qdrant.Host == "" {
		return false, nil
	}
	emb, err := embedder.NewEmbedder(m.cfg.Embedder)
	if err != nil {
		return false, fmt.Errorf("creating embedder: %w", err)
	}

	repo, err := m.repository(collection)
	if err != nil {
		return false, err
	}
	defer repo.Close()

	if err := repo.EnsureCollection(ctx, emb.VectorSize()); err != nil {
		return false, err
	}
	return true, nil
}

func (m *restaurantManager) deleteCollection(ctx context.Context, collection string) error {
	if m.cfg.Qdrant.Host == "" {
		return nil
	}
	repo, err := m.repository(collection)
	if err != nil {
		return err
	}
	defer repo.Close()

	return repo.DeleteCollection(ctx)
}
