// Package main seeds an admin account (local auth only) and a few demo
// products into the configured document store.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/oksasatya/storefront-admin/config"
	"github.com/oksasatya/storefront-admin/internal/application"
	"github.com/oksasatya/storefront-admin/internal/container"
	"github.com/oksasatya/storefront-admin/internal/domain/entity"
	repo "github.com/oksasatya/storefront-admin/internal/domain/repository"
	pginfra "github.com/oksasatya/storefront-admin/internal/infrastructure/postgres"
	"github.com/oksasatya/storefront-admin/pkg/helpers"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	var (
		email    string
		password string
		name     string
		products bool
	)
	flag.StringVar(&email, "email", "admin@example.com", "admin email (local auth only)")
	flag.StringVar(&password, "password", "password123", "admin password (local auth only)")
	flag.StringVar(&name, "name", "Store Admin", "admin display name")
	flag.BoolVar(&products, "products", true, "seed demo products")
	flag.Parse()

	logger := helpers.NewLogger(cfg.AppName+"-seed", cfg.Env, cfg.LogLevel)
	ctx := context.Background()

	if cfg.NeedsPostgres() {
		if err := pginfra.Migrate(cfg.PostgresDSN(), cfg.MigrationsDir, logger); err != nil {
			log.Fatalf("migration failed: %v", err)
		}
	}
	c, err := container.Build(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to initialise backends: %v", err)
	}
	defer c.Close()

	if c.Users != nil {
		u, err := seedAdmin(ctx, c.Users, email, password, name)
		if err != nil {
			log.Fatalf("failed to seed admin: %v", err)
		}
		fmt.Printf("seeded admin: id=%s email=%s password=%s\n", u.ID, u.Email, password)
	} else {
		fmt.Println("AUTH_BACKEND is not local; create the admin account in Firebase Authentication")
	}

	if products {
		ids, err := seedProducts(ctx, c.Products, demoProducts())
		if err != nil {
			log.Fatalf("failed to seed products: %v", err)
		}
		fmt.Printf("seeded %d products into %s\n", len(ids), application.ProductCollectionPath(cfg.AppID))
	}
}

func seedAdmin(ctx context.Context, users repo.UserRepository, email, password, name string) (*entity.User, error) {
	hash, err := helpers.HashPassword(password)
	if err != nil {
		return nil, err
	}
	u := &entity.User{Email: email, Password: hash, Name: name}
	if err := users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func seedProducts(ctx context.Context, w application.ProductWriter, products []entity.Product) ([]string, error) {
	ids := make([]string, 0, len(products))
	for _, p := range products {
		id, err := w.Create(ctx, p)
		if err != nil {
			return ids, fmt.Errorf("%s: %w", p.Name, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func demoProducts() []entity.Product {
	return []entity.Product{
		{Name: "Paracetamol 500mg", Category: entity.CategoryAllopathic, Price: "₹30.00", Description: "Fever and pain relief, strip of 10 tablets."},
		{Name: "Ashwagandha Churna", Category: entity.CategoryAyurvedic, Price: "₹180.00", Description: "Traditional herbal powder, 100 g."},
		{Name: "Arnica Montana 30C", Category: entity.CategoryHomeopathic, Price: "₹95.00", Description: "Homeopathic dilution, 30 ml."},
		{Name: "Cough Syrup", Category: entity.CategorySyrups, Price: "₹110.00", Description: "Relief from dry cough, 100 ml."},
		{Name: "Whey Protein 1kg", Category: entity.CategoryProteinPowder, Price: "₹2,499.00", Description: "Chocolate flavour."},
		{Name: "Baby Lotion", Category: entity.CategoryBabyCare, Price: "₹220.00", Description: "Gentle moisturiser, 200 ml."},
	}
}
