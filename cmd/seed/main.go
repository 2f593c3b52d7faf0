package main

import (
	"fmt"
	"log"

	"shop-api/cache"
	"shop-api/config"
	"shop-api/models"
	"shop-api/pubsub"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type seedConfig struct {
	DBPath        string `env:"DB_PATH" envDefault:"shop.db"`
	AdminEmail    string `env:"SEED_ADMIN_EMAIL" envDefault:"admin@example.com"`
	AdminPassword string `env:"SEED_ADMIN_PASSWORD" envDefault:"changeme123"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
}

var demoCatalog = []struct {
	category models.ProductCategory
	products []models.Product
}{
	{
		category: models.ProductCategory{Name: "Electronics", Description: "Phones, audio and gadgets", DisplayOrder: 1, IsActive: true},
		products: []models.Product{
			{Name: "Wireless Headphones", Price: 79.99, Stock: 40, SKU: "SKU-DEMO0001", IsFeatured: true, Rating: 4.5},
			{Name: "Smartwatch", Price: 149.00, Stock: 25, SKU: "SKU-DEMO0002", Rating: 4.1},
			{Name: "Bluetooth Speaker", Price: 39.50, Stock: 60, SKU: "SKU-DEMO0003", Rating: 4.3},
		},
	},
	{
		category: models.ProductCategory{Name: "Books", Description: "Fiction and non-fiction", DisplayOrder: 2, IsActive: true},
		products: []models.Product{
			{Name: "The Go Programming Language", Price: 34.99, Stock: 15, SKU: "SKU-DEMO0004", IsFeatured: true, Rating: 4.8},
			{Name: "Designing Data-Intensive Applications", Price: 42.00, Stock: 10, SKU: "SKU-DEMO0005", Rating: 4.9},
		},
	},
	{
		category: models.ProductCategory{Name: "Home", Description: "Kitchen and living", DisplayOrder: 3, IsActive: true},
		products: []models.Product{
			{Name: "French Press", Price: 24.00, Stock: 30, SKU: "SKU-DEMO0006", Rating: 4.2},
			{Name: "Cast Iron Skillet", Price: 29.95, Stock: 20, SKU: "SKU-DEMO0007", IsFeatured: true, Rating: 4.7},
		},
	},
}

func main() {
	_ = godotenv.Load()

	cfg := seedConfig{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("Failed to parse config: %v", err)
	}

	db, err := config.OpenDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize the database: %v", err)
	}

	ids, err := seed(db, cfg.AdminEmail, cfg.AdminPassword)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Printf("Seeded %d products and admin %s", len(ids), cfg.AdminEmail)

	if cfg.RedisAddr == "" {
		return
	}
	// running servers may have cached the old rows
	redisStore, err := cache.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("Failed to initialize Redis cache: %v", err)
	}
	defer redisStore.Close()

	ps := pubsub.NewPubSub(redisStore)
	for _, id := range ids {
		if err := ps.PublishProductChanged(id); err != nil {
			log.Printf("Failed to publish product_changed for %d: %v", id, err)
		}
	}
	log.Printf("Published product_changed for %d products", len(ids))
}

// seed inserts the demo catalog and an admin account. Rows that already
// exist (by category name, SKU or email) are left alone, so it can run
// repeatedly. It returns the ids of the seeded products.
func seed(db *gorm.DB, adminEmail, adminPassword string) ([]uint, error) {
	var ids []uint
	err := db.Transaction(func(tx *gorm.DB) error {
		for _, entry := range demoCatalog {
			category := entry.category
			if err := tx.Where(models.ProductCategory{Name: category.Name}).FirstOrCreate(&category).Error; err != nil {
				return fmt.Errorf("category %s: %w", category.Name, err)
			}
			for _, p := range entry.products {
				product := p
				product.CategoryID = category.ID
				if err := tx.Where(models.Product{SKU: product.SKU}).FirstOrCreate(&product).Error; err != nil {
					return fmt.Errorf("product %s: %w", product.SKU, err)
				}
				ids = append(ids, product.ID)
			}
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		admin := models.User{Name: "Admin", Email: adminEmail, Password: string(hash), Role: models.RoleAdmin, IsActive: true}
		return tx.Where(models.User{Email: adminEmail}).FirstOrCreate(&admin).Error
	})
	return ids, err
}
