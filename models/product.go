package models

import "time"

type ProductCategory struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string    `gorm:"size:100;not null" json:"name"`
	Description  string    `json:"description"`
	IconURL      string    `json:"icon_url"`
	DisplayOrder int       `gorm:"default:0" json:"display_order"`
	IsActive     bool      `gorm:"default:true" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

type Product struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CategoryID   uint      `gorm:"index;not null" json:"category_id"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	Description  string    `json:"description"`
	Price        float64   `gorm:"not null" json:"price"`
	Stock        int       `gorm:"not null;default:0" json:"stock"`
	ImageURL     string    `json:"image_url"`
	SKU          string    `gorm:"size:64;uniqueIndex" json:"sku"`
	IsFeatured   bool      `gorm:"default:false" json:"is_featured"`
	Rating       float64   `gorm:"default:0" json:"rating"`
	ReviewsCount int       `gorm:"default:0" json:"reviews_count"`
	ViewCount    int64     `gorm:"default:0" json:"view_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Category ProductCategory `gorm:"foreignKey:CategoryID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
}

// ProductSummary is the short form used for related products.
type ProductSummary struct {
	ID       uint    `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	ImageURL string  `json:"image_url"`
	Rating   float64 `json:"rating"`
}

// ProductDetail is a product with its category name and up to three
// products from the same category.
type ProductDetail struct {
	Product
	CategoryName    string           `json:"category_name"`
	SimilarProducts []ProductSummary `json:"similar_products"`
}

// ProductView is one persisted "user viewed product" row.
type ProductView struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	ProductID uint      `gorm:"index;not null"`
	UserID    *uint     `gorm:"index"`
	IPAddress *string   `gorm:"size:45"`
	ViewedAt  time.Time `gorm:"index;not null"`
}
