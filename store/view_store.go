package store

import (
	"context"
	"fmt"
	"time"

	"shop-api/batcher"
	"shop-api/models"

	"gorm.io/gorm"
)

// ViewStore persists product views recorded by the view buffer.
type ViewStore struct {
	db *gorm.DB
}

func NewViewStore(db *gorm.DB) *ViewStore {
	return &ViewStore{db: db}
}

// BatchRecordViews inserts one product_views row per event and bumps each
// product's view_count, all in a single transaction.
func (s *ViewStore) BatchRecordViews(ctx context.Context, events []batcher.ViewEvent) error {
	if len(events) == 0 {
		return nil
	}

	rows := make([]models.ProductView, 0, len(events))
	for _, e := range events {
		rows = append(rows, models.ProductView{
			ProductID: uint(e.ProductID),
			UserID:    e.UserID,
			IPAddress: e.IPAddress,
			ViewedAt:  e.ViewedAt,
		})
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.CreateInBatches(rows, 200).Error; err != nil {
			return fmt.Errorf("insert product views: %w", err)
		}
		for productID, count := range batcher.Aggregate(events) {
			err := tx.Model(&models.Product{}).
				Where("id = ?", productID).
				UpdateColumn("view_count", gorm.Expr("view_count + ?", count)).Error
			if err != nil {
				return fmt.Errorf("bump view count for product %d: %w", productID, err)
			}
		}
		return nil
	})
}

// PruneViews deletes views recorded before the cutoff and returns how many
// rows were removed.
func (s *ViewStore) PruneViews(ctx context.Context, before time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("viewed_at < ?", before).Delete(&models.ProductView{})
	if result.Error != nil {
		return 0, fmt.Errorf("prune product views: %w", result.Error)
	}
	return result.RowsAffected, nil
}
