package handlers

import (
	"context"
	"errors"
	"math"
	"net/http"

	"shop-api/cache"
	"shop-api/logger"
	middleware "shop-api/middlewares"
	"shop-api/models"
	"shop-api/utils"

	"gorm.io/gorm"
)

type pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

// ListProductsHandler serves the filtered, sorted and paged product list.
func (h *Handler) ListProductsHandler(w http.ResponseWriter, r *http.Request) {
	q, errs := utils.ParseProductQuery(r.URL.Query())
	if len(errs) > 0 {
		middleware.WriteError(w, http.StatusBadRequest, "INVALID_QUERY_PARAMETER", "Invalid query parameters", errs)
		return
	}

	filtered := h.DB.WithContext(r.Context()).Model(&models.Product{}).Scopes(productFilters(q))

	var total int64
	if err := filtered.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		serverError(w, "count products", err)
		return
	}

	products := []models.Product{}
	err := filtered.Session(&gorm.Session{}).
		Order(q.SortColumn() + " " + q.Order).
		Order("id asc").
		Limit(q.Limit).
		Offset(q.Offset()).
		Find(&products).Error
	if err != nil {
		serverError(w, "list products", err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"data": products,
		"pagination": pagination{
			Page:  q.Page,
			Limit: q.Limit,
			Total: total,
			Pages: int(math.Ceil(float64(total) / float64(q.Limit))),
		},
	})
}

func productFilters(q utils.ProductQuery) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if q.CategoryID != nil {
			db = db.Where("category_id = ?", *q.CategoryID)
		}
		if q.MinPrice != nil {
			db = db.Where("price >= ?", *q.MinPrice)
		}
		if q.MaxPrice != nil {
			db = db.Where("price <= ?", *q.MaxPrice)
		}
		if q.IsFeatured != nil {
			db = db.Where("is_featured = ?", *q.IsFeatured)
		}
		if q.Search != "" {
			like := "%" + q.Search + "%"
			db = db.Where("name LIKE ? OR description LIKE ?", like, like)
		}
		return db
	}
}

// GetProductHandler serves one product and records the view.
func (h *Handler) GetProductHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid product id", nil)
		return
	}

	// 1. Check Cache First
	key := cache.ProductKey(id)
	detail, err := h.Cache.Get(key)
	if err == nil {
		w.Header().Set("X-Cache", "HIT")
	} else {
		detail, err = h.loadProductDetail(r.Context(), id)
		if errors.Is(err, ErrProductNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
			return
		}
		if err != nil {
			serverError(w, "load product", err)
			return
		}
		if err := h.Cache.Set(key, detail); err != nil {
			logger.Warn.Printf("cache product %d: %v", id, err)
		}
		w.Header().Set("X-Cache", "MISS")
	}

	var userID *uint
	if user := middleware.CurrentUser(r); user != nil {
		uid := user.ID
		userID = &uid
	}
	ip := middleware.ClientIP(r)
	h.Views.RecordView(int(id), userID, &ip)

	middleware.WriteJSON(w, http.StatusOK, detail)
}

func (h *Handler) loadProductDetail(ctx context.Context, id uint) (models.ProductDetail, error) {
	db := h.DB.WithContext(ctx)
	detail := models.ProductDetail{SimilarProducts: []models.ProductSummary{}}

	err := db.First(&detail.Product, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return detail, ErrProductNotFound
	}
	if err != nil {
		return detail, err
	}

	var category models.ProductCategory
	err = db.Select("name").First(&category, detail.CategoryID).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return detail, err
	}
	detail.CategoryName = category.Name

	// Related products from the same category (max 3)
	err = db.Model(&models.Product{}).
		Select("id, name, price, image_url, rating").
		Where("category_id = ? AND id <> ?", detail.CategoryID, id).
		Order("id asc").
		Limit(3).
		Scan(&detail.SimilarProducts).Error
	return detail, err
}

type productRequest struct {
	CategoryID  *uint    `json:"category_id"`
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	Stock       *int     `json:"stock"`
	SKU         *string  `json:"sku"`
	ImageURL    *string  `json:"image_url"`
	IsFeatured  *bool    `json:"is_featured"`
}

func (p productRequest) validate() (string, bool) {
	if p.Price != nil && (*p.Price <= 0 || math.IsInf(*p.Price, 0) || math.IsNaN(*p.Price)) {
		return "Price must be a positive number", false
	}
	if p.Stock != nil && *p.Stock < 0 {
		return "Stock must be non-negative integer", false
	}
	return "", true
}

func (h *Handler) categoryExists(ctx context.Context, id uint) (bool, error) {
	var n int64
	err := h.DB.WithContext(ctx).Model(&models.ProductCategory{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

// CreateProductHandler creates a product in an existing category.
func (h *Handler) CreateProductHandler(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeBody(r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request payload", nil)
		return
	}

	missing := map[string]string{}
	if req.CategoryID == nil {
		missing["category_id"] = "required"
	}
	if req.Name == nil || *req.Name == "" {
		missing["name"] = "required"
	}
	if req.Price == nil {
		missing["price"] = "required"
	}
	if req.Stock == nil {
		missing["stock"] = "required"
	}
	if len(missing) > 0 {
		middleware.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Missing required fields", missing)
		return
	}
	if msg, ok := req.validate(); !ok {
		middleware.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", msg, nil)
		return
	}

	exists, err := h.categoryExists(r.Context(), *req.CategoryID)
	if err != nil {
		serverError(w, "check category", err)
		return
	}
	if !exists {
		middleware.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", ErrCategoryNotFound.Error(), nil)
		return
	}

	product := models.Product{
		CategoryID: *req.CategoryID,
		Name:       *req.Name,
		Price:      *req.Price,
		Stock:      *req.Stock,
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.ImageURL != nil {
		product.ImageURL = *req.ImageURL
	}
	if req.IsFeatured != nil {
		product.IsFeatured = *req.IsFeatured
	}
	if req.SKU != nil && *req.SKU != "" {
		product.SKU = *req.SKU
	} else {
		product.SKU = utils.GenerateSKU()
	}

	var taken int64
	if err := h.DB.WithContext(r.Context()).Model(&models.Product{}).Where("sku = ?", product.SKU).Count(&taken).Error; err != nil {
		serverError(w, "check sku", err)
		return
	}
	if taken > 0 {
		middleware.WriteError(w, http.StatusConflict, "SKU_EXISTS", "SKU already exists", nil)
		return
	}

	if err := h.DB.WithContext(r.Context()).Create(&product).Error; err != nil {
		serverError(w, "create product", err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, product)
}

// UpdateProductHandler applies the fields present in the body.
func (h *Handler) UpdateProductHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid product id", nil)
		return
	}

	var req productRequest
	if err := decodeBody(r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request payload", nil)
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Price != nil {
		updates["price"] = *req.Price
	}
	if req.Stock != nil {
		updates["stock"] = *req.Stock
	}
	if req.ImageURL != nil {
		updates["image_url"] = *req.ImageURL
	}
	if req.IsFeatured != nil {
		updates["is_featured"] = *req.IsFeatured
	}
	if req.CategoryID != nil {
		updates["category_id"] = *req.CategoryID
	}
	if len(updates) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "No fields to update", nil)
		return
	}
	if msg, ok := req.validate(); !ok {
		middleware.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", msg, nil)
		return
	}

	var product models.Product
	err := h.DB.WithContext(r.Context()).First(&product, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "NOT_FOUND", ErrProductNotFound.Error(), nil)
		return
	}
	if err != nil {
		serverError(w, "load product", err)
		return
	}

	if req.CategoryID != nil && *req.CategoryID != product.CategoryID {
		exists, err := h.categoryExists(r.Context(), *req.CategoryID)
		if err != nil {
			serverError(w, "check category", err)
			return
		}
		if !exists {
			middleware.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", ErrCategoryNotFound.Error(), nil)
			return
		}
	}

	if err := h.DB.WithContext(r.Context()).Model(&product).Updates(updates).Error; err != nil {
		serverError(w, "update product", err)
		return
	}
	h.invalidateProduct(id)

	if err := h.DB.WithContext(r.Context()).First(&product, id).Error; err != nil {
		serverError(w, "reload product", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, product)
}

// DeleteProductHandler removes a product.
func (h *Handler) DeleteProductHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid product id", nil)
		return
	}

	result := h.DB.WithContext(r.Context()).Delete(&models.Product{}, id)
	if result.Error != nil {
		serverError(w, "delete product", result.Error)
		return
	}
	if result.RowsAffected == 0 {
		middleware.WriteError(w, http.StatusNotFound, "NOT_FOUND", ErrProductNotFound.Error(), nil)
		return
	}
	h.invalidateProduct(id)
	w.WriteHeader(http.StatusNoContent)
}

// invalidateProduct drops the local cache entry and tells other instances
// to do the same.
func (h *Handler) invalidateProduct(id uint) {
	if err := h.Cache.Delete(cache.ProductKey(id)); err != nil {
		logger.Warn.Printf("evict product %d: %v", id, err)
	}
	if h.Events == nil {
		return
	}
	if err := h.Events.PublishProductChanged(id); err != nil {
		logger.Warn.Printf("publish product_changed %d: %v", id, err)
	}
}
