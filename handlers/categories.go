package handlers

import (
	"net/http"

	middleware "shop-api/middlewares"
	"shop-api/models"
)

// ListCategoriesHandler lists active categories, or inactive ones with
// ?is_active=false, ordered for display.
func (h *Handler) ListCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	active := r.URL.Query().Get("is_active") != "false"

	categories := []models.ProductCategory{}
	err := h.DB.WithContext(r.Context()).
		Where("is_active = ?", active).
		Order("display_order asc").
		Find(&categories).Error
	if err != nil {
		serverError(w, "list categories", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, categories)
}
