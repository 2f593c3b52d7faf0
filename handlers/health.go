package handlers

import (
	"net/http"

	middleware "shop-api/middlewares"
)

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	sqlDB, err := h.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(r.Context())
	}
	if err != nil {
		middleware.WriteJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"status":  "unhealthy",
			"message": "Database connectivity failed",
			"error":   err.Error(),
		})
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":           "healthy",
		"message":          "Server and database are up and running",
		"view_buffer_size": h.Views.BufferSize(),
	})
}
