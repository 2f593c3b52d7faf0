package handlers

import (
	"errors"
	"net/http"
	"strings"

	middleware "shop-api/middlewares"
	"shop-api/models"

	"gorm.io/gorm"
)

func writeData(w http.ResponseWriter, status int, data interface{}) {
	middleware.WriteJSON(w, status, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

func userNotFound(w http.ResponseWriter) {
	middleware.WriteError(w, http.StatusNotFound, "NOT_FOUND", "User not found", nil)
}

func (h *Handler) emailTaken(r *http.Request, email string, exceptID uint) (bool, error) {
	var n int64
	err := h.DB.WithContext(r.Context()).Model(&models.User{}).
		Where("email = ? AND id <> ?", email, exceptID).
		Count(&n).Error
	return n > 0, err
}

func (h *Handler) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	users := []models.User{}
	if err := h.DB.WithContext(r.Context()).Order("id asc").Find(&users).Error; err != nil {
		serverError(w, "list users", err)
		return
	}
	writeData(w, http.StatusOK, users)
}

func (h *Handler) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		userNotFound(w)
		return
	}
	var user models.User
	err := h.DB.WithContext(r.Context()).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		userNotFound(w)
		return
	}
	if err != nil {
		serverError(w, "get user", err)
		return
	}
	writeData(w, http.StatusOK, user)
}

type userRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (h *Handler) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeBody(r, &req); err != nil || req.Name == "" || req.Email == "" {
		middleware.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "name and email are required", nil)
		return
	}
	taken, err := h.emailTaken(r, req.Email, 0)
	if err != nil {
		serverError(w, "check email", err)
		return
	}
	if taken {
		middleware.WriteError(w, http.StatusConflict, "EMAIL_EXISTS", "Email already exists", nil)
		return
	}

	user := models.User{Name: req.Name, Email: req.Email, Role: models.RoleUser, IsActive: true}
	if err := h.DB.WithContext(r.Context()).Create(&user).Error; err != nil {
		serverError(w, "create user", err)
		return
	}
	writeData(w, http.StatusCreated, user)
}

func (h *Handler) PutUserHandler(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeBody(r, &req); err != nil || req.Name == "" || req.Email == "" {
		middleware.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "name and email are required", nil)
		return
	}
	h.applyUserUpdates(w, r, map[string]interface{}{"name": req.Name, "email": req.Email})
}

type userPatch struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Role     *string `json:"role"`
	IsActive *bool   `json:"is_active"`
}

func (h *Handler) PatchUserHandler(w http.ResponseWriter, r *http.Request) {
	var req userPatch
	if err := decodeBody(r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request payload", nil)
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if req.Role != nil {
		role := strings.ToLower(*req.Role)
		if role != models.RoleUser && role != models.RoleAdmin {
			middleware.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "role must be user or admin", nil)
			return
		}
		updates["role"] = role
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "No fields to update", nil)
		return
	}
	h.applyUserUpdates(w, r, updates)
}

func (h *Handler) applyUserUpdates(w http.ResponseWriter, r *http.Request, updates map[string]interface{}) {
	id, ok := pathID(r)
	if !ok {
		userNotFound(w)
		return
	}

	if email, ok := updates["email"].(string); ok {
		taken, err := h.emailTaken(r, email, id)
		if err != nil {
			serverError(w, "check email", err)
			return
		}
		if taken {
			middleware.WriteError(w, http.StatusConflict, "EMAIL_EXISTS", "Email already exists", nil)
			return
		}
	}

	result := h.DB.WithContext(r.Context()).Model(&models.User{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		serverError(w, "update user", result.Error)
		return
	}
	if result.RowsAffected == 0 {
		userNotFound(w)
		return
	}

	var user models.User
	if err := h.DB.WithContext(r.Context()).First(&user, id).Error; err != nil {
		serverError(w, "reload user", err)
		return
	}
	writeData(w, http.StatusOK, user)
}

func (h *Handler) DeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		userNotFound(w)
		return
	}
	result := h.DB.WithContext(r.Context()).Delete(&models.User{}, id)
	if result.Error != nil {
		serverError(w, "delete user", result.Error)
		return
	}
	if result.RowsAffected == 0 {
		userNotFound(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
