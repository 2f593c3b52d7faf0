package handlers

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"shop-api/logger"
	middleware "shop-api/middlewares"
	"shop-api/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const minPasswordLength = 8

type credentials struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeBody(r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request payload", nil)
		return
	}
	req.Email = strings.TrimSpace(req.Email)

	if req.Name == "" || req.Email == "" || req.Password == "" {
		middleware.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Name, email, and password are required", nil)
		return
	}
	if len(req.Password) < minPasswordLength {
		middleware.WriteError(w, http.StatusBadRequest, "WEAK_PASSWORD", "Password must be at least 8 characters long", nil)
		return
	}
	if !emailPattern.MatchString(req.Email) {
		middleware.WriteError(w, http.StatusBadRequest, "INVALID_EMAIL", "Invalid email format", nil)
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

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		serverError(w, "hash password", err)
		return
	}
	user := models.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: string(hash),
		Role:     models.RoleUser,
		IsActive: true,
	}
	if err := h.DB.WithContext(r.Context()).Create(&user).Error; err != nil {
		serverError(w, "create user", err)
		return
	}

	token, err := h.Auth.IssueToken(&user)
	if err != nil {
		serverError(w, "issue token", err)
		return
	}
	writeData(w, http.StatusCreated, map[string]interface{}{"user": user, "token": token})
}

func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeBody(r, &req); err != nil || req.Email == "" || req.Password == "" {
		middleware.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Email and password are required", nil)
		return
	}

	var user models.User
	err := h.DB.WithContext(r.Context()).Where("email = ?", strings.TrimSpace(req.Email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		middleware.WriteError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
		return
	}
	if err != nil {
		serverError(w, "find user", err)
		return
	}
	if user.Password == "" || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		middleware.WriteError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
		return
	}
	if !user.IsActive {
		middleware.WriteError(w, http.StatusForbidden, "ACCOUNT_DISABLED", "Account is disabled", nil)
		return
	}

	token, err := h.Auth.IssueToken(&user)
	if err != nil {
		serverError(w, "issue token", err)
		return
	}

	// last_login_at does not need to hold up the response
	userID := user.ID
	h.Tasks.Enqueue(func() {
		err := h.DB.Model(&models.User{}).Where("id = ?", userID).Update("last_login_at", time.Now()).Error
		if err != nil {
			logger.Error.Printf("set last_login_at for user %d: %v", userID, err)
		}
	})

	writeData(w, http.StatusOK, map[string]interface{}{"user": user, "token": token})
}

func (h *Handler) MeHandler(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, middleware.CurrentUser(r))
}

// LogoutHandler exists for clients; tokens are stateless and simply dropped
// by the caller.
func (h *Handler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Logged out",
	})
}
