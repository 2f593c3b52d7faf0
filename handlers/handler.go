package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"shop-api/batcher"
	"shop-api/cache"
	"shop-api/logger"
	middleware "shop-api/middlewares"
	"shop-api/models"
	"shop-api/pubsub"
	"shop-api/queue"

	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

var (
	ErrProductNotFound  = errors.New("Product not found")
	ErrCategoryNotFound = errors.New("Category not found")
)

// Handler holds the dependencies shared by the HTTP handlers. Events may be
// nil when Redis is not configured.
type Handler struct {
	DB     *gorm.DB
	Cache  cache.ProductCache
	Views  *batcher.ViewCache
	Auth   *middleware.Authenticator
	Tasks  *queue.TaskQueue
	Events *pubsub.PubSub
}

// Routes registers every /api route on r.
func (h *Handler) Routes(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()
	admin := func(fn http.HandlerFunc) http.Handler {
		return h.Auth.Authenticate(middleware.Authorize(models.RoleAdmin)(fn))
	}

	api.HandleFunc("/health", h.HealthHandler).Methods("GET")

	api.HandleFunc("/auth/register", h.RegisterHandler).Methods("POST")
	api.HandleFunc("/auth/login", h.LoginHandler).Methods("POST")
	api.Handle("/auth/me", h.Auth.Authenticate(http.HandlerFunc(h.MeHandler))).Methods("GET")
	api.Handle("/auth/logout", h.Auth.Authenticate(http.HandlerFunc(h.LogoutHandler))).Methods("POST")

	// categories must be registered before /products/{id}
	api.HandleFunc("/products/categories", h.ListCategoriesHandler).Methods("GET")
	api.HandleFunc("/products", h.ListProductsHandler).Methods("GET")
	api.Handle("/products", admin(h.CreateProductHandler)).Methods("POST")
	api.Handle("/products/{id}", h.Auth.OptionalUser(http.HandlerFunc(h.GetProductHandler))).Methods("GET")
	api.Handle("/products/{id}", admin(h.UpdateProductHandler)).Methods("PUT")
	api.Handle("/products/{id}", admin(h.DeleteProductHandler)).Methods("DELETE")

	api.Handle("/users", admin(h.ListUsersHandler)).Methods("GET")
	api.Handle("/users", admin(h.CreateUserHandler)).Methods("POST")
	api.Handle("/users/{id}", admin(h.GetUserHandler)).Methods("GET")
	api.Handle("/users/{id}", admin(h.PutUserHandler)).Methods("PUT")
	api.Handle("/users/{id}", admin(h.PatchUserHandler)).Methods("PATCH")
	api.Handle("/users/{id}", admin(h.DeleteUserHandler)).Methods("DELETE")
}

func pathID(r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func decodeBody(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func serverError(w http.ResponseWriter, context string, err error) {
	logger.Error.Printf("%s: %v", context, err)
	middleware.WriteError(w, http.StatusInternalServerError, "SERVER_ERROR", "Internal server error", nil)
}
