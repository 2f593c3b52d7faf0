package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"shop-api/batcher"
	"shop-api/cache"
	"shop-api/config"
	middleware "shop-api/middlewares"
	"shop-api/models"
	"shop-api/queue"
	"shop-api/store"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
)

type testServer struct {
	router *mux.Router
	h      *Handler
	views  *store.ViewStore
	admin  string
	user   string
	userID uint
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := config.OpenDB("file:" + name + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	testCache, err := cache.NewBigCacheStore()
	if err != nil {
		t.Fatalf("failed to initialize cache: %v", err)
	}
	t.Cleanup(func() { testCache.Close() })

	viewStore := store.NewViewStore(db)
	tasks := queue.New(16)
	tasks.StartWorker()
	t.Cleanup(tasks.Stop)

	h := &Handler{
		DB:    db,
		Cache: testCache,
		Views: batcher.NewViewCache(viewStore, batcher.Options{}),
		Auth:  &middleware.Authenticator{DB: db, Secret: []byte("test-secret"), TTL: time.Hour},
		Tasks: tasks,
	}
	r := mux.NewRouter()
	h.Routes(r)

	ts := &testServer{router: r, h: h, views: viewStore}
	admin := ts.createUser(t, "admin@example.com", models.RoleAdmin)
	user := ts.createUser(t, "user@example.com", models.RoleUser)
	ts.admin, _ = h.Auth.IssueToken(admin)
	ts.user, _ = h.Auth.IssueToken(user)
	ts.userID = user.ID
	return ts
}

func (ts *testServer) createUser(t *testing.T, email, role string) *models.User {
	t.Helper()
	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	user := &models.User{Name: "Test", Email: email, Password: string(hash), Role: role, IsActive: true}
	if err := ts.h.DB.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func (ts *testServer) seedCategory(t *testing.T, name string, order int, active bool) models.ProductCategory {
	t.Helper()
	category := models.ProductCategory{Name: name, DisplayOrder: order, IsActive: true}
	if err := ts.h.DB.Create(&category).Error; err != nil {
		t.Fatalf("create category: %v", err)
	}
	if !active {
		ts.h.DB.Model(&category).Update("is_active", false)
	}
	return category
}

func (ts *testServer) seedProduct(t *testing.T, categoryID uint, name string, price float64, featured bool) models.Product {
	t.Helper()
	product := models.Product{CategoryID: categoryID, Name: name, Price: price, Stock: 5, SKU: "SKU-" + name, IsFeatured: featured}
	if err := ts.h.DB.Create(&product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product
}

func (ts *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "198.51.100.7:5555"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	ts.router.ServeHTTP(resp, req)
	return resp
}

func decode(t *testing.T, resp *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(resp.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to decode response: %v (%s)", err, resp.Body.String())
	}
}

func TestHealthHandler(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(http.MethodGet, "/api/health", "", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status code 200, got %d", resp.Code)
	}
	var body map[string]interface{}
	decode(t, resp, &body)
	if body["status"] != "healthy" || body["view_buffer_size"].(float64) != 0 {
		t.Fatalf("unexpected health body: %v", body)
	}
}

func TestGetProductRecordsViewAndCaches(t *testing.T) {
	ts := newTestServer(t)
	category := ts.seedCategory(t, "Kitchen", 1, true)
	product := ts.seedProduct(t, category.ID, "kettle", 30, false)
	ts.seedProduct(t, category.ID, "toaster", 40, false)

	path := "/api/products/" + itoa(product.ID)
	resp := ts.do(http.MethodGet, path, "", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status code 200, got %d", resp.Code)
	}
	if resp.Header().Get("X-Cache") != "MISS" {
		t.Errorf("expected X-Cache MISS, got %s", resp.Header().Get("X-Cache"))
	}
	var detail models.ProductDetail
	decode(t, resp, &detail)
	if detail.Name != "kettle" || detail.CategoryName != "Kitchen" || len(detail.SimilarProducts) != 1 {
		t.Fatalf("unexpected detail: %+v", detail)
	}

	resp = ts.do(http.MethodGet, path, ts.user, nil)
	if resp.Header().Get("X-Cache") != "HIT" {
		t.Errorf("expected X-Cache HIT, got %s", resp.Header().Get("X-Cache"))
	}
	if got := ts.h.Views.BufferSize(); got != 2 {
		t.Fatalf("expected 2 buffered views, got %d", got)
	}

	ts.h.Views.Flush(context.Background())
	var views []models.ProductView
	ts.h.DB.Order("id asc").Find(&views)
	if len(views) != 2 {
		t.Fatalf("expected 2 persisted views, got %d", len(views))
	}
	if views[0].UserID != nil || views[1].UserID == nil || *views[1].UserID != ts.userID {
		t.Errorf("unexpected user ids: %v %v", views[0].UserID, views[1].UserID)
	}
	if views[0].IPAddress == nil || *views[0].IPAddress != "198.51.100.7" {
		t.Errorf("unexpected ip: %v", views[0].IPAddress)
	}
	var reloaded models.Product
	ts.h.DB.First(&reloaded, product.ID)
	if reloaded.ViewCount != 2 {
		t.Errorf("expected view_count 2, got %d", reloaded.ViewCount)
	}
}

func TestGetProductNotFound(t *testing.T) {
	ts := newTestServer(t)
	if resp := ts.do(http.MethodGet, "/api/products/999", "", nil); resp.Code != http.StatusNotFound {
		t.Fatalf("Expected status code 404, got %d", resp.Code)
	}
	if resp := ts.do(http.MethodGet, "/api/products/abc", "", nil); resp.Code != http.StatusBadRequest {
		t.Fatalf("Expected status code 400, got %d", resp.Code)
	}
	if got := ts.h.Views.BufferSize(); got != 0 {
		t.Fatalf("expected no views recorded, got %d", got)
	}
}

func TestListProductsFiltersAndPages(t *testing.T) {
	ts := newTestServer(t)
	books := ts.seedCategory(t, "Books", 1, true)
	games := ts.seedCategory(t, "Games", 2, true)
	ts.seedProduct(t, books.ID, "novel", 12, true)
	ts.seedProduct(t, books.ID, "atlas", 45, false)
	ts.seedProduct(t, books.ID, "comic", 8, false)
	ts.seedProduct(t, games.ID, "chess", 25, true)

	resp := ts.do(http.MethodGet, "/api/products?category_id="+itoa(books.ID)+"&sort=price&order=desc&limit=2", "", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status code 200, got %d", resp.Code)
	}
	var body struct {
		Data       []models.Product `json:"data"`
		Pagination pagination       `json:"pagination"`
	}
	decode(t, resp, &body)
	if len(body.Data) != 2 || body.Data[0].Name != "atlas" || body.Data[1].Name != "novel" {
		t.Fatalf("unexpected page: %+v", body.Data)
	}
	if body.Pagination.Total != 3 || body.Pagination.Pages != 2 || body.Pagination.Limit != 2 {
		t.Fatalf("unexpected pagination: %+v", body.Pagination)
	}

	resp = ts.do(http.MethodGet, "/api/products?is_featured=true&max_price=20", "", nil)
	decode(t, resp, &body)
	if len(body.Data) != 1 || body.Data[0].Name != "novel" {
		t.Fatalf("unexpected featured result: %+v", body.Data)
	}

	resp = ts.do(http.MethodGet, "/api/products?search=che", "", nil)
	decode(t, resp, &body)
	if len(body.Data) != 1 || body.Data[0].Name != "chess" {
		t.Fatalf("unexpected search result: %+v", body.Data)
	}
}

func TestListProductsRejectsInvalidQuery(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(http.MethodGet, "/api/products?sort=name&limit=1000", "", nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("Expected status code 400, got %d", resp.Code)
	}
	var body struct {
		Error middleware.ErrorBody `json:"error"`
	}
	decode(t, resp, &body)
	if body.Error.Code != "INVALID_QUERY_PARAMETER" {
		t.Fatalf("unexpected error code %q", body.Error.Code)
	}
}

func TestCreateProduct(t *testing.T) {
	ts := newTestServer(t)
	category := ts.seedCategory(t, "Garden", 1, true)
	payload := map[string]interface{}{
		"category_id": category.ID,
		"name":        "rake",
		"price":       14.5,
		"stock":       3,
	}

	if resp := ts.do(http.MethodPost, "/api/products", ts.user, payload); resp.Code != http.StatusForbidden {
		t.Fatalf("Expected status code 403 for non-admin, got %d", resp.Code)
	}

	resp := ts.do(http.MethodPost, "/api/products", ts.admin, payload)
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status code 201, got %d (%s)", resp.Code, resp.Body.String())
	}
	var created models.Product
	decode(t, resp, &created)
	if created.ID == 0 || !strings.HasPrefix(created.SKU, "SKU-") {
		t.Fatalf("unexpected product: %+v", created)
	}
}

func TestCreateProductValidation(t *testing.T) {
	ts := newTestServer(t)
	category := ts.seedCategory(t, "Garden", 1, true)

	resp := ts.do(http.MethodPost, "/api/products", ts.admin, map[string]interface{}{"name": "hose"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("Expected status code 400, got %d", resp.Code)
	}
	var body struct {
		Error struct {
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	decode(t, resp, &body)
	if len(body.Error.Details) != 3 || body.Error.Details["price"] != "required" {
		t.Fatalf("unexpected details: %v", body.Error.Details)
	}

	resp = ts.do(http.MethodPost, "/api/products", ts.admin, map[string]interface{}{
		"category_id": category.ID, "name": "hose", "price": -1, "stock": 1,
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("Expected status code 400 for negative price, got %d", resp.Code)
	}

	resp = ts.do(http.MethodPost, "/api/products", ts.admin, map[string]interface{}{
		"category_id": 999, "name": "hose", "price": 5, "stock": 1,
	})
	if resp.Code != http.StatusBadRequest || !strings.Contains(resp.Body.String(), "Category not found") {
		t.Fatalf("Expected category error, got %d %s", resp.Code, resp.Body.String())
	}
}

func TestUpdateProductInvalidatesCache(t *testing.T) {
	ts := newTestServer(t)
	category := ts.seedCategory(t, "Office", 1, true)
	product := ts.seedProduct(t, category.ID, "stapler", 9, false)
	path := "/api/products/" + itoa(product.ID)

	ts.do(http.MethodGet, path, "", nil)
	if resp := ts.do(http.MethodGet, path, "", nil); resp.Header().Get("X-Cache") != "HIT" {
		t.Fatalf("expected cached product")
	}

	if resp := ts.do(http.MethodPut, path, ts.admin, map[string]interface{}{}); resp.Code != http.StatusBadRequest {
		t.Fatalf("Expected status code 400 for empty update, got %d", resp.Code)
	}

	resp := ts.do(http.MethodPut, path, ts.admin, map[string]interface{}{"name": "heavy stapler", "price": 11.0})
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status code 200, got %d (%s)", resp.Code, resp.Body.String())
	}

	resp = ts.do(http.MethodGet, path, "", nil)
	if resp.Header().Get("X-Cache") != "MISS" {
		t.Fatalf("expected cache to be invalidated")
	}
	var detail models.ProductDetail
	decode(t, resp, &detail)
	if detail.Name != "heavy stapler" || detail.Price != 11 {
		t.Fatalf("unexpected product after update: %+v", detail)
	}

	if resp := ts.do(http.MethodPut, "/api/products/999", ts.admin, map[string]interface{}{"name": "x"}); resp.Code != http.StatusNotFound {
		t.Fatalf("Expected status code 404, got %d", resp.Code)
	}
}

func TestDeleteProduct(t *testing.T) {
	ts := newTestServer(t)
	category := ts.seedCategory(t, "Toys", 1, true)
	product := ts.seedProduct(t, category.ID, "yoyo", 3, false)
	path := "/api/products/" + itoa(product.ID)

	if resp := ts.do(http.MethodDelete, path, ts.admin, nil); resp.Code != http.StatusNoContent {
		t.Fatalf("Expected status code 204, got %d", resp.Code)
	}
	if resp := ts.do(http.MethodDelete, path, ts.admin, nil); resp.Code != http.StatusNotFound {
		t.Fatalf("Expected status code 404, got %d", resp.Code)
	}
	if resp := ts.do(http.MethodGet, path, "", nil); resp.Code != http.StatusNotFound {
		t.Fatalf("Expected status code 404 after delete, got %d", resp.Code)
	}
}

func TestListCategories(t *testing.T) {
	ts := newTestServer(t)
	ts.seedCategory(t, "Second", 2, true)
	ts.seedCategory(t, "First", 1, true)
	ts.seedCategory(t, "Hidden", 3, false)

	var categories []models.ProductCategory
	decode(t, ts.do(http.MethodGet, "/api/products/categories", "", nil), &categories)
	if len(categories) != 2 || categories[0].Name != "First" {
		t.Fatalf("unexpected active categories: %+v", categories)
	}

	decode(t, ts.do(http.MethodGet, "/api/products/categories?is_active=false", "", nil), &categories)
	if len(categories) != 1 || categories[0].Name != "Hidden" {
		t.Fatalf("unexpected inactive categories: %+v", categories)
	}
}

func TestUserAdministration(t *testing.T) {
	ts := newTestServer(t)

	if resp := ts.do(http.MethodGet, "/api/users", "", nil); resp.Code != http.StatusUnauthorized {
		t.Fatalf("Expected status code 401, got %d", resp.Code)
	}

	resp := ts.do(http.MethodPost, "/api/users", ts.admin, map[string]string{"name": "Ann", "email": "ann@example.com"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status code 201, got %d", resp.Code)
	}
	var created struct {
		Data models.User `json:"data"`
	}
	decode(t, resp, &created)
	path := "/api/users/" + itoa(created.Data.ID)

	if resp := ts.do(http.MethodPost, "/api/users", ts.admin, map[string]string{"name": "Ann"}); resp.Code != http.StatusBadRequest {
		t.Fatalf("Expected status code 400, got %d", resp.Code)
	}
	if resp := ts.do(http.MethodPost, "/api/users", ts.admin, map[string]string{"name": "Dup", "email": "ann@example.com"}); resp.Code != http.StatusConflict {
		t.Fatalf("Expected status code 409, got %d", resp.Code)
	}

	resp = ts.do(http.MethodPut, path, ts.admin, map[string]string{"name": "Anne", "email": "anne@example.com"})
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status code 200, got %d", resp.Code)
	}

	resp = ts.do(http.MethodPatch, path, ts.admin, map[string]interface{}{"is_active": false})
	var patched struct {
		Data models.User `json:"data"`
	}
	decode(t, resp, &patched)
	if patched.Data.IsActive || patched.Data.Name != "Anne" {
		t.Fatalf("unexpected patched user: %+v", patched.Data)
	}
	if resp := ts.do(http.MethodPatch, path, ts.admin, map[string]interface{}{}); resp.Code != http.StatusBadRequest {
		t.Fatalf("Expected status code 400, got %d", resp.Code)
	}

	var list struct {
		Data []models.User `json:"data"`
	}
	decode(t, ts.do(http.MethodGet, "/api/users", ts.admin, nil), &list)
	if len(list.Data) != 3 {
		t.Fatalf("expected 3 users, got %d", len(list.Data))
	}

	if resp := ts.do(http.MethodDelete, path, ts.admin, nil); resp.Code != http.StatusNoContent {
		t.Fatalf("Expected status code 204, got %d", resp.Code)
	}
	if resp := ts.do(http.MethodGet, path, ts.admin, nil); resp.Code != http.StatusNotFound {
		t.Fatalf("Expected status code 404, got %d", resp.Code)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodPost, "/api/auth/register", "", map[string]string{"name": "Bo", "email": "bo@example.com", "password": "short"})
	if resp.Code != http.StatusBadRequest || !strings.Contains(resp.Body.String(), "WEAK_PASSWORD") {
		t.Fatalf("expected WEAK_PASSWORD, got %d %s", resp.Code, resp.Body.String())
	}
	resp = ts.do(http.MethodPost, "/api/auth/register", "", map[string]string{"name": "Bo", "email": "not-an-email", "password": "longenough"})
	if resp.Code != http.StatusBadRequest || !strings.Contains(resp.Body.String(), "INVALID_EMAIL") {
		t.Fatalf("expected INVALID_EMAIL, got %d %s", resp.Code, resp.Body.String())
	}

	creds := map[string]string{"name": "Bo", "email": "bo@example.com", "password": "longenough"}
	resp = ts.do(http.MethodPost, "/api/auth/register", "", creds)
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status code 201, got %d (%s)", resp.Code, resp.Body.String())
	}
	if strings.Contains(resp.Body.String(), "password") {
		t.Fatal("password hash must not be returned")
	}
	if resp := ts.do(http.MethodPost, "/api/auth/register", "", creds); resp.Code != http.StatusConflict {
		t.Fatalf("Expected status code 409, got %d", resp.Code)
	}

	resp = ts.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "bo@example.com", "password": "wrongpass"})
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("Expected status code 401, got %d", resp.Code)
	}

	resp = ts.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "bo@example.com", "password": "longenough"})
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status code 200, got %d", resp.Code)
	}
	var login struct {
		Data struct {
			User  models.User `json:"user"`
			Token string      `json:"token"`
		} `json:"data"`
	}
	decode(t, resp, &login)

	resp = ts.do(http.MethodGet, "/api/auth/me", login.Data.Token, nil)
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "bo@example.com") {
		t.Fatalf("unexpected /me response: %d %s", resp.Code, resp.Body.String())
	}

	// last_login_at is written by the task queue
	ts.h.Tasks.Stop()
	var user models.User
	ts.h.DB.First(&user, login.Data.User.ID)
	if user.LastLoginAt == nil {
		t.Fatal("expected last_login_at to be set")
	}
}

func TestLoginDisabledAccount(t *testing.T) {
	ts := newTestServer(t)
	user := ts.createUser(t, "off@example.com", models.RoleUser)
	ts.h.DB.Model(user).Update("is_active", false)

	resp := ts.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "off@example.com", "password": "password123"})
	if resp.Code != http.StatusForbidden {
		t.Fatalf("Expected status code 403, got %d", resp.Code)
	}
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
