package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"testing"
	"time"

	"sewain/internal/handlers"
	"sewain/internal/middleware"
	"sewain/internal/models"
	"sewain/internal/repositories"
	"sewain/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// testEnv bundles the wired application plus the pieces tests reach into
// directly: the order service for triggering the expiry sweep, and the user
// repository for seeding the admin account.
type testEnv struct {
	App    *fiber.App
	Orders *services.OrderService
	Users  repositories.UserRepository
}

// setupTestApp wires the full HTTP surface over a private in-memory sqlite
// database. Each test passes a distinct name so databases never bleed into
// each other.
func setupTestApp(t *testing.T, dbName string) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", dbName)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Product{}, &models.Order{}))

	productRepo := repositories.NewGORMProductRepository(db)
	orderRepo := repositories.NewGORMOrderRepository(db)
	userRepo := repositories.NewGORMUserRepository(db)

	productService := services.NewProductService(productRepo)
	authService := services.NewAuthService(userRepo, "integration_test_secret")
	orderService := services.NewOrderService(orderRepo, productRepo, nil)

	productHandler := handlers.NewProductHandler(productService)
	orderHandler := handlers.NewOrderHandler(orderService)
	authHandler := handlers.NewAuthHandler(authService)

	app := fiber.New()
	apiV1 := app.Group("/api/v1")

	authHandler.RegisterRoutes(apiV1)
	productHandler.RegisterPublicRoutes(apiV1)

	verified := apiV1.Group("", middleware.AuthRequired(authService), middleware.RequireVerified())
	orderHandler.RegisterRoutes(verified)
	productHandler.RegisterPartnerRoutes(verified)

	admin := apiV1.Group("/admin",
		middleware.AuthRequired(authService),
		middleware.RequireVerified(),
		middleware.RequireRole(models.RoleAdmin))
	orderHandler.RegisterAdminRoutes(admin)
	authHandler.RegisterAdminRoutes(admin)

	return &testEnv{App: app, Orders: orderService, Users: userRepo}
}

// seedAdmin creates a verified admin account directly through the
// repository; registration deliberately refuses the admin role.
func (env *testEnv) seedAdmin(t *testing.T, email, password string) {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	require.NoError(t, err)
	require.NoError(t, env.Users.Create(&models.User{
		Name:       "Administrator",
		Email:      email,
		Password:   string(hashed),
		Role:       models.RoleAdmin,
		IsVerified: true,
	}))
}

// request performs an HTTP request against the test app and returns the
// status code plus the raw response body.
func (env *testEnv) request(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := env.App.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func decodeMap(t *testing.T, raw []byte) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out), "body: %s", string(raw))
	return out
}

// registerUser registers an account through the public API and returns its
// generated ID. Fresh accounts are always unverified.
func (env *testEnv) registerUser(t *testing.T, name, email, role string) string {
	t.Helper()
	status, raw := env.request(t, http.MethodPost, "/api/v1/auth/register", "", fiber.Map{
		"name":     name,
		"email":    email,
		"password": "password123",
		"role":     role,
	})
	require.Equal(t, http.StatusCreated, status, "body: %s", string(raw))
	user := decodeMap(t, raw)["user"].(map[string]any)
	require.False(t, user["is_verified"].(bool))
	return user["id"].(string)
}

func (env *testEnv) login(t *testing.T, email string) string {
	t.Helper()
	status, raw := env.request(t, http.MethodPost, "/api/v1/auth/login", "", fiber.Map{
		"email":    email,
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, status, "body: %s", string(raw))
	return decodeMap(t, raw)["token"].(string)
}

func (env *testEnv) verifyUser(t *testing.T, adminToken, userID string) {
	t.Helper()
	status, raw := env.request(t, http.MethodPost, "/api/v1/admin/users/"+userID+"/verify", adminToken, nil)
	require.Equal(t, http.StatusOK, status, "body: %s", string(raw))
}

// createProduct lists a device for the acting partner and returns its ID.
func (env *testEnv) createProduct(t *testing.T, partnerToken string, stock int) string {
	t.Helper()
	status, raw := env.request(t, http.MethodPost, "/api/v1/products", partnerToken, fiber.Map{
		"name":               "iPhone 15 Pro",
		"description":        "Barely used, full kit",
		"storage":            "256GB",
		"color":              "Natural Titanium",
		"rent_price_per_day": "100000",
		"max_rent_days":      14,
		"stock":              stock,
	})
	require.Equal(t, http.StatusCreated, status, "body: %s", string(raw))
	return decodeMap(t, raw)["id"].(string)
}

func (env *testEnv) createOrder(t *testing.T, customerToken, productID string, duration int, startDate time.Time) map[string]any {
	t.Helper()
	status, raw := env.request(t, http.MethodPost, "/api/v1/orders", customerToken, fiber.Map{
		"product_id": productID,
		"duration":   duration,
		"start_date": startDate.Format("2006-01-02"),
	})
	require.Equal(t, http.StatusCreated, status, "body: %s", string(raw))
	return decodeMap(t, raw)
}

func (env *testEnv) orderStatus(t *testing.T, token, orderID string) string {
	t.Helper()
	status, raw := env.request(t, http.MethodGet, "/api/v1/orders/"+orderID, token, nil)
	require.Equal(t, http.StatusOK, status, "body: %s", string(raw))
	return decodeMap(t, raw)["status"].(string)
}

func (env *testEnv) productStock(t *testing.T, productID string) int {
	t.Helper()
	status, raw := env.request(t, http.MethodGet, "/api/v1/products/"+productID, "", nil)
	require.Equal(t, http.StatusOK, status, "body: %s", string(raw))
	return int(decodeMap(t, raw)["stock"].(float64))
}

func assertDecimal(t *testing.T, expected string, got any) {
	t.Helper()
	value, err := decimal.NewFromString(fmt.Sprintf("%v", got))
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString(expected).Equal(value), "expected %s, got %v", expected, got)
}

func TestAPI_FullRentalLifecycle(t *testing.T) {
	env := setupTestApp(t, "lifecycle")
	env.seedAdmin(t, "admin@sewain.id", "password123")

	partnerID := env.registerUser(t, "Toko Gadget Jaya", "partner@example.com", "partner")
	customerID := env.registerUser(t, "Budi Santoso", "customer@example.com", "customer")

	// Fresh accounts authenticate but cannot use the marketplace yet.
	unverifiedToken := env.login(t, "customer@example.com")
	status, _ := env.request(t, http.MethodGet, "/api/v1/orders", unverifiedToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	adminToken := env.login(t, "admin@sewain.id")
	env.verifyUser(t, adminToken, partnerID)
	env.verifyUser(t, adminToken, customerID)

	// Verification lands in the token claims, so both log in again.
	partnerToken := env.login(t, "partner@example.com")
	customerToken := env.login(t, "customer@example.com")

	productID := env.createProduct(t, partnerToken, 2)

	startDate := time.Now().UTC().AddDate(0, 0, 2)
	order := env.createOrder(t, customerToken, productID, 3, startDate)
	orderID := order["id"].(string)
	assert.Equal(t, "waiting", order["status"])
	assert.Equal(t, partnerID, order["partner_id"])
	assertDecimal(t, "320000", order["total_price"])

	// One unit of stock is reserved immediately.
	assert.Equal(t, 1, env.productStock(t, productID))

	// Partner confirms the pickup details and marks the order ready.
	status, raw := env.request(t, http.MethodPost, "/api/v1/orders/"+orderID+"/partner-confirm", partnerToken, fiber.Map{
		"pickup_address": "Jl. Sudirman No. 10, Jakarta",
		"contact_number": "081234567890",
		"pickup_time":    "09:00-12:00",
		"status":         "ready",
	})
	require.Equal(t, http.StatusOK, status, "body: %s", string(raw))
	assert.Equal(t, "ready", env.orderStatus(t, partnerToken, orderID))

	// Confirming ready a second time trips the state machine.
	status, _ = env.request(t, http.MethodPost, "/api/v1/orders/"+orderID+"/partner-confirm", partnerToken, fiber.Map{
		"pickup_address": "Jl. Sudirman No. 10, Jakarta",
		"contact_number": "081234567890",
		"pickup_time":    "09:00-12:00",
		"status":         "ready",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, raw = env.request(t, http.MethodPost, "/api/v1/orders/"+orderID+"/partner-pickedup", partnerToken, nil)
	require.Equal(t, http.StatusOK, status, "body: %s", string(raw))
	assert.Equal(t, "rented", env.orderStatus(t, customerToken, orderID))

	// The sweep leaves the order alone until the rental period elapses.
	swept, err := env.Orders.SweepExpiredRentals(time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 0, swept)
	assert.Equal(t, "rented", env.orderStatus(t, customerToken, orderID))

	endDate := startDate.AddDate(0, 0, 3)
	swept, err = env.Orders.SweepExpiredRentals(endDate.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, swept)
	assert.Equal(t, "return_now", env.orderStatus(t, customerToken, orderID))

	status, raw = env.request(t, http.MethodPost, "/api/v1/orders/"+orderID+"/partner-finish", partnerToken, fiber.Map{
		"return_information": "Returned in good condition",
	})
	require.Equal(t, http.StatusOK, status, "body: %s", string(raw))

	status, raw = env.request(t, http.MethodGet, "/api/v1/orders/"+orderID, partnerToken, nil)
	require.Equal(t, http.StatusOK, status)
	finished := decodeMap(t, raw)
	assert.Equal(t, "finished", finished["status"])
	assert.Equal(t, "Returned in good condition", finished["return_information"])

	// Completion does not restock; the unit went back to the shelf manually.
	assert.Equal(t, 1, env.productStock(t, productID))
}

func TestAPI_CancelAndStockGuard(t *testing.T) {
	env := setupTestApp(t, "cancel")
	env.seedAdmin(t, "admin@sewain.id", "password123")

	partnerID := env.registerUser(t, "Toko Gadget Jaya", "partner@example.com", "partner")
	customerID := env.registerUser(t, "Budi Santoso", "customer@example.com", "customer")
	adminToken := env.login(t, "admin@sewain.id")
	env.verifyUser(t, adminToken, partnerID)
	env.verifyUser(t, adminToken, customerID)
	partnerToken := env.login(t, "partner@example.com")
	customerToken := env.login(t, "customer@example.com")

	productID := env.createProduct(t, partnerToken, 1)
	startDate := time.Now().UTC().AddDate(0, 0, 1)

	order := env.createOrder(t, customerToken, productID, 2, startDate)
	orderID := order["id"].(string)
	assert.Equal(t, 0, env.productStock(t, productID))

	// The last unit is reserved; the next order bounces.
	status, raw := env.request(t, http.MethodPost, "/api/v1/orders", customerToken, fiber.Map{
		"product_id": productID,
		"duration":   2,
		"start_date": startDate.Format("2006-01-02"),
	})
	assert.Equal(t, http.StatusConflict, status, "body: %s", string(raw))

	status, raw = env.request(t, http.MethodPost, "/api/v1/orders/"+orderID+"/partner-cancel", partnerToken, nil)
	require.Equal(t, http.StatusOK, status, "body: %s", string(raw))
	assert.Equal(t, "canceled", env.orderStatus(t, customerToken, orderID))

	// Cancellation does not restore stock, and canceled is terminal.
	assert.Equal(t, 0, env.productStock(t, productID))
	status, _ = env.request(t, http.MethodPost, "/api/v1/orders/"+orderID+"/partner-cancel", partnerToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPI_OrderValidation(t *testing.T) {
	env := setupTestApp(t, "validation")
	env.seedAdmin(t, "admin@sewain.id", "password123")

	partnerID := env.registerUser(t, "Toko Gadget Jaya", "partner@example.com", "partner")
	customerID := env.registerUser(t, "Budi Santoso", "customer@example.com", "customer")
	adminToken := env.login(t, "admin@sewain.id")
	env.verifyUser(t, adminToken, partnerID)
	env.verifyUser(t, adminToken, customerID)
	partnerToken := env.login(t, "partner@example.com")
	customerToken := env.login(t, "customer@example.com")

	productID := env.createProduct(t, partnerToken, 3)
	future := time.Now().UTC().AddDate(0, 0, 2).Format("2006-01-02")

	// Duration above the product limit.
	status, raw := env.request(t, http.MethodPost, "/api/v1/orders", customerToken, fiber.Map{
		"product_id": productID,
		"duration":   20,
		"start_date": future,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status, "body: %s", string(raw))
	assert.Contains(t, decodeMap(t, raw)["errors"], "duration")

	// Start date in the past.
	status, raw = env.request(t, http.MethodPost, "/api/v1/orders", customerToken, fiber.Map{
		"product_id": productID,
		"duration":   2,
		"start_date": "2020-01-01",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status, "body: %s", string(raw))
	assert.Contains(t, decodeMap(t, raw)["errors"], "start_date")

	// Unparseable date.
	status, _ = env.request(t, http.MethodPost, "/api/v1/orders", customerToken, fiber.Map{
		"product_id": productID,
		"duration":   2,
		"start_date": "01/01/2027",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	// Rejected orders must not burn stock.
	assert.Equal(t, 3, env.productStock(t, productID))

	// Confirming without the mandatory pickup fields.
	order := env.createOrder(t, customerToken, productID, 2, time.Now().UTC().AddDate(0, 0, 2))
	status, raw = env.request(t, http.MethodPost, "/api/v1/orders/"+order["id"].(string)+"/partner-confirm", partnerToken, fiber.Map{
		"notes": "no pickup details yet",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status, "body: %s", string(raw))
}

func TestAPI_AdminEndpoints(t *testing.T) {
	env := setupTestApp(t, "admin")
	env.seedAdmin(t, "admin@sewain.id", "password123")

	partnerID := env.registerUser(t, "Toko Gadget Jaya", "partner@example.com", "partner")
	customerID := env.registerUser(t, "Budi Santoso", "customer@example.com", "customer")
	adminToken := env.login(t, "admin@sewain.id")
	env.verifyUser(t, adminToken, partnerID)
	env.verifyUser(t, adminToken, customerID)
	partnerToken := env.login(t, "partner@example.com")
	customerToken := env.login(t, "customer@example.com")

	productID := env.createProduct(t, partnerToken, 2)
	order := env.createOrder(t, customerToken, productID, 2, time.Now().UTC().AddDate(0, 0, 2))
	orderID := order["id"].(string)

	// Admin routes reject non-admin roles outright.
	status, _ := env.request(t, http.MethodGet, "/api/v1/admin/orders", partnerToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = env.request(t, http.MethodGet, "/api/v1/admin/users", customerToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, raw := env.request(t, http.MethodGet, "/api/v1/admin/orders", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	var orders []map[string]any
	require.NoError(t, json.Unmarshal(raw, &orders))
	require.Len(t, orders, 1)
	assert.NotNil(t, orders[0]["product_summary"])

	status, raw = env.request(t, http.MethodGet, "/api/v1/admin/users", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	var users []map[string]any
	require.NoError(t, json.Unmarshal(raw, &users))
	assert.Len(t, users, 3)

	// The override skips the state machine entirely.
	status, raw = env.request(t, http.MethodPost, "/api/v1/admin/orders/"+orderID+"/status", adminToken, fiber.Map{
		"status": "return_now",
	})
	require.Equal(t, http.StatusOK, status, "body: %s", string(raw))
	assert.Equal(t, "return_now", env.orderStatus(t, customerToken, orderID))

	// But canceled stays a partner action.
	status, _ = env.request(t, http.MethodPost, "/api/v1/admin/orders/"+orderID+"/status", adminToken, fiber.Map{
		"status": "canceled",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
}

func TestAPI_AuthGates(t *testing.T) {
	env := setupTestApp(t, "authgates")

	// Catalog browsing is public.
	status, _ := env.request(t, http.MethodGet, "/api/v1/products", "", nil)
	assert.Equal(t, http.StatusOK, status)

	// Orders are not.
	status, _ = env.request(t, http.MethodGet, "/api/v1/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = env.request(t, http.MethodGet, "/api/v1/orders", "not-a-real-token", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	// Self-registering an admin is refused.
	status, raw := env.request(t, http.MethodPost, "/api/v1/auth/register", "", fiber.Map{
		"name":     "Sneaky",
		"email":    "sneaky@example.com",
		"password": "password123",
		"role":     "admin",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status, "body: %s", string(raw))

	// Duplicate registration conflicts.
	env.registerUser(t, "Budi Santoso", "customer@example.com", "customer")
	status, _ = env.request(t, http.MethodPost, "/api/v1/auth/register", "", fiber.Map{
		"name":     "Budi Again",
		"email":    "customer@example.com",
		"password": "password123",
		"role":     "customer",
	})
	assert.Equal(t, http.StatusConflict, status)
}
