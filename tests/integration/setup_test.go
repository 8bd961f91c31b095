package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"assetmanager/internal/events"
	"assetmanager/internal/handlers"
	"assetmanager/internal/logger"
	"assetmanager/internal/middleware"
	"assetmanager/internal/models"
	"assetmanager/internal/services"
	"assetmanager/internal/validator"
	"assetmanager/internal/valuation"
)

const (
	testPipelineKey   = "test-pipeline-key"
	testApproverEmail = "approver@test.com"
)

// testApp holds the full application stack for integration tests.
type testApp struct {
	DB     *gorm.DB
	Router *gin.Engine
	Broker *events.Broker
}

// dbCounter ensures each test gets a unique in-memory database.
var dbCounter atomic.Int64

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

type approverList []string

func (a approverList) IsApprover(email string) bool {
	for _, e := range a {
		if strings.EqualFold(e, email) {
			return true
		}
	}
	return false
}

// setupIsolatedDB creates an isolated in-memory SQLite database for a single test.
func setupIsolatedDB(t *testing.T) *gorm.DB {
	t.Helper()

	n := dbCounter.Add(1)
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", n)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get underlying DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// setupApp creates a full application stack backed by an isolated in-memory
// SQLite, valuing in the given baseline mode.
func setupApp(t *testing.T, mode valuation.Mode) *testApp {
	t.Helper()

	db := setupIsolatedDB(t)
	broker := events.NewBroker(16)

	store := services.NewRegistryStore(db)
	engine, err := services.NewValuationEngine(store, services.EngineConfig{
		ThresholdBps: 1000,
		Mode:         mode,
	}, broker, nil)
	if err != nil {
		t.Fatalf("failed to create valuation engine: %v", err)
	}
	userService := services.NewUserService(db)
	auditService := services.NewAuditService(db)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	handlers.Routes{
		Auth:           handlers.NewAuthHandler(userService, auditService, approverList{testApproverEmail}),
		Assets:         handlers.NewAssetHandler(engine, auditService),
		Events:         handlers.NewEventHandler(engine, broker),
		PipelineAPIKey: testPipelineKey,
	}.Register(router)

	return &testApp{DB: db, Router: router, Broker: broker}
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	headers := map[string]string{}
	if token != "" {
		headers["Authorization"] = "Bearer " + token
	}
	return app.requestWithHeaders(method, path, body, headers)
}

func (app *testApp) requestWithHeaders(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

// registerUser registers a new user and returns the access token and role.
func (app *testApp) registerUser(t *testing.T, email, password string) (accessToken, role string) {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q,"name":"Test User"}`, email, password)
	rec := app.request("POST", "/api/v1/auth/register", body, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	user := result["user"].(map[string]interface{})
	return result["access_token"].(string), user["role"].(string)
}

// loginUser logs in and returns the access token.
func (app *testApp) loginUser(t *testing.T, email, password string) string {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q}`, email, password)
	rec := app.request("POST", "/api/v1/auth/login", body, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}
	return parseJSON(t, rec)["access_token"].(string)
}

// submitterAndApprover registers one user of each role.
func (app *testApp) submitterAndApprover(t *testing.T) (submitter, approver string) {
	t.Helper()
	submitter, _ = app.registerUser(t, "submitter@test.com", "password123")
	approver, role := app.registerUser(t, testApproverEmail, "password123")
	if role != string(models.RoleApprover) {
		t.Fatalf("expected approver role, got %s", role)
	}
	return submitter, approver
}

// registerAsset posts an asset and returns the decoded response.
func (app *testApp) registerAsset(t *testing.T, token, body string) map[string]interface{} {
	t.Helper()
	rec := app.request("POST", "/api/v1/assets", body, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register asset failed: %d %s", rec.Code, rec.Body.String())
	}
	return parseJSON(t, rec)
}

// addReading posts a reading and returns the decoded data point.
func (app *testApp) addReading(t *testing.T, token string, assetID int, name string, value int64) map[string]interface{} {
	t.Helper()
	body := fmt.Sprintf(`{"name":%q,"value":%d}`, name, value)
	rec := app.request("POST", fmt.Sprintf("/api/v1/assets/%d/data-points", assetID), body, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add reading failed: %d %s", rec.Code, rec.Body.String())
	}
	return parseJSON(t, rec)
}

// assetValue fetches the asset's current valuation.
func (app *testApp) assetValue(t *testing.T, token string, assetID int) float64 {
	t.Helper()
	rec := app.request("GET", fmt.Sprintf("/api/v1/assets/%d", assetID), "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("get asset failed: %d %s", rec.Code, rec.Body.String())
	}
	return parseJSON(t, rec)["value"].(float64)
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	errObj, ok := parseJSON(t, rec)["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object, got: %s", rec.Body.String())
	}
	code, _ := errObj["code"].(string)
	return code
}

const carAsset = `{"name":"Car","initial_value":1000,"data_points":[{"name":"temperature","value":72,"impact_rule":"temperature"}]}`
