package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gigconnect/gigconnect-api/config"
	"github.com/gigconnect/gigconnect-api/logger"
	"github.com/gigconnect/gigconnect-api/models"
	"github.com/gigconnect/gigconnect-api/repositories"
	"github.com/gigconnect/gigconnect-api/services"
	"github.com/gigconnect/gigconnect-api/tests/testutil"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// setupTestDB creates an in-memory database and points every service at it
func setupTestDB(t *testing.T) *gorm.DB {
	db := testutil.NewTestDB(t)
	config.SetDB(db)

	store := repositories.NewGormStore(db)
	log := logger.Discard()
	services.SetUserService(services.NewUserService(store, decimal.NewFromInt(1000), log))
	services.SetJobService(services.NewJobService(store, nil, log))
	services.SetJobLifecycleService(services.NewJobLifecycleService(store, nil, log,
		services.WithReadRetry(0, time.Millisecond)))

	return db
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	return router
}

// setupMockAuth0Server creates a mock HTTP server that simulates Auth0's /userinfo endpoint
func setupMockAuth0Server(userInfoMap map[string]*services.Auth0UserInfo) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/userinfo" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if len(authHeader) < 7 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		userInfo, exists := userInfoMap[authHeader[7:]]
		if !exists {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(userInfo)
	}))
}

// useConfig swaps the process config for the duration of the test
func useConfig(t *testing.T, cfg *config.Config) {
	original := config.GetConfig()
	config.SetConfig(cfg)
	t.Cleanup(func() { config.SetConfig(original) })
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), "Response body: %s", w.Body.String())
	return response
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	response := decodeResponse(t, w)
	assert.False(t, response["success"].(bool))
	return response["error"].(map[string]interface{})["code"].(string)
}

func jsonBody(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func TestCreateUser(t *testing.T) {
	db := setupTestDB(t)

	tests := []struct {
		name            string
		auth0ID         string
		email           string
		userName        string
		role            string
		accessToken     string
		expectedStatus  int
		expectedCode    string
		expectedRole    string
		expectedBalance string
	}{
		{
			name:            "Create client user successfully",
			auth0ID:         "auth0|123456",
			email:           "john@example.com",
			userName:        "John Doe",
			role:            "client",
			accessToken:     "token-123456",
			expectedStatus:  http.StatusCreated,
			expectedRole:    "client",
			expectedBalance: "1000",
		},
		{
			name:            "Create worker user successfully",
			auth0ID:         "auth0|worker789",
			email:           "worker@example.com",
			userName:        "Worker User",
			role:            "worker",
			accessToken:     "token-worker789",
			expectedStatus:  http.StatusCreated,
			expectedRole:    "worker",
			expectedBalance: "0",
		},
		{
			name:            "Create user with default role when role is empty",
			auth0ID:         "auth0|norole",
			email:           "norole@example.com",
			userName:        "No Role User",
			accessToken:     "token-norole",
			expectedStatus:  http.StatusCreated,
			expectedRole:    "client",
			expectedBalance: "1000",
		},
		{
			name:           "Fail with missing email",
			auth0ID:        "auth0|noemail",
			userName:       "No Email User",
			accessToken:    "token-noemail",
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "MISSING_EMAIL",
		},
		{
			name:           "Fail with missing name",
			auth0ID:        "auth0|noname",
			email:          "noname@example.com",
			accessToken:    "token-noname",
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "MISSING_NAME",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db.Exec("DELETE FROM users")

			mockServer := setupMockAuth0Server(map[string]*services.Auth0UserInfo{
				tt.accessToken: {Sub: tt.auth0ID, Email: tt.email, Name: tt.userName},
			})
			defer mockServer.Close()
			useConfig(t, &config.Config{Auth0Domain: mockServer.URL})

			router := setupTestRouter()
			router.POST("/users", testutil.MockAuthMiddleware(tt.auth0ID, tt.role, tt.accessToken), CreateUser)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/users", nil))

			assert.Equal(t, tt.expectedStatus, w.Code, "Response body: %s", w.Body.String())

			if tt.expectedStatus != http.StatusCreated {
				assert.Equal(t, tt.expectedCode, errorCode(t, w))
				return
			}

			response := decodeResponse(t, w)
			assert.True(t, response["success"].(bool))
			data := response["data"].(map[string]interface{})
			assert.Equal(t, tt.email, data["email"])
			assert.Equal(t, tt.userName, data["name"])
			assert.Equal(t, tt.auth0ID, data["auth0_id"])
			assert.Equal(t, tt.expectedRole, data["role"])

			var stored models.User
			require.NoError(t, db.Where("auth0_id = ?", tt.auth0ID).First(&stored).Error)
			assert.True(t, stored.WalletBalance.Equal(decimal.RequireFromString(tt.expectedBalance)))
		})
	}
}

func TestCreateUser_Auth0Failures(t *testing.T) {
	setupTestDB(t)

	mockServer := setupMockAuth0Server(map[string]*services.Auth0UserInfo{
		"other-token": {Sub: "auth0|other", Email: "other@example.com", Name: "Other"},
	})
	defer mockServer.Close()

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	tests := []struct {
		name           string
		domain         string
		token          string
		expectedStatus int
		expectedCode   string
	}{
		{"unknown token", mockServer.URL, "unknown-token", http.StatusUnauthorized, "INVALID_TOKEN"},
		{"token for another user", mockServer.URL, "other-token", http.StatusUnauthorized, "INVALID_TOKEN"},
		{"tenant unavailable", down.URL, "any-token", http.StatusBadGateway, "AUTH0_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			useConfig(t, &config.Config{Auth0Domain: tt.domain})

			router := setupTestRouter()
			router.POST("/users", testutil.MockAuthMiddleware("auth0|x", "", tt.token), CreateUser)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/users", nil))

			assert.Equal(t, tt.expectedStatus, w.Code, "Response body: %s", w.Body.String())
			assert.Equal(t, tt.expectedCode, errorCode(t, w))
		})
	}
}

func TestCreateUser_SharedSecretUsesRequestBody(t *testing.T) {
	db := setupTestDB(t)
	useConfig(t, &config.Config{JWTSecret: "secret"})

	router := setupTestRouter()
	router.POST("/users", testutil.MockAuthMiddleware("auth0|local", "", ""), CreateUser)

	body := jsonBody(t, gin.H{"name": "Local Worker", "email": "local@example.com", "role": "worker", "skills": []string{"Tiling"}})
	req := httptest.NewRequest(http.MethodPost, "/users", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, "Response body: %s", w.Body.String())

	var stored models.User
	require.NoError(t, db.Where("auth0_id = ?", "auth0|local").First(&stored).Error)
	assert.Equal(t, models.RoleWorker, stored.Role)
	assert.True(t, stored.HasSkillPrefix("tiling"))

	bad := httptest.NewRequest(http.MethodPost, "/users", jsonBody(t, gin.H{"name": "X", "email": "x@example.com", "role": "admin"}))
	bad.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, bad)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))
}

func TestCreateUser_Duplicate(t *testing.T) {
	db := setupTestDB(t)
	existing := testutil.CreateUser(t, db, models.RoleClient, "0")

	tests := []struct {
		name    string
		auth0ID string
		email   string
	}{
		{"duplicate Auth0 ID", existing.Auth0ID, "second@example.com"},
		{"duplicate email", "auth0|second", existing.Email},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockServer := setupMockAuth0Server(map[string]*services.Auth0UserInfo{
				"token": {Sub: tt.auth0ID, Email: tt.email, Name: "Second User"},
			})
			defer mockServer.Close()
			useConfig(t, &config.Config{Auth0Domain: mockServer.URL})

			router := setupTestRouter()
			router.POST("/users", testutil.MockAuthMiddleware(tt.auth0ID, "client", "token"), CreateUser)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/users", nil))

			assert.Equal(t, http.StatusConflict, w.Code)
			assert.Equal(t, "USER_EXISTS", errorCode(t, w))
		})
	}
}

func TestGetMyProfile_Success(t *testing.T) {
	db := setupTestDB(t)
	user := testutil.CreateUser(t, db, models.RoleWorker, "12.50")

	router := setupTestRouter()
	router.GET("/users/me", testutil.MockAuthMiddleware(user.Auth0ID, "", ""), GetMyProfile)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/me", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeResponse(t, w)["data"].(map[string]interface{})
	assert.Equal(t, user.Email, data["email"])
	assert.Equal(t, "worker", data["role"])
	assert.True(t, decimal.RequireFromString(data["wallet_balance"].(string)).Equal(decimal.RequireFromString("12.50")))
}

func TestGetMyProfile_UserNotFound(t *testing.T) {
	setupTestDB(t)

	router := setupTestRouter()
	router.GET("/users/me", testutil.MockAuthMiddleware("auth0|nonexistent", "", ""), GetMyProfile)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/me", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "USER_NOT_FOUND", errorCode(t, w))
}

func TestGetMyProfile_WithoutAuth(t *testing.T) {
	setupTestDB(t)

	router := setupTestRouter()
	router.GET("/users/me", GetMyProfile)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/me", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, w))
}

func TestUpdateMyProfile(t *testing.T) {
	db := setupTestDB(t)
	images := services.NewMockImageService()
	images.SetAsMockForTesting()
	t.Cleanup(func() { services.SetImageService(nil) })
	images.Put("avatar.png")

	user := testutil.CreateUser(t, db, models.RoleWorker, "0")
	other := testutil.CreateUser(t, db, models.RoleWorker, "0")

	tests := []struct {
		name           string
		body           gin.H
		expectedStatus int
		expectedCode   string
		check          func(t *testing.T, data map[string]interface{})
	}{
		{
			name:           "update name and skills",
			body:           gin.H{"name": "New Name", "skills": []string{"Roofing", "roofing"}},
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, data map[string]interface{}) {
				assert.Equal(t, "New Name", data["name"])
				assert.Equal(t, user.Email, data["email"])
				assert.Equal(t, []interface{}{"roofing"}, data["skills"])
			},
		},
		{
			name:           "empty update returns current profile",
			body:           gin.H{},
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, data map[string]interface{}) {
				assert.Equal(t, "New Name", data["name"])
			},
		},
		{
			name: "contact details and avatar",
			body: gin.H{
				"phone":      "+260 97 123 4567",
				"bio":        "Roofer for ten years",
				"location":   "Ndola",
				"avatar_ref": "avatar.png",
			},
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, data map[string]interface{}) {
				assert.Equal(t, "+260 97 123 4567", data["phone"])
				assert.Equal(t, "Roofer for ten years", data["bio"])
				assert.Equal(t, "Ndola", data["location"])
				assert.Equal(t, "avatar.png", data["avatar_ref"])
				assert.Contains(t, data["avatar_url"], "avatar.png")
				assert.Equal(t, "New Name", data["name"])
			},
		},
		{
			name:           "bio too long",
			body:           gin.H{"bio": strings.Repeat("x", 1001)},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "VALIDATION_ERROR",
		},
		{
			name:           "avatar is not an image key",
			body:           gin.H{"avatar_ref": "notes.txt"},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "VALIDATION_ERROR",
		},
		{
			name:           "invalid email",
			body:           gin.H{"email": "not-an-email"},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "VALIDATION_ERROR",
		},
		{
			name:           "duplicate email",
			body:           gin.H{"email": other.Email},
			expectedStatus: http.StatusConflict,
			expectedCode:   "EMAIL_EXISTS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupTestRouter()
			router.PUT("/users/me", testutil.MockAuthMiddleware(user.Auth0ID, "", ""), UpdateMyProfile)

			req := httptest.NewRequest(http.MethodPut, "/users/me", jsonBody(t, tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code, "Response body: %s", w.Body.String())
			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, errorCode(t, w))
				return
			}
			tt.check(t, decodeResponse(t, w)["data"].(map[string]interface{}))
		})
	}
}

func TestUpdateMyProfile_UserNotFound(t *testing.T) {
	setupTestDB(t)

	router := setupTestRouter()
	router.PUT("/users/me", testutil.MockAuthMiddleware("auth0|ghost", "", ""), UpdateMyProfile)

	req := httptest.NewRequest(http.MethodPut, "/users/me", jsonBody(t, gin.H{"name": "X"}))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "USER_NOT_FOUND", errorCode(t, w))
}
