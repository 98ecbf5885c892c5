package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gigconnect/gigconnect-api/models"
	"github.com/gigconnect/gigconnect-api/services"
	"github.com/gigconnect/gigconnect-api/tests/testutil"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// jobRouter registers every job route behind a mock auth middleware for auth0ID
func jobRouter(auth0ID string) *gin.Engine {
	router := setupTestRouter()
	auth := testutil.MockAuthMiddleware(auth0ID, "", "")
	router.POST("/jobs", auth, CreateJob)
	router.GET("/jobs", auth, ListJobs)
	router.GET("/jobs/mine", auth, ListMyJobs)
	router.GET("/jobs/:id", auth, GetJob)
	router.POST("/jobs/:id/accept", auth, AcceptJob)
	router.POST("/jobs/:id/submit-proof", auth, SubmitProof)
	router.POST("/jobs/:id/approve", auth, ApproveJob)
	router.POST("/jobs/:id/ratings", auth, RateJob)
	router.GET("/jobs/:id/rating", auth, GetJobRating)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, jsonBody(t, body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func proofBody(imageRef string) gin.H {
	return gin.H{
		"image_ref":   imageRef,
		"description": "All fixed",
		"latitude":    -15.4167,
		"longitude":   28.2833,
		"captured_at": time.Now().UTC().Add(-time.Hour).Format(time.RFC3339),
	}
}

func TestCreateJob(t *testing.T) {
	db := setupTestDB(t)
	client := testutil.CreateUser(t, db, models.RoleClient, "100.00")
	worker := testutil.CreateUser(t, db, models.RoleWorker, "0")

	tests := []struct {
		name           string
		actor          string
		body           gin.H
		expectedStatus int
		expectedCode   string
	}{
		{"client posts job", client.Auth0ID, gin.H{"title": "Mount a TV", "price": "45.00", "category": "Handyman"}, http.StatusCreated, ""},
		{"numeric price", client.Auth0ID, gin.H{"title": "Mow lawn", "price": 20}, http.StatusCreated, ""},
		{"worker cannot post", worker.Auth0ID, gin.H{"title": "Mount a TV", "price": "45.00"}, http.StatusForbidden, "FORBIDDEN"},
		{"missing title", client.Auth0ID, gin.H{"price": "45.00"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"zero price", client.Auth0ID, gin.H{"title": "Free work"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"no profile", "auth0|ghost", gin.H{"title": "x", "price": "1"}, http.StatusNotFound, "USER_NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, jobRouter(tt.actor), http.MethodPost, "/jobs", tt.body)

			assert.Equal(t, tt.expectedStatus, w.Code, "Response body: %s", w.Body.String())
			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, errorCode(t, w))
				return
			}
			data := decodeResponse(t, w)["data"].(map[string]interface{})
			assert.Equal(t, "pending", data["status"])
			assert.Equal(t, float64(client.ID), data["client_id"])
		})
	}
}

func TestListJobs(t *testing.T) {
	db := setupTestDB(t)
	client := testutil.CreateUser(t, db, models.RoleClient, "100.00")
	worker := testutil.CreateUser(t, db, models.RoleWorker, "0")
	testutil.CreateJob(t, db, client, nil, models.JobStatusPending, "10.00")
	testutil.CreateJob(t, db, client, worker, models.JobStatusInProgress, "10.00")

	router := jobRouter(worker.Auth0ID)

	w := doJSON(t, router, http.MethodGet, "/jobs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeResponse(t, w)["data"], 1)

	w = doJSON(t, router, http.MethodGet, "/jobs?status=in_progress", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeResponse(t, w)["data"], 1)

	w = doJSON(t, router, http.MethodGet, "/jobs?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodGet, "/jobs?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodGet, "/jobs/mine", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeResponse(t, w)["data"], 1)
}

// assertNoPrivateUserFields checks a serialized user carries only its public view
func assertNoPrivateUserFields(t *testing.T, user interface{}) {
	t.Helper()
	fields, ok := user.(map[string]interface{})
	require.True(t, ok, "expected a user object, got %v", user)
	for _, private := range []string{"auth0_id", "email", "phone", "wallet_balance"} {
		assert.NotContains(t, fields, private)
	}
	assert.Contains(t, fields, "name")
}

func TestListJobs_HidesPrivateFields(t *testing.T) {
	db := setupTestDB(t)
	client := testutil.CreateUser(t, db, models.RoleClient, "100.00")
	worker := testutil.CreateUser(t, db, models.RoleWorker, "0")
	stranger := testutil.CreateUser(t, db, models.RoleWorker, "0")
	job := testutil.CreateJob(t, db, client, worker, models.JobStatusAwaitingApproval, "10.00")
	require.NoError(t, db.Model(job).Updates(map[string]interface{}{
		"proof_image_ref":    "proofs/done.png",
		"proof_submitted_at": time.Now(),
	}).Error)

	tests := []struct {
		name      string
		actor     string
		wantProof bool
	}{
		{"stranger", stranger.Auth0ID, false},
		{"worker", worker.Auth0ID, true},
		{"client", client.Auth0ID, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, jobRouter(tt.actor), http.MethodGet, "/jobs?status=awaiting_approval", nil)
			require.Equal(t, http.StatusOK, w.Code)
			jobs := decodeResponse(t, w)["data"].([]interface{})
			require.Len(t, jobs, 1)
			data := jobs[0].(map[string]interface{})

			assertNoPrivateUserFields(t, data["client"])
			assertNoPrivateUserFields(t, data["worker"])
			if tt.wantProof {
				assert.Contains(t, data, "proof")
			} else {
				assert.NotContains(t, data, "proof")
			}
		})
	}
}

func TestGetJob(t *testing.T) {
	db := setupTestDB(t)
	images := services.NewMockImageService()
	images.SetAsMockForTesting()
	t.Cleanup(func() { services.SetImageService(nil) })

	client := testutil.CreateUser(t, db, models.RoleClient, "100.00")
	worker := testutil.CreateUser(t, db, models.RoleWorker, "0")
	stranger := testutil.CreateUser(t, db, models.RoleWorker, "0")
	job := testutil.CreateJob(t, db, client, worker, models.JobStatusInProgress, "10.00")

	images.Put("proofs/done.png")
	w := doJSON(t, jobRouter(worker.Auth0ID), http.MethodPost, fmt.Sprintf("/jobs/%d/submit-proof", job.ID), proofBody("proofs/done.png"))
	require.Equal(t, http.StatusOK, w.Code, "Response body: %s", w.Body.String())

	w = doJSON(t, jobRouter(client.Auth0ID), http.MethodGet, fmt.Sprintf("/jobs/%d", job.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeResponse(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "awaiting_approval", data["status"])
	assert.Contains(t, data["proof_image_url"], "proofs/done.png")
	assert.Contains(t, data, "proof")
	assertNoPrivateUserFields(t, data["client"])
	assertNoPrivateUserFields(t, data["worker"])

	w = doJSON(t, jobRouter(stranger.Auth0ID), http.MethodGet, fmt.Sprintf("/jobs/%d", job.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	data = decodeResponse(t, w)["data"].(map[string]interface{})
	assert.NotContains(t, data, "proof_image_url")
	assert.NotContains(t, data, "proof")
	assertNoPrivateUserFields(t, data["client"])

	w = doJSON(t, jobRouter(client.Auth0ID), http.MethodGet, "/jobs/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "JOB_NOT_FOUND", errorCode(t, w))

	w = doJSON(t, jobRouter(client.Auth0ID), http.MethodGet, "/jobs/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ID", errorCode(t, w))
}

func TestJobLifecycleEndpoints(t *testing.T) {
	db := setupTestDB(t)
	client := testutil.CreateUser(t, db, models.RoleClient, "500.00")
	worker := testutil.CreateUser(t, db, models.RoleWorker, "100.00")
	rival := testutil.CreateUser(t, db, models.RoleWorker, "0")
	job := testutil.CreateJob(t, db, client, nil, models.JobStatusPending, "150.00")
	path := func(action string) string { return fmt.Sprintf("/jobs/%d/%s", job.ID, action) }

	w := doJSON(t, jobRouter(client.Auth0ID), http.MethodPost, path("accept"), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, jobRouter(worker.Auth0ID), http.MethodPost, path("accept"), nil)
	require.Equal(t, http.StatusOK, w.Code, "Response body: %s", w.Body.String())
	assert.Equal(t, "in_progress", decodeResponse(t, w)["data"].(map[string]interface{})["status"])

	w = doJSON(t, jobRouter(rival.Auth0ID), http.MethodPost, path("accept"), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INVALID_TRANSITION", errorCode(t, w))

	w = doJSON(t, jobRouter(worker.Auth0ID), http.MethodPost, path("ratings"), gin.H{"rating": 5})
	assert.Equal(t, http.StatusForbidden, w.Code, "only the client may rate")

	w = doJSON(t, jobRouter(client.Auth0ID), http.MethodPost, path("approve"), nil)
	assert.Equal(t, http.StatusConflict, w.Code, "cannot approve before proof")

	w = doJSON(t, jobRouter(worker.Auth0ID), http.MethodPost, path("submit-proof"), gin.H{"image_ref": "proofs/a.png"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "coordinates are required")

	w = doJSON(t, jobRouter(worker.Auth0ID), http.MethodPost, path("submit-proof"), proofBody("proofs/a.gif"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, jobRouter(worker.Auth0ID), http.MethodPost, path("submit-proof"), proofBody("proofs/a.png"))
	require.Equal(t, http.StatusOK, w.Code, "Response body: %s", w.Body.String())

	w = doJSON(t, jobRouter(worker.Auth0ID), http.MethodPost, path("submit-proof"), proofBody("proofs/b.png"))
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, jobRouter(client.Auth0ID), http.MethodPost, path("approve"), nil)
	require.Equal(t, http.StatusOK, w.Code, "Response body: %s", w.Body.String())
	data := decodeResponse(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "completed", data["job"].(map[string]interface{})["status"])
	assert.NotEmpty(t, data["transaction"].(map[string]interface{})["reference"])

	assert.True(t, testutil.ReloadUser(t, db, client.ID).WalletBalance.Equal(decimal.RequireFromString("350.00")))
	assert.True(t, testutil.ReloadUser(t, db, worker.ID).WalletBalance.Equal(decimal.RequireFromString("250.00")))

	w = doJSON(t, jobRouter(client.Auth0ID), http.MethodGet, path("rating"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "RATING_NOT_FOUND", errorCode(t, w))

	w = doJSON(t, jobRouter(client.Auth0ID), http.MethodPost, path("ratings"), gin.H{"rating": 7})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, jobRouter(client.Auth0ID), http.MethodPost, path("ratings"), gin.H{"rating": 4, "comment": "Tidy work"})
	require.Equal(t, http.StatusCreated, w.Code, "Response body: %s", w.Body.String())

	w = doJSON(t, jobRouter(client.Auth0ID), http.MethodPost, path("ratings"), gin.H{"rating": 1})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "DUPLICATE_RATING", errorCode(t, w))

	w = doJSON(t, jobRouter(worker.Auth0ID), http.MethodGet, path("rating"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(4), decodeResponse(t, w)["data"].(map[string]interface{})["rating"])

	stored := testutil.ReloadUser(t, db, worker.ID)
	assert.InDelta(t, 4.0, stored.Reputation, 1e-9)
	assert.Equal(t, 1, stored.CompletedJobs)
}

func TestApproveJob_InsufficientFunds(t *testing.T) {
	db := setupTestDB(t)
	client := testutil.CreateUser(t, db, models.RoleClient, "10.00")
	worker := testutil.CreateUser(t, db, models.RoleWorker, "0")
	job := testutil.CreateJob(t, db, client, worker, models.JobStatusAwaitingApproval, "150.00")

	w := doJSON(t, jobRouter(client.Auth0ID), http.MethodPost, fmt.Sprintf("/jobs/%d/approve", job.ID), nil)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "INSUFFICIENT_FUNDS", errorCode(t, w))
	assert.Equal(t, models.JobStatusAwaitingApproval, testutil.ReloadJob(t, db, job.ID).Status)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind error
		want int
	}{
		{services.ErrValidation, http.StatusBadRequest},
		{services.ErrNotFound, http.StatusNotFound},
		{services.ErrUnauthorized, http.StatusForbidden},
		{services.ErrInvalidTransition, http.StatusConflict},
		{services.ErrDuplicateRating, http.StatusConflict},
		{services.ErrConflict, http.StatusConflict},
		{services.ErrInsufficientFunds, http.StatusUnprocessableEntity},
		{services.ErrTransientStore, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.kind.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(&services.LifecycleError{Kind: tt.kind, Code: "X", Message: "x"}))
		})
	}
}

func TestRespondServiceError_Unexpected(t *testing.T) {
	router := setupTestRouter()
	router.GET("/boom", func(c *gin.Context) { respondServiceError(c, errors.New("boom")) })

	w := doJSON(t, router, http.MethodGet, "/boom", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", errorCode(t, w))
}
