package controllers

import (
	"net/http"
	"time"

	"github.com/gigconnect/gigconnect-api/models"
	"github.com/gigconnect/gigconnect-api/services"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// CreateJobRequest represents the request body for posting a job
type CreateJobRequest struct {
	Title       string          `json:"title" binding:"required"`
	Description string          `json:"description"`
	Location    string          `json:"location"`
	Category    string          `json:"category"`
	Skills      []string        `json:"skills"`
	Price       decimal.Decimal `json:"price"`
}

// SubmitProofRequest represents the request body for submitting proof of work
type SubmitProofRequest struct {
	ImageRef    string    `json:"image_ref" binding:"required"`
	Description string    `json:"description"`
	Latitude    *float64  `json:"latitude" binding:"required"`
	Longitude   *float64  `json:"longitude" binding:"required"`
	CapturedAt  time.Time `json:"captured_at"`
}

// RateJobRequest represents the request body for rating a completed job
type RateJobRequest struct {
	Rating  int    `json:"rating" binding:"required"`
	Comment string `json:"comment" binding:"max=1000"`
}

// CreateJob handles POST /api/v1/jobs - posts a new job (clients only)
func CreateJob(c *gin.Context) {
	auth0ID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidRequest(c, err)
		return
	}

	job, err := services.GetJobService().PostJob(c.Request.Context(), auth0ID, services.NewJobInput{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Category:    req.Category,
		Skills:      req.Skills,
		Price:       req.Price,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, job)
}

// ListJobs handles GET /api/v1/jobs - the job feed, pending jobs by default.
// Proof of work is only shown to the job's client and worker.
func ListJobs(c *gin.Context) {
	auth0ID, ok := requireUserID(c)
	if !ok {
		return
	}
	limit, ok := queryLimit(c)
	if !ok {
		return
	}

	jobs, err := services.GetJobService().Feed(c.Request.Context(), services.FeedQuery{
		Status:   c.Query("status"),
		Category: c.Query("category"),
		Limit:    limit,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	for i := range jobs {
		if !isParticipant(&jobs[i], auth0ID) {
			jobs[i].RedactProof()
		}
	}
	respondOK(c, http.StatusOK, jobs)
}

// ListMyJobs handles GET /api/v1/jobs/mine - jobs the caller posted or holds
func ListMyJobs(c *gin.Context) {
	auth0ID, ok := requireUserID(c)
	if !ok {
		return
	}

	jobs, err := services.GetJobService().ListMine(c.Request.Context(), auth0ID, c.Query("status"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, jobs)
}

// GetJob handles GET /api/v1/jobs/:id. Only the job's client and worker see
// the proof, with a link to the proof image.
func GetJob(c *gin.Context) {
	auth0ID, ok := requireUserID(c)
	if !ok {
		return
	}
	jobID, ok := parseID(c, "id")
	if !ok {
		return
	}

	job, err := services.GetJobService().Get(c.Request.Context(), jobID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	resolveAvatar(c, job.Client)
	resolveAvatar(c, job.Worker)
	if !isParticipant(job, auth0ID) {
		job.RedactProof()
	} else if job.HasProof() {
		if images := services.GetImageService(); images != nil {
			if url, err := images.GetImageURL(c.Request.Context(), job.Proof.ImageRef); err == nil {
				job.ProofImageURL = url
			} else {
				_ = c.Error(err)
			}
		}
	}

	respondOK(c, http.StatusOK, job)
}

func isParticipant(job *models.Job, auth0ID string) bool {
	return (job.Client != nil && job.Client.Auth0ID == auth0ID) ||
		(job.Worker != nil && job.Worker.Auth0ID == auth0ID)
}

// AcceptJob handles POST /api/v1/jobs/:id/accept - a worker takes a pending job
func AcceptJob(c *gin.Context) {
	auth0ID, ok := requireUserID(c)
	if !ok {
		return
	}
	jobID, ok := parseID(c, "id")
	if !ok {
		return
	}

	job, err := services.GetJobLifecycleService().Accept(c.Request.Context(), jobID, auth0ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, job)
}

// SubmitProof handles POST /api/v1/jobs/:id/submit-proof
func SubmitProof(c *gin.Context) {
	auth0ID, ok := requireUserID(c)
	if !ok {
		return
	}
	jobID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req SubmitProofRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidRequest(c, err)
		return
	}

	job, err := services.GetJobLifecycleService().SubmitProof(c.Request.Context(), jobID, auth0ID, services.ProofInput{
		ImageRef:    req.ImageRef,
		Description: req.Description,
		Latitude:    *req.Latitude,
		Longitude:   *req.Longitude,
		CapturedAt:  req.CapturedAt,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, job)
}

// ApproveJob handles POST /api/v1/jobs/:id/approve - the client approves the
// proof and pays the worker
func ApproveJob(c *gin.Context) {
	auth0ID, ok := requireUserID(c)
	if !ok {
		return
	}
	jobID, ok := parseID(c, "id")
	if !ok {
		return
	}

	payment, err := services.GetJobLifecycleService().ApproveAndPay(c.Request.Context(), jobID, auth0ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, payment)
}

// RateJob handles POST /api/v1/jobs/:id/ratings
func RateJob(c *gin.Context) {
	auth0ID, ok := requireUserID(c)
	if !ok {
		return
	}
	jobID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req RateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidRequest(c, err)
		return
	}

	rating, err := services.GetJobLifecycleService().Rate(c.Request.Context(), jobID, auth0ID, services.RatingInput{
		Score:   req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, rating)
}

// GetJobRating handles GET /api/v1/jobs/:id/rating
func GetJobRating(c *gin.Context) {
	auth0ID, ok := requireUserID(c)
	if !ok {
		return
	}
	jobID, ok := parseID(c, "id")
	if !ok {
		return
	}

	rating, err := services.GetJobService().RatingForJob(c.Request.Context(), jobID, auth0ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, rating)
}
