package controllers

import (
	"net/http"

	"github.com/gigconnect/gigconnect-api/models"
	"github.com/gigconnect/gigconnect-api/services"
	"github.com/gin-gonic/gin"
)

// GetLeaderboard handles GET /api/v1/leaderboard?sort=reputation|completed_jobs
func GetLeaderboard(c *gin.Context) {
	workers, err := services.GetUserService().Leaderboard(c.Request.Context(), c.Query("sort"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, publicUsers(c, workers))
}

// SearchWorkers handles GET /api/v1/workers?skill=
func SearchWorkers(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}

	workers, err := services.GetUserService().SearchWorkers(c.Request.Context(), c.Query("skill"), limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, publicUsers(c, workers))
}

// GetWorkerRatings handles GET /api/v1/workers/:id/ratings
func GetWorkerRatings(c *gin.Context) {
	workerID, ok := parseID(c, "id")
	if !ok {
		return
	}

	ratings, err := services.GetUserService().WorkerRatings(c.Request.Context(), workerID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, ratings)
}

// publicUsers resolves avatar links and strips private fields for listings
func publicUsers(c *gin.Context, users []models.User) []*models.PublicUser {
	for i := range users {
		resolveAvatar(c, &users[i])
	}
	return models.PublicUsers(users)
}

// resolveAvatar fills AvatarURL from the stored avatar image key
func resolveAvatar(c *gin.Context, user *models.User) {
	if user == nil || user.AvatarRef == "" {
		return
	}
	images := services.GetImageService()
	if images == nil {
		return
	}
	url, err := images.GetImageURL(c.Request.Context(), user.AvatarRef)
	if err != nil {
		_ = c.Error(err)
		return
	}
	user.AvatarURL = url
}
