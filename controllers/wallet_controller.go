package controllers

import (
	"net/http"

	"github.com/gigconnect/gigconnect-api/services"
	"github.com/gin-gonic/gin"
)

// GetWallet handles GET /api/v1/wallet - balance and recent transfers
func GetWallet(c *gin.Context) {
	auth0ID, ok := requireUserID(c)
	if !ok {
		return
	}

	wallet, err := services.GetUserService().Wallet(c.Request.Context(), auth0ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, wallet)
}
