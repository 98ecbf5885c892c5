package controllers

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gigconnect/gigconnect-api/services"
	"github.com/gigconnect/gigconnect-api/utils"
	"github.com/gin-gonic/gin"
)

// UploadProofImage handles POST /api/v1/uploads/proof-images. The returned
// image_ref is what the worker passes to submit-proof.
func UploadProofImage(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		respondError(c, http.StatusBadRequest, "MISSING_FILE", "An image file is required in the 'image' field")
		return
	}

	images := services.GetImageService()
	if images == nil {
		respondError(c, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Image storage is not configured")
		return
	}

	key, err := images.UploadImage(c.Request.Context(), fileHeader)
	if err != nil {
		var uploadErr *utils.FileUploadError
		if errors.As(err, &uploadErr) {
			respondError(c, http.StatusBadRequest, uploadErr.Code, uploadErr.Message)
			return
		}
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, "UPLOAD_FAILED", "Failed to store image")
		return
	}

	url, err := images.GetImageURL(c.Request.Context(), key)
	if err != nil {
		_ = c.Error(err)
	}

	respondOK(c, http.StatusCreated, gin.H{
		"image_ref": key,
		"url":       url,
	})
}

// GetUploadedImage handles GET /api/v1/uploads/:filename - serves locally
// stored proof images
func GetUploadedImage(c *gin.Context) {
	filename := c.Param("filename")

	if filename == "" {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "Filename is required")
		return
	}

	if !utils.IsSafeFilename(filename) {
		respondError(c, http.StatusBadRequest, "INVALID_FILENAME", "Invalid filename")
		return
	}

	contentType, ok := utils.ContentTypeFor(filename)
	if !ok {
		respondError(c, http.StatusBadRequest, "INVALID_FILE_TYPE", "Only PNG and JPEG files are supported")
		return
	}

	filePath := filepath.Join(utils.UploadDir, filename)
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		respondError(c, http.StatusNotFound, "FILE_NOT_FOUND", "Image not found")
		return
	}

	c.Header("Content-Type", contentType)
	c.Header("Cache-Control", "public, max-age=86400")
	c.File(filePath)
}
