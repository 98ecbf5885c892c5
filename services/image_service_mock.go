package services

import (
	"context"
	"fmt"
	"mime/multipart"
	"sync"

	"github.com/gigconnect/gigconnect-api/utils"
)

// MockImageService is an in-memory ImageService for controller tests
type MockImageService struct {
	uploadedImages map[string]string // image key to original filename
	mu             sync.RWMutex
}

// NewMockImageService creates a new mock image service
func NewMockImageService() *MockImageService {
	return &MockImageService{
		uploadedImages: make(map[string]string),
	}
}

// SetAsMockForTesting sets this mock as the global image service instance for testing
func (m *MockImageService) SetAsMockForTesting() {
	SetImageService(m)
}

// UploadImage validates the file and records it under a proofs/ key
func (m *MockImageService) UploadImage(_ context.Context, fileHeader *multipart.FileHeader) (string, error) {
	if err := utils.ValidateImageFile(fileHeader); err != nil {
		return "", err
	}

	key := utils.ProofImagePrefix + "mock_" + utils.NewImageName(fileHeader.Filename)

	m.mu.Lock()
	m.uploadedImages[key] = fileHeader.Filename
	m.mu.Unlock()

	return key, nil
}

// Put registers key as stored, for tests that skip the upload step
func (m *MockImageService) Put(key string) {
	m.mu.Lock()
	m.uploadedImages[key] = key
	m.mu.Unlock()
}

// GetImageURL returns a fake URL for stored keys
func (m *MockImageService) GetImageURL(_ context.Context, imageKey string) (string, error) {
	if imageKey == "" {
		return "", nil
	}

	m.mu.RLock()
	_, exists := m.uploadedImages[imageKey]
	m.mu.RUnlock()

	if !exists {
		return "", fmt.Errorf("image not found in mock storage: %s", imageKey)
	}

	return fmt.Sprintf("https://test-bucket.s3.us-east-1.amazonaws.com/%s?mock=true", imageKey), nil
}

// DeleteImage removes an image
func (m *MockImageService) DeleteImage(_ context.Context, imageKey string) error {
	m.mu.Lock()
	delete(m.uploadedImages, imageKey)
	m.mu.Unlock()
	return nil
}

// ImageExists checks if an image exists in mock storage
func (m *MockImageService) ImageExists(imageKey string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.uploadedImages[imageKey]
	return exists
}
