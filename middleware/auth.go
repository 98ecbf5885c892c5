package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/auth0/go-jwt-middleware/v2"
	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gigconnect/gigconnect-api/config"
	"github.com/gigconnect/gigconnect-api/models"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Gin context keys set by EnsureValidToken
const (
	UserIDKey      = "user_id"
	ClaimsKey      = "validated_claims"
	AccessTokenKey = "access_token"
)

// CustomClaims contains custom data we want from the token.
type CustomClaims struct {
	Scope string `json:"scope"`
	Role  string `json:"role"`
}

// Validate rejects tokens that carry an unknown role
func (c CustomClaims) Validate(ctx context.Context) error {
	if c.Role != "" && !models.ValidRole(strings.ToLower(c.Role)) {
		return fmt.Errorf("unknown role %q", c.Role)
	}
	return nil
}

// HasScope checks whether our claims have a specific scope.
func (c CustomClaims) HasScope(expectedScope string) bool {
	for _, s := range strings.Fields(c.Scope) {
		if s == expectedScope {
			return true
		}
	}
	return false
}

// EnsureValidToken checks the bearer token in the Authorization header.
// Tokens are verified with JWT_SECRET (HS256) when it is set and against the
// Auth0 tenant's JWKS (RS256) otherwise.
func EnsureValidToken(cfg *config.Config, log *logrus.Logger) (gin.HandlerFunc, error) {
	return newTokenMiddleware(cfg, log, jwtmiddleware.AuthHeaderTokenExtractor)
}

// EnsureValidWebSocketToken is EnsureValidToken that also accepts the token in
// the access_token query parameter, since browsers cannot set headers on a
// WebSocket handshake.
func EnsureValidWebSocketToken(cfg *config.Config, log *logrus.Logger) (gin.HandlerFunc, error) {
	return newTokenMiddleware(cfg, log, jwtmiddleware.MultiTokenExtractor(
		jwtmiddleware.AuthHeaderTokenExtractor,
		jwtmiddleware.ParameterTokenExtractor("access_token"),
	))
}

func newTokenMiddleware(cfg *config.Config, log *logrus.Logger, extractor jwtmiddleware.TokenExtractor) (gin.HandlerFunc, error) {
	jwtValidator, err := newValidator(cfg)
	if err != nil {
		return nil, err
	}

	errorHandler := func(w http.ResponseWriter, r *http.Request, err error) {
		log.WithError(err).WithField("path", r.URL.Path).Warn("Encountered error while validating JWT")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		if _, writeErr := w.Write([]byte(`{"success":false,"error":{"code":"INVALID_TOKEN","message":"Failed to validate JWT."}}`)); writeErr != nil {
			log.WithError(writeErr).Error("Failed to write error response")
		}
	}

	middleware := jwtmiddleware.New(
		jwtValidator.ValidateToken,
		jwtmiddleware.WithErrorHandler(errorHandler),
		jwtmiddleware.WithTokenExtractor(extractor),
	)

	return func(c *gin.Context) {
		authenticated := false
		var handler http.HandlerFunc = func(w http.ResponseWriter, r *http.Request) {
			claims := r.Context().Value(jwtmiddleware.ContextKey{}).(*validator.ValidatedClaims)
			token, _ := extractor(r)

			c.Request = r
			c.Set(UserIDKey, claims.RegisteredClaims.Subject)
			c.Set(ClaimsKey, claims)
			c.Set(AccessTokenKey, token)
			authenticated = true

			c.Next()
		}

		middleware.CheckJWT(handler).ServeHTTP(c.Writer, c.Request)
		if !authenticated {
			c.Abort()
		}
	}, nil
}

func newValidator(cfg *config.Config) (*validator.Validator, error) {
	customClaims := validator.WithCustomClaims(func() validator.CustomClaims {
		return &CustomClaims{}
	})
	audience := []string{cfg.Auth0Audience}

	if cfg.UsesSharedSecret() {
		secret := []byte(cfg.JWTSecret)
		keyFunc := func(context.Context) (interface{}, error) { return secret, nil }
		return validator.New(keyFunc, validator.HS256, cfg.JWTIssuer, audience, customClaims,
			validator.WithAllowedClockSkew(time.Minute))
	}

	issuerURL, err := issuerURL(cfg.Auth0Domain)
	if err != nil {
		return nil, fmt.Errorf("failed to parse the issuer url: %w", err)
	}
	provider := jwks.NewCachingProvider(issuerURL, 5*time.Minute)

	v, err := validator.New(provider.KeyFunc, validator.RS256, issuerURL.String(), audience, customClaims,
		validator.WithAllowedClockSkew(time.Minute))
	if err != nil {
		return nil, fmt.Errorf("failed to set up the jwt validator: %w", err)
	}
	return v, nil
}

func issuerURL(domain string) (*url.URL, error) {
	if !strings.HasPrefix(domain, "http://") && !strings.HasPrefix(domain, "https://") {
		domain = "https://" + domain
	}
	return url.Parse(strings.TrimRight(domain, "/") + "/")
}

// GetUserID extracts the user ID from the Gin context
func GetUserID(c *gin.Context) (string, error) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return "", &AuthError{Code: "MISSING_USER_ID", Message: "User ID not found in context"}
	}

	userIDStr, ok := userID.(string)
	if !ok || userIDStr == "" {
		return "", &AuthError{Code: "INVALID_USER_ID", Message: "User ID is not a string"}
	}

	return userIDStr, nil
}

// GetClaims extracts the validated JWT claims from the Gin context
func GetClaims(c *gin.Context) (*validator.ValidatedClaims, error) {
	claims, exists := c.Get(ClaimsKey)
	if !exists {
		return nil, &AuthError{Code: "MISSING_CLAIMS", Message: "Claims not found in context"}
	}

	validatedClaims, ok := claims.(*validator.ValidatedClaims)
	if !ok {
		return nil, &AuthError{Code: "INVALID_CLAIMS", Message: "Claims are not in the expected format"}
	}

	return validatedClaims, nil
}

// GetAccessToken returns the raw bearer token of the request
func GetAccessToken(c *gin.Context) (string, error) {
	token, exists := c.Get(AccessTokenKey)
	if !exists {
		return "", &AuthError{Code: "MISSING_TOKEN", Message: "Access token not found in context"}
	}
	tokenStr, ok := token.(string)
	if !ok || tokenStr == "" {
		return "", &AuthError{Code: "INVALID_TOKEN", Message: "Access token is not a string"}
	}
	return tokenStr, nil
}

// GetRole returns the role claim, lower-cased, or "" when the token has none
func GetRole(c *gin.Context) string {
	claims, err := GetClaims(c)
	if err != nil {
		return ""
	}
	custom, ok := claims.CustomClaims.(*CustomClaims)
	if !ok || custom == nil {
		return ""
	}
	return strings.ToLower(custom.Role)
}

// RequireScope is a middleware that checks if the token has a specific scope
func RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := GetClaims(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "MISSING_CLAIMS",
					"message": "Could not retrieve token claims",
				},
			})
			c.Abort()
			return
		}

		customClaims, ok := claims.CustomClaims.(*CustomClaims)
		if !ok || !customClaims.HasScope(scope) {
			c.JSON(http.StatusForbidden, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INSUFFICIENT_SCOPE",
					"message": "Insufficient permissions to access this resource",
				},
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// AuthError represents an authentication error
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}
