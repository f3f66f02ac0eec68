package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/example/fmd-gateway/internal/usecase"
)

// UploadField is the multipart field name the client must use for the image.
const UploadField = "image"

// DefaultMaxUploadSize caps uploads when no configured limit is supplied.
const DefaultMaxUploadSize = 10 << 20

// RegisterRoutes wires the HTTP handlers to the Gin router. authMiddleware
// may be nil, in which case /predict is open, matching the default contract.
func RegisterRoutes(router *gin.Engine, uc *usecase.PredictionUseCase, maxUploadBytes int64, authMiddleware gin.HandlerFunc) {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadSize
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	predict := predictHandler(uc, maxUploadBytes)
	if authMiddleware != nil {
		router.POST("/predict", authMiddleware, predict)
	} else {
		router.POST("/predict", predict)
	}
}

func predictHandler(uc *usecase.PredictionUseCase, maxUploadBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		file, err := c.FormFile(UploadField)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No image file provided"})
			return
		}
		if file.Size > maxUploadBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Uploaded file is too large."})
			return
		}

		src, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No image file provided"})
			return
		}
		defer src.Close()

		payload, err := uc.Predict(c.Request.Context(), file.Filename, src)
		if err != nil {
			respondPredictionError(c, err)
			return
		}

		c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
	}
}

// respondPredictionError maps each failure kind to its fixed response.
// Exactly one branch applies; the default covers kinds that cannot occur.
func respondPredictionError(c *gin.Context, err error) {
	var predErr *usecase.PredictionError
	if !errors.As(err, &predErr) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An error occurred during prediction.", "details": err.Error()})
		return
	}

	switch predErr.Kind {
	case usecase.KindStorage:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server failed to save the uploaded file."})
	case usecase.KindBadOutput:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to parse prediction result."})
	case usecase.KindTimeout:
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Classifier timed out."})
	case usecase.KindOverflow:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Classifier produced too much output."})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An error occurred during prediction.", "details": predErr.Details})
	}
}
