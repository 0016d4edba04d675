package handlers

import (
	"encoding/base64"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/example/id-verify/internal/auth"
	"github.com/example/id-verify/internal/fieldextract"
	"github.com/example/id-verify/internal/usecase"
)

// MaxUploadSize bounds one multipart verification request.
const MaxUploadSize = 32 << 20

// notProvided is the display value for fields absent from a document.
const notProvided = "Not provided"

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, uc *usecase.VerificationUseCase, authMiddleware gin.HandlerFunc) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authorized := router.Group("/", authMiddleware)

	authorized.POST("/verify", func(c *gin.Context) {
		userID, ok := auth.GetUserID(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authenticated subject"})
			return
		}

		if c.Request.ContentLength > MaxUploadSize {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request too large"})
			return
		}

		expectedAddress := c.PostForm("expected_address")
		if expectedAddress == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "expected_address is required"})
			return
		}

		form, err := c.MultipartForm()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form is required"})
			return
		}

		req := usecase.VerificationRequest{
			ExpectedAddress: expectedAddress,
			ModelHint:       c.PostForm("model"),
		}

		if raw := c.PostForm("threshold"); raw != "" {
			threshold, err := strconv.ParseFloat(raw, 64)
			if err != nil || threshold <= 0 || threshold > 1 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "threshold must be greater than 0 and at most 1"})
				return
			}
			req.Threshold = threshold
		}

		for _, header := range form.File["documents"] {
			data, err := readUpload(header)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unable to read document upload"})
				return
			}
			req.Documents = append(req.Documents, usecase.Document{
				Data:        data,
				ContentType: header.Header.Get("Content-Type"),
			})
		}

		req.LicensePhoto, err = readOptionalUpload(form, "license_photo")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unable to read license photo"})
			return
		}
		req.Selfie, err = readOptionalUpload(form, "selfie")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unable to read selfie"})
			return
		}

		result, err := uc.VerifyDocuments(c.Request.Context(), userID, req)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, renderResult(result))
	})

	authorized.GET("/result/:id", func(c *gin.Context) {
		userID, _ := auth.GetUserID(c.Request.Context())
		requestID := c.Param("id")

		log, err := uc.GetResult(c.Request.Context(), userID, requestID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"request_id":           log.RequestID,
			"user_id":              log.UserID,
			"verified":             log.Verified,
			"documents_consistent": log.DocumentsConsistent,
			"address_consistency":  log.AddressConsistency,
			"average_authenticity": log.AverageAuthenticity,
			"document_count":       log.DocumentCount,
			"details":              log.Details,
			"created_at":           log.CreatedAt,
		})
	})

	authorized.GET("/result/:id/duplicates", func(c *gin.Context) {
		userID, _ := auth.GetUserID(c.Request.Context())
		requestID := c.Param("id")

		report, err := uc.GetDuplicateReport(c.Request.Context(), userID, requestID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
			return
		}

		duplicates := make([]gin.H, 0, len(report.Duplicates))
		for _, dup := range report.Duplicates {
			duplicates = append(duplicates, gin.H{
				"request_id": dup.RequestID,
				"verified":   dup.Verified,
				"created_at": dup.CreatedAt,
			})
		}

		c.JSON(http.StatusOK, gin.H{
			"request_id": report.Request.RequestID,
			"sha1_hash":  report.Request.SHA1Hash,
			"duplicates": duplicates,
		})
	})

	authorized.GET("/metrics/summary", func(c *gin.Context) {
		summary, err := uc.GetMetricsSummary(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, summary)
	})
}

// renderResult serializes a verification result. Absent document fields are
// rendered with a display sentinel; inside the pipeline absence stays
// structural.
func renderResult(result *usecase.VerificationResult) gin.H {
	documents := make([]gin.H, 0, len(result.Documents))
	for _, rec := range result.Documents {
		documents = append(documents, gin.H{
			"index":              rec.Index,
			"name":               fieldOrNotProvided(rec.Fields, fieldextract.KeyName),
			"document_type":      fieldOrNotProvided(rec.Fields, fieldextract.KeyDocumentType),
			"address":            valueOr(rec.Address, "None"),
			"similarity":         rec.Similarity,
			"matched":            rec.Matched,
			"geocode_verified":   rec.GeocodeVerified,
			"normalized_address": valueOr(rec.NormalizedAddress, "None"),
			"authenticity_score": rec.AuthenticityScore,
		})
	}

	payload := gin.H{
		"request_id":           result.RequestID,
		"status":               result.Status,
		"verified":             result.Verified,
		"documents_consistent": result.DocumentsConsistent,
		"address_consistency":  result.AddressConsistency,
		"name_consistency":     result.NameConsistency,
		"average_authenticity": result.AverageAuthenticity,
		"documents":            documents,
	}

	if result.FaceMatch != nil {
		face := gin.H{
			"match":   result.FaceMatch.Match,
			"score":   result.FaceMatch.Score,
			"message": result.FaceMatch.Message,
		}
		if len(result.FaceMatch.FaceA) > 0 {
			face["face_a"] = base64.StdEncoding.EncodeToString(result.FaceMatch.FaceA)
		}
		if len(result.FaceMatch.FaceB) > 0 {
			face["face_b"] = base64.StdEncoding.EncodeToString(result.FaceMatch.FaceB)
		}
		payload["face_match"] = face
	}

	return payload
}

func fieldOrNotProvided(fields fieldextract.Fields, key string) string {
	if value, ok := fields.Lookup(key); ok {
		return value
	}
	return notProvided
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

func readOptionalUpload(form *multipart.Form, field string) ([]byte, error) {
	files := form.File[field]
	if len(files) == 0 {
		return nil, nil
	}
	return readUpload(files[0])
}
