// Package usecase orchestrates a multi-document identity verification run:
// per-document OCR and field extraction fanned out in parallel, face matching
// alongside, pairwise consistency, conditional geocoding, and one combined
// verdict.
package usecase

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/id-verify/internal/facematch"
	"github.com/example/id-verify/internal/fieldextract"
	"github.com/example/id-verify/internal/geocode"
	"github.com/example/id-verify/internal/logging"
	"github.com/example/id-verify/internal/repository"
	"github.com/example/id-verify/internal/similarity"
	"github.com/example/id-verify/internal/textextract"
)

// DefaultConsistencyThreshold is the minimum similarity for two addresses to
// count as the same place.
const DefaultConsistencyThreshold = 0.82

const (
	// StatusCompleted marks a run that went through every phase.
	StatusCompleted = "completed"

	// statusTooFewDocuments is the terminal status for requests that fail
	// validation before any processing.
	statusTooFewDocuments = "at least two documents are required"
)

// Document is one raw uploaded identity document.
type Document struct {
	Data        []byte
	ContentType string
}

// VerificationRequest carries everything one run needs.
type VerificationRequest struct {
	Documents       []Document
	ExpectedAddress string
	Threshold       float64 // zero means DefaultConsistencyThreshold
	ModelHint       string
	LicensePhoto    []byte
	Selfie          []byte
}

// DocumentRecord is the per-document outcome, owned by a single run.
type DocumentRecord struct {
	Index             int
	ExtractedText     string
	Fields            fieldextract.Fields
	Address           string // resolved address, empty when unresolved
	Similarity        float64
	Matched           bool
	GeocodeVerified   bool
	NormalizedAddress string
	AuthenticityScore float64
}

// VerificationResult aggregates everything a run produced. It is mutated in
// place through the phases and immutable once returned.
type VerificationResult struct {
	RequestID           string
	Status              string
	AddressConsistency  float64
	NameConsistency     float64
	DocumentsConsistent bool
	AverageAuthenticity float64
	Documents           []*DocumentRecord
	FaceMatch           *facematch.Outcome
	Verified            bool
	CreatedAt           time.Time
}

// VerificationRepository defines the persistence operations needed by the use case.
type VerificationRepository interface {
	SaveLog(ctx context.Context, log *repository.VerificationLog) error
	FindByRequestIDAndUser(ctx context.Context, requestID, userID string) (*repository.VerificationLog, error)
	FindDuplicatesByHash(ctx context.Context, userID, hash, excludeRequestID string) ([]*repository.VerificationLog, error)
	AggregateMetrics(ctx context.Context) (*repository.MetricsAggregation, error)
}

// FaceComparer is the face matching dependency. Compare never fails hard;
// internal errors become non-matching outcomes.
type FaceComparer interface {
	Compare(imageA, imageB []byte) facematch.Outcome
}

// VerificationUseCase encapsulates the verification pipeline and its
// supporting persistence and caching.
type VerificationUseCase struct {
	repo             VerificationRepository
	cache            Cache
	textExtractor    textextract.Extractor
	fieldExtractor   fieldextract.FieldExtractor
	addressExtractor fieldextract.AddressExtractor
	geocoder         geocode.Geocoder
	faceMatcher      FaceComparer
	logger           *zap.Logger
	retryAttempts    int
	initialBackoff   time.Duration
	maxBackoff       time.Duration
}

// NewVerificationUseCase constructs a new use case instance.
func NewVerificationUseCase(
	repo VerificationRepository,
	cache Cache,
	textExtractor textextract.Extractor,
	fieldExtractor fieldextract.FieldExtractor,
	addressExtractor fieldextract.AddressExtractor,
	geocoder geocode.Geocoder,
	faceMatcher FaceComparer,
	logger *zap.Logger,
) *VerificationUseCase {
	return &VerificationUseCase{
		repo:             repo,
		cache:            cache,
		textExtractor:    textExtractor,
		fieldExtractor:   fieldExtractor,
		addressExtractor: addressExtractor,
		geocoder:         geocoder,
		faceMatcher:      faceMatcher,
		logger:           logger.Named("verification_usecase"),
		retryAttempts:    3,
		initialBackoff:   50 * time.Millisecond,
		maxBackoff:       time.Second,
	}
}

// VerifyDocuments runs the full pipeline and always returns a complete,
// well-formed result; pipeline failures surface in the result's status with
// the verdict forced false, not as an error.
func (uc *VerificationUseCase) VerifyDocuments(ctx context.Context, userID string, req VerificationRequest) (*VerificationResult, error) {
	requestID := uuid.NewString()
	opLogger := logging.WithOperation(uc.logger, "usecase.verify_documents", requestID)

	result := &VerificationResult{
		RequestID: requestID,
		Status:    StatusCompleted,
		CreatedAt: time.Now().UTC(),
	}

	if len(req.Documents) < 2 {
		result.Status = statusTooFewDocuments
		opLogger.Warn("request rejected", zap.Int("document_count", len(req.Documents)))
		return result, nil
	}

	if req.Threshold <= 0 {
		req.Threshold = DefaultConsistencyThreshold
	}

	if err := uc.runPipeline(ctx, req, result, opLogger); err != nil {
		result.Status = err.Error()
		result.Verified = false
		opLogger.Error("verification pipeline failed", zap.Error(err))
	}

	uc.persistOutcome(ctx, userID, req, result, opLogger)
	return result, nil
}

// runPipeline executes phases 1 through 5. Any escaped error or panic is
// converted by the caller into a terminal failure status; records already
// attached to the result stay there for diagnostics.
func (uc *VerificationUseCase) runPipeline(ctx context.Context, req VerificationRequest, result *VerificationResult, opLogger *zap.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("verification aborted: %v", r)
		}
	}()

	records := make([]*DocumentRecord, len(req.Documents))
	for i := range records {
		records[i] = &DocumentRecord{Index: i + 1}
	}
	result.Documents = records

	// Face matching starts alongside document processing and is joined only
	// after geocoding, hiding its latency behind the document fan-out.
	var faceCh chan facematch.Outcome
	if uc.faceMatcher != nil && len(req.LicensePhoto) > 0 && len(req.Selfie) > 0 {
		faceCh = make(chan facematch.Outcome, 1)
		go func() {
			faceCh <- uc.faceMatcher.Compare(req.LicensePhoto, req.Selfie)
		}()
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range req.Documents {
		i := i
		g.Go(func() error {
			return uc.processDocument(gctx, req, records[i])
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// Pairwise consistency over the first two documents. Documents beyond
	// the second participate in per-document scoring only.
	first, second := records[0], records[1]
	addressScore, addressMatch := similarity.Score(first.Address, second.Address, req.Threshold)
	nameScore, _ := similarity.Score(nameOf(first), nameOf(second), 0)
	result.AddressConsistency = addressScore
	result.NameConsistency = nameScore
	result.DocumentsConsistent = addressMatch

	if addressMatch {
		uc.geocodeDocuments(ctx, records, req.Threshold)
	} else {
		// Geocoding is skipped entirely for inconsistent documents; each
		// record keeps its phase-1 self-similarity authenticity and shows
		// its own resolved address as the normalized one.
		for _, rec := range records {
			rec.GeocodeVerified = false
			rec.NormalizedAddress = rec.Address
		}
		opLogger.Info("documents inconsistent, geocoding skipped",
			zap.Float64("address_consistency", addressScore))
	}

	if faceCh != nil {
		outcome := <-faceCh
		result.FaceMatch = &outcome
	}

	verdict := result.DocumentsConsistent && result.AddressConsistency >= req.Threshold
	total := 0.0
	for _, rec := range records {
		total += rec.AuthenticityScore
		if !rec.Matched || !rec.GeocodeVerified {
			verdict = false
		}
	}
	if result.FaceMatch != nil && !result.FaceMatch.Match {
		verdict = false
	}
	result.AverageAuthenticity = total / float64(len(records))
	result.Verified = verdict
	return nil
}

// processDocument runs phase 1 for one document: OCR, then field and address
// extraction concurrently against the same text, then similarity against the
// expected address. Geocoding is deferred until consistency is known.
func (uc *VerificationUseCase) processDocument(ctx context.Context, req VerificationRequest, rec *DocumentRecord) error {
	doc := req.Documents[rec.Index-1]
	text, err := uc.textExtractor.ExtractText(ctx, doc.Data, doc.ContentType)
	if err != nil {
		return logging.NewOperationError("usecase.extract_text", fmt.Sprintf("document-%d", rec.Index), err)
	}
	rec.ExtractedText = text

	// The two extraction calls are independent reads of the same text.
	var wg sync.WaitGroup
	var fields fieldextract.Fields
	var address string
	wg.Add(2)
	go func() {
		defer wg.Done()
		fields = uc.fieldExtractor.ExtractFields(ctx, text, req.ModelHint)
	}()
	go func() {
		defer wg.Done()
		address = uc.addressExtractor.ExtractAddress(ctx, text, req.ModelHint)
	}()
	wg.Wait()

	rec.Fields = fields
	if address == "" {
		if fromFields, ok := fields.Lookup(fieldextract.KeyAddress); ok {
			address = fromFields
		}
	}
	rec.Address = address

	rec.Similarity, rec.Matched = similarity.Score(rec.Address, req.ExpectedAddress, req.Threshold)
	rec.GeocodeVerified = false
	rec.NormalizedAddress = rec.Address

	// Self-similarity stands in for authenticity until geocoding runs: 1.0
	// for a resolved address, 0 for an unresolved one.
	rec.AuthenticityScore, _ = similarity.Score(rec.Address, rec.Address, req.Threshold)
	return nil
}

// geocodeDocuments runs phase 3: every document's resolved address is
// validated in parallel and authenticity is recomputed against the
// geocoder's normalized form. The geocoder contract never fails.
func (uc *VerificationUseCase) geocodeDocuments(ctx context.Context, records []*DocumentRecord, threshold float64) {
	var wg sync.WaitGroup
	for _, rec := range records {
		rec := rec
		wg.Add(1)
		go func() {
			defer wg.Done()
			verified := uc.geocoder.Verify(ctx, rec.Address)
			rec.GeocodeVerified = verified.Verified
			rec.NormalizedAddress = verified.NormalizedAddress
			rec.AuthenticityScore, _ = similarity.Score(rec.Address, verified.NormalizedAddress, threshold)
		}()
	}
	wg.Wait()
}

func nameOf(rec *DocumentRecord) string {
	name, _ := rec.Fields.Lookup(fieldextract.KeyName)
	return name
}

// persistOutcome writes the verdict to the log table and the cache. Both are
// best-effort: the verdict already exists, so storage failures are logged
// and do not disturb the caller's result.
func (uc *VerificationUseCase) persistOutcome(ctx context.Context, userID string, req VerificationRequest, result *VerificationResult, opLogger *zap.Logger) {
	hash := sha1.Sum(req.Documents[0].Data)
	log := &repository.VerificationLog{
		RequestID:           result.RequestID,
		UserID:              userID,
		Verified:            result.Verified,
		DocumentsConsistent: result.DocumentsConsistent,
		AddressConsistency:  result.AddressConsistency,
		AverageAuthenticity: result.AverageAuthenticity,
		DocumentCount:       len(req.Documents),
		SHA1Hash:            hex.EncodeToString(hash[:]),
		Details:             fmt.Sprintf("status:%s verified:%t consistent:%t", result.Status, result.Verified, result.DocumentsConsistent),
		CreatedAt:           result.CreatedAt,
	}
	if err := uc.repo.SaveLog(ctx, log); err != nil {
		opLogger.Error("failed to persist verification log", zap.Error(err))
	}

	cached := cachedVerification{
		RequestID:           result.RequestID,
		UserID:              userID,
		Status:              result.Status,
		Verified:            result.Verified,
		DocumentsConsistent: result.DocumentsConsistent,
		AddressConsistency:  result.AddressConsistency,
		AverageAuthenticity: result.AverageAuthenticity,
		DocumentCount:       len(req.Documents),
		Hash:                log.SHA1Hash,
		CreatedAt:           result.CreatedAt,
	}
	serialized, err := json.Marshal(cached)
	if err != nil {
		opLogger.Error("failed to serialize verification result", zap.Error(err))
		return
	}
	cacheKey := cacheKeyFor(result.RequestID)
	if err := uc.withRedisRetry(ctx, result.RequestID, "cache.set.result", func() error {
		return uc.cache.Set(ctx, cacheKey, string(serialized), 5*time.Minute)
	}); err != nil {
		opLogger.Error("failed to cache verification result", zap.Error(err))
	}
}

type cachedVerification struct {
	RequestID           string    `json:"request_id"`
	UserID              string    `json:"user_id"`
	Status              string    `json:"status"`
	Verified            bool      `json:"verified"`
	DocumentsConsistent bool      `json:"documents_consistent"`
	AddressConsistency  float64   `json:"address_consistency"`
	AverageAuthenticity float64   `json:"average_authenticity"`
	DocumentCount       int       `json:"document_count"`
	Hash                string    `json:"sha1_hash"`
	CreatedAt           time.Time `json:"created_at"`
}

func cacheKeyFor(requestID string) string {
	return fmt.Sprintf("verification:%s", requestID)
}

// GetResult retrieves a cached verification outcome or loads from persistence.
func (uc *VerificationUseCase) GetResult(ctx context.Context, userID, requestID string) (*repository.VerificationLog, error) {
	cacheKey := cacheKeyFor(requestID)
	if cached, err := uc.withRedisGet(ctx, requestID, "cache.get.result", cacheKey); err == nil {
		var payload cachedVerification
		if err := json.Unmarshal([]byte(cached), &payload); err != nil {
			logging.WithOperation(uc.logger, "usecase.get_result", requestID).Warn("failed to decode cached result", zap.Error(err))
		} else {
			log := &repository.VerificationLog{
				RequestID:           requestID,
				UserID:              userID,
				Verified:            payload.Verified,
				DocumentsConsistent: payload.DocumentsConsistent,
				AddressConsistency:  payload.AddressConsistency,
				AverageAuthenticity: payload.AverageAuthenticity,
				DocumentCount:       payload.DocumentCount,
				SHA1Hash:            payload.Hash,
				Details:             payload.Status,
				CreatedAt:           payload.CreatedAt,
			}
			if payload.UserID != "" {
				log.UserID = payload.UserID
			}
			if payload.RequestID != "" {
				log.RequestID = payload.RequestID
			}
			return log, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		logging.WithOperation(uc.logger, "usecase.get_result", requestID).Warn("failed to read cache", zap.Error(err))
	}

	return uc.repo.FindByRequestIDAndUser(ctx, requestID, userID)
}

// DuplicateReport represents duplicate verification entries for a request.
type DuplicateReport struct {
	Request    *repository.VerificationLog
	Duplicates []*repository.VerificationLog
}

// GetDuplicateReport lists earlier submissions of the same first document by
// the same user.
func (uc *VerificationUseCase) GetDuplicateReport(ctx context.Context, userID, requestID string) (*DuplicateReport, error) {
	log, err := uc.repo.FindByRequestIDAndUser(ctx, requestID, userID)
	if err != nil {
		return nil, err
	}

	duplicates, err := uc.repo.FindDuplicatesByHash(ctx, userID, log.SHA1Hash, log.RequestID)
	if err != nil {
		return nil, err
	}

	return &DuplicateReport{Request: log, Duplicates: duplicates}, nil
}

func (uc *VerificationUseCase) withRedisRetry(ctx context.Context, requestID, operation string, fn func() error) error {
	if uc.retryAttempts <= 1 {
		return logging.NewOperationError(operation, requestID, fn())
	}

	backoff := uc.initialBackoff
	opLogger := logging.WithOperation(uc.logger, operation, requestID)
	var err error
	for attempt := 0; attempt < uc.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= uc.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("redis operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if !logging.IsTransientError(err) || attempt == uc.retryAttempts-1 {
			opLogger.Error("redis operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			return logging.NewOperationError(operation, requestID, err)
		}

		opLogger.Warn("transient redis error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, requestID, err)
}

func (uc *VerificationUseCase) withRedisGet(ctx context.Context, requestID, operation, cacheKey string) (string, error) {
	var result string
	var miss bool
	err := uc.withRedisRetry(ctx, requestID, operation, func() error {
		value, err := uc.cache.Get(ctx, cacheKey)
		if err != nil {
			// A plain miss is expected traffic, not a failure worth
			// retrying or logging.
			if errors.Is(err, redis.Nil) {
				miss = true
				return nil
			}
			return err
		}
		result = value
		return nil
	})
	if err != nil {
		return "", err
	}
	if miss {
		return "", redis.Nil
	}
	return result, nil
}
