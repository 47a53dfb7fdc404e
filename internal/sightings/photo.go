package sightings

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tphakala/birdtarifa/internal/api"
	"github.com/tphakala/birdtarifa/internal/errors"
	"github.com/tphakala/birdtarifa/internal/logger"
)

// cleanupTimeout bounds the compensating delete when the caller's context is gone.
const cleanupTimeout = 10 * time.Second

// PhotoBackend is the part of the backend the upload workflow needs.
type PhotoBackend interface {
	UploadPhoto(ctx context.Context, f api.File) (*api.PhotoUpload, error)
	DeletePhoto(ctx context.Context, key string) (bool, error)
}

// PhotoUploader uploads photos and deletes them again on request.
// Busy reports true while either operation is in flight.
type PhotoUploader struct {
	backend PhotoBackend
	log     logger.Logger

	inFlight atomic.Int32

	mu  sync.RWMutex
	err string
}

// NewPhotoUploader creates an uploader over backend.
func NewPhotoUploader(backend PhotoBackend, log logger.Logger) *PhotoUploader {
	return &PhotoUploader{
		backend: backend,
		log:     logger.OrDiscard(log).Module("photo"),
	}
}

// Upload sends f and returns its durable URL and storage key. Any failure,
// including an interrupted transfer, fails the whole upload.
func (u *PhotoUploader) Upload(ctx context.Context, f api.File) (*api.PhotoUpload, error) {
	u.inFlight.Add(1)
	defer u.inFlight.Add(-1)
	u.setErr("")

	start := time.Now()
	result, err := u.backend.UploadPhoto(ctx, f)
	if err == nil && (result == nil || result.Key == "" || result.PhotoURL == "") {
		err = errors.Newf("backend returned an incomplete upload result").
			Component("sightings").
			Category(errors.CategoryDecode).
			Build()
	}
	if err != nil {
		u.setErr(api.Message(err))
		u.log.Warn("Photo upload failed",
			logger.String("file", f.Name),
			logger.Error(err),
			logger.Duration("elapsed", time.Since(start)))
		return nil, errors.New(fmt.Errorf("photo upload failed: %w", err)).
			Component("sightings").
			Category(errors.CategoryUpload).
			Context("file", f.Name).
			Context("content_type", f.ContentType).
			Build()
	}

	u.log.Info("Photo uploaded",
		logger.String("key", result.Key),
		logger.Int64("size_bytes", result.SizeBytes),
		logger.Duration("elapsed", time.Since(start)))
	return result, nil
}

// Remove deletes an uploaded photo. Failures are recorded in Err and logged,
// never returned; the remote object may still exist afterwards.
func (u *PhotoUploader) Remove(ctx context.Context, key string) {
	u.inFlight.Add(1)
	defer u.inFlight.Add(-1)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	deleted, err := u.backend.DeletePhoto(ctx, key)
	if err != nil {
		u.setErr(api.Message(err))
		cleanupErr := errors.New(err).
			Component("sightings").
			Category(errors.CategoryCleanup).
			Context("key", key).
			Build()
		u.log.Warn("Failed to clean up uploaded photo", logger.String("key", key), logger.Error(cleanupErr))
		return
	}
	if !deleted {
		u.log.Debug("Uploaded photo was already gone", logger.String("key", key))
		return
	}
	u.log.Info("Removed orphaned photo", logger.String("key", key))
}

// Busy reports whether an upload or removal is in flight.
func (u *PhotoUploader) Busy() bool {
	return u.inFlight.Load() > 0
}

// Err returns the last upload or cleanup failure message, or "".
func (u *PhotoUploader) Err() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.err
}

// ClearErr resets the recorded failure.
func (u *PhotoUploader) ClearErr() {
	u.setErr("")
}

func (u *PhotoUploader) setErr(msg string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.err = msg
}
