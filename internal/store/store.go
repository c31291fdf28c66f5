package store

import (
	"context"
	"strings"
	"time"

	"flowscope/internal/apperr"
)

// Store is CRUD plus filtered scans over users, health samples and reports.
//
// List operations take a limit; limit <= 0 returns every match.
// Missing ids yield an *apperr.NotFoundError.
type Store interface {
	CreateUser(ctx context.Context, u User) (User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)

	CreateHealthSample(ctx context.Context, s HealthSample) (HealthSample, error)
	// GetSamplesForUser returns samples newest first.
	GetSamplesForUser(ctx context.Context, userID int64, limit int) ([]HealthSample, error)
	GetLatestSample(ctx context.Context, userID int64) (HealthSample, error)
	// GetSamplesInRange returns samples with start <= timestamp <= end, oldest first.
	GetSamplesInRange(ctx context.Context, userID int64, start, end time.Time) ([]HealthSample, error)
	// DeleteSamplesBefore removes samples older than cutoff.
	DeleteSamplesBefore(ctx context.Context, cutoff time.Time) (Pruned, error)

	CreateReport(ctx context.Context, r Report) (Report, error)
	// GetReportsForUser returns reports newest first.
	GetReportsForUser(ctx context.Context, userID int64, limit int) ([]Report, error)
	GetReportByID(ctx context.Context, id int64) (Report, error)

	Stats(ctx context.Context) (Stats, error)
}

// Options toggles constraints that are off by default.
type Options struct {
	// EnforceUniqueUsername rejects CreateUser when username or email is taken.
	EnforceUniqueUsername bool
}

func validateUser(u User) error {
	var fields []apperr.FieldError
	if strings.TrimSpace(u.Username) == "" {
		fields = append(fields, apperr.FieldError{Field: "username", Message: "is required"})
	}
	if strings.TrimSpace(u.Email) == "" {
		fields = append(fields, apperr.FieldError{Field: "email", Message: "is required"})
	}
	if len(fields) > 0 {
		return apperr.Invalid("Invalid user", fields...)
	}
	return nil
}

func validateSample(s HealthSample) error {
	if !s.HealthStatus.Valid() {
		return apperr.Invalid("Invalid health data",
			apperr.FieldError{Field: "healthStatus", Message: "must be one of healthy concerning critical"})
	}
	if s.Timestamp.IsZero() {
		return apperr.Invalid("Invalid health data",
			apperr.FieldError{Field: "timestamp", Message: "is required"})
	}
	return nil
}

func validateReport(r Report) error {
	if !r.HealthStatus.Valid() {
		return apperr.Invalid("Invalid report data",
			apperr.FieldError{Field: "healthStatus", Message: "must be one of healthy concerning critical"})
	}
	if r.CreatedAt.IsZero() {
		return apperr.Invalid("Invalid report data",
			apperr.FieldError{Field: "createdAt", Message: "is required"})
	}
	return nil
}

func usernameTaken() error {
	return apperr.Invalid("Invalid user",
		apperr.FieldError{Field: "username", Message: "username or email already exists"})
}
