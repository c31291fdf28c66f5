package seed

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"flowscope/internal/apperr"
	"flowscope/internal/store"
	"flowscope/internal/vitals"
)

// Fixture is the YAML seed document.
type Fixture struct {
	Users []UserFixture `yaml:"users"`
}

type UserFixture struct {
	Username  string          `yaml:"username"`
	Password  string          `yaml:"password"`
	FirstName string          `yaml:"firstName"`
	LastName  string          `yaml:"lastName"`
	Email     string          `yaml:"email"`
	Samples   []SampleFixture `yaml:"samples"`
}

// SampleFixture is one reading. HealthStatus may be omitted; it is then
// derived from the vitals.
type SampleFixture struct {
	Timestamp              time.Time        `yaml:"timestamp"`
	HeartRate              *int             `yaml:"heartRate"`
	BloodOxygen            *int             `yaml:"bloodOxygen"`
	BloodPressureSystolic  *int             `yaml:"bloodPressureSystolic"`
	BloodPressureDiastolic *int             `yaml:"bloodPressureDiastolic"`
	RespiratoryRate        *int             `yaml:"respiratoryRate"`
	RecoveryRate           *int             `yaml:"recoveryRate"`
	HealthStatus           string           `yaml:"healthStatus"`
	ECGData                []store.ECGPoint `yaml:"ecgData"`
}

// Result counts what Apply created.
type Result struct {
	Users   int
	Samples int
	// Skipped counts fixture users whose username already existed.
	Skipped int
}

// DemoUser is the account every fresh in-memory deployment starts with.
func DemoUser() store.User {
	return store.User{
		Username:  "demo",
		Password:  "password",
		FirstName: "John",
		LastName:  "Doe",
		Email:     "john.doe@example.com",
	}
}

// LoadFile reads and parses a fixture file.
func LoadFile(path string) (Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (Fixture, error) {
	var fx Fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return Fixture{}, fmt.Errorf("parse seed file: %w", err)
	}
	return fx, nil
}

// EnsureDemo creates the demo user unless an account with its username exists.
func EnsureDemo(ctx context.Context, st store.Store) (store.User, bool, error) {
	demo := DemoUser()
	existing, err := st.GetUserByUsername(ctx, demo.Username)
	if err == nil {
		return existing, false, nil
	}
	if !apperr.IsNotFound(err) {
		return store.User{}, false, err
	}
	u, err := st.CreateUser(ctx, demo)
	if err != nil {
		return store.User{}, false, err
	}
	return u, true, nil
}

// Apply inserts every user of fx with their samples. Users whose username
// already exists are left alone, so applying the same fixture twice is a no-op.
func Apply(ctx context.Context, st store.Store, fx Fixture, logger *zap.Logger) (Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var res Result
	for _, uf := range fx.Users {
		_, err := st.GetUserByUsername(ctx, uf.Username)
		if err == nil {
			logger.Debug("seed user exists, skipping", zap.String("username", uf.Username))
			res.Skipped++
			continue
		}
		if !apperr.IsNotFound(err) {
			return res, fmt.Errorf("seed user %q: %w", uf.Username, err)
		}

		u, err := st.CreateUser(ctx, store.User{
			Username:  uf.Username,
			Password:  uf.Password,
			FirstName: uf.FirstName,
			LastName:  uf.LastName,
			Email:     uf.Email,
		})
		if err != nil {
			return res, fmt.Errorf("seed user %q: %w", uf.Username, err)
		}
		res.Users++

		for i, sf := range uf.Samples {
			sample, err := sf.toSample(u.ID)
			if err != nil {
				return res, fmt.Errorf("seed user %q sample %d: %w", uf.Username, i, err)
			}
			if _, err := st.CreateHealthSample(ctx, sample); err != nil {
				return res, fmt.Errorf("seed user %q sample %d: %w", uf.Username, i, err)
			}
			res.Samples++
		}
		logger.Debug("seeded user", zap.String("username", u.Username), zap.Int("samples", len(uf.Samples)))
	}

	logger.Info("seed applied",
		zap.Int("users", res.Users),
		zap.Int("samples", res.Samples),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

func (sf SampleFixture) toSample(userID int64) (store.HealthSample, error) {
	s := store.HealthSample{
		UserID:                 userID,
		Timestamp:              sf.Timestamp,
		ECGData:                sf.ECGData,
		HeartRate:              sf.HeartRate,
		BloodOxygen:            sf.BloodOxygen,
		BloodPressureSystolic:  sf.BloodPressureSystolic,
		BloodPressureDiastolic: sf.BloodPressureDiastolic,
		RespiratoryRate:        sf.RespiratoryRate,
		RecoveryRate:           sf.RecoveryRate,
	}
	if sf.HealthStatus == "" {
		s.HealthStatus = vitals.ReadingStatus(s.Reading())
		return s, nil
	}
	status, err := vitals.ParseStatus(sf.HealthStatus)
	if err != nil {
		return store.HealthSample{}, err
	}
	s.HealthStatus = status
	return s, nil
}
