package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"flowscope/internal/apperr"
	"flowscope/internal/metrics"
)

// MemoryStore is a concurrency-safe, volatile Store.
//
// Each collection has its own RWMutex and id counter; ids start at 1 and are
// never reused. Lists are linear scans over the whole collection, which is
// fine for demo-sized data. Lock order is users before samples or reports.
type MemoryStore struct {
	opts    Options
	metrics *metrics.Registry

	usersMu    sync.RWMutex
	users      map[int64]User
	nextUserID int64

	samplesMu    sync.RWMutex
	samples      map[int64]HealthSample
	nextSampleID int64

	reportsMu    sync.RWMutex
	reports      map[int64]Report
	nextReportID int64
}

// NewMemoryStore initializes an empty store.
func NewMemoryStore(opts Options, metricsRegistry *metrics.Registry) *MemoryStore {
	return &MemoryStore{
		opts:         opts,
		metrics:      metricsRegistry,
		users:        make(map[int64]User),
		nextUserID:   1,
		samples:      make(map[int64]HealthSample),
		nextSampleID: 1,
		reports:      make(map[int64]Report),
		nextReportID: 1,
	}
}

/* ---------------- users ---------------- */

func (s *MemoryStore) CreateUser(_ context.Context, u User) (User, error) {
	if err := validateUser(u); err != nil {
		return User{}, err
	}

	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	if s.opts.EnforceUniqueUsername {
		for _, existing := range s.users {
			if existing.Username == u.Username || strings.EqualFold(existing.Email, u.Email) {
				return User{}, usernameTaken()
			}
		}
	}

	u.ID = s.nextUserID
	s.nextUserID++
	s.users[u.ID] = u

	s.metrics.Inc(metrics.UsersCreatedTotal)
	return u, nil
}

func (s *MemoryStore) GetUser(_ context.Context, id int64) (User, error) {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return User{}, apperr.NotFound("user", id)
	}
	return u, nil
}

// GetUserByUsername returns the lowest-id match, since uniqueness may not be enforced.
func (s *MemoryStore) GetUserByUsername(_ context.Context, username string) (User, error) {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()

	matches := lo.Filter(lo.Values(s.users), func(u User, _ int) bool {
		return u.Username == username
	})
	if len(matches) == 0 {
		return User{}, apperr.NotFound("user", username)
	}
	return lo.MinBy(matches, func(a, b User) bool { return a.ID < b.ID }), nil
}

func (s *MemoryStore) userExists(id int64) bool {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	_, ok := s.users[id]
	return ok
}

/* ---------------- health samples ---------------- */

func (s *MemoryStore) CreateHealthSample(_ context.Context, sample HealthSample) (HealthSample, error) {
	if err := validateSample(sample); err != nil {
		return HealthSample{}, err
	}
	if !s.userExists(sample.UserID) {
		return HealthSample{}, apperr.NotFound("user", sample.UserID)
	}

	s.samplesMu.Lock()
	defer s.samplesMu.Unlock()

	sample = cloneSample(sample)
	sample.ID = s.nextSampleID
	s.nextSampleID++
	s.samples[sample.ID] = sample

	s.metrics.Inc(metrics.SamplesCreatedTotal)
	return cloneSample(sample), nil
}

func (s *MemoryStore) GetSamplesForUser(_ context.Context, userID int64, limit int) ([]HealthSample, error) {
	s.samplesMu.RLock()
	out := s.filterSamples(func(h HealthSample) bool { return h.UserID == userID })
	s.samplesMu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID
	})
	return truncate(out, limit), nil
}

func (s *MemoryStore) GetLatestSample(ctx context.Context, userID int64) (HealthSample, error) {
	latest, err := s.GetSamplesForUser(ctx, userID, 1)
	if err != nil {
		return HealthSample{}, err
	}
	if len(latest) == 0 {
		return HealthSample{}, apperr.NotFound("health data for user", userID)
	}
	return latest[0], nil
}

func (s *MemoryStore) GetSamplesInRange(_ context.Context, userID int64, start, end time.Time) ([]HealthSample, error) {
	s.samplesMu.RLock()
	out := s.filterSamples(func(h HealthSample) bool {
		return h.UserID == userID && !h.Timestamp.Before(start) && !h.Timestamp.After(end)
	})
	s.samplesMu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) DeleteSamplesBefore(_ context.Context, cutoff time.Time) (Pruned, error) {
	s.samplesMu.Lock()
	defer s.samplesMu.Unlock()

	var out Pruned
	users := make(map[int64]struct{})
	for id, h := range s.samples {
		if h.Timestamp.Before(cutoff) {
			delete(s.samples, id)
			users[h.UserID] = struct{}{}
			out.Samples++
		}
	}
	out.UserIDs = lo.Keys(users)
	sort.Slice(out.UserIDs, func(i, j int) bool { return out.UserIDs[i] < out.UserIDs[j] })
	return out, nil
}

// filterSamples must be called with samplesMu held.
func (s *MemoryStore) filterSamples(keep func(HealthSample) bool) []HealthSample {
	out := make([]HealthSample, 0)
	for _, h := range s.samples {
		if keep(h) {
			out = append(out, cloneSample(h))
		}
	}
	return out
}

/* ---------------- reports ---------------- */

func (s *MemoryStore) CreateReport(_ context.Context, r Report) (Report, error) {
	if err := validateReport(r); err != nil {
		return Report{}, err
	}
	if !s.userExists(r.UserID) {
		return Report{}, apperr.NotFound("user", r.UserID)
	}

	s.reportsMu.Lock()
	defer s.reportsMu.Unlock()

	r = cloneReport(r)
	r.ID = s.nextReportID
	s.nextReportID++
	s.reports[r.ID] = r

	s.metrics.Inc(metrics.ReportsCreatedTotal)
	return cloneReport(r), nil
}

func (s *MemoryStore) GetReportsForUser(_ context.Context, userID int64, limit int) ([]Report, error) {
	s.reportsMu.RLock()
	out := make([]Report, 0)
	for _, r := range s.reports {
		if r.UserID == userID {
			out = append(out, cloneReport(r))
		}
	}
	s.reportsMu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return truncate(out, limit), nil
}

func (s *MemoryStore) GetReportByID(_ context.Context, id int64) (Report, error) {
	s.reportsMu.RLock()
	defer s.reportsMu.RUnlock()

	r, ok := s.reports[id]
	if !ok {
		return Report{}, apperr.NotFound("report", id)
	}
	return cloneReport(r), nil
}

func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.usersMu.RLock()
	users := len(s.users)
	s.usersMu.RUnlock()

	s.samplesMu.RLock()
	samples := len(s.samples)
	s.samplesMu.RUnlock()

	s.reportsMu.RLock()
	reports := len(s.reports)
	s.reportsMu.RUnlock()

	return Stats{Users: users, Samples: samples, Reports: reports}, nil
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
