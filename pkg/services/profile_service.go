package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-quality/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-quality/pkg/metrics"
	"github.com/ekaya-inc/ekaya-quality/pkg/models"
)

// ProfileOptions are per-run options for Profile.
type ProfileOptions struct {
	IncludeSamples bool
	SampleRows     int
	// Previous, when set, is compared against the new profile to produce
	// schema shifts and anomalies. It is not modified.
	Previous *models.TableProfile
}

// Comparison is the result of comparing two profiles.
type Comparison struct {
	SchemaShifts []models.SchemaShift `json:"schema_shifts"`
	Anomalies    []models.Anomaly     `json:"anomalies"`
}

// ProfileService produces table profiles and compares them with prior runs.
type ProfileService interface {
	// Profile collects a fresh profile of table and, when opts.Previous is
	// set, attaches its comparison against the previous profile.
	Profile(ctx context.Context, exec datasource.QueryExecutor, table string, opts ProfileOptions) (*models.TableProfile, error)

	// Compare reports schema shifts and anomalies between two profiles.
	Compare(previous, current *models.TableProfile) Comparison
}

type profileService struct {
	collector  StatisticsCollector
	thresholds AnomalyThresholds
	logger     *zap.Logger
}

// NewProfileService creates a ProfileService.
func NewProfileService(collector StatisticsCollector, thresholds AnomalyThresholds, logger *zap.Logger) ProfileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &profileService{
		collector:  collector,
		thresholds: thresholds,
		logger:     logger.Named("profile"),
	}
}

var _ ProfileService = (*profileService)(nil)

func (s *profileService) Profile(
	ctx context.Context,
	exec datasource.QueryExecutor,
	table string,
	opts ProfileOptions,
) (*models.TableProfile, error) {
	if opts.Previous != nil {
		if err := opts.Previous.Validate(); err != nil {
			return nil, fmt.Errorf("previous profile: %w", err)
		}
	}

	profile, err := s.collector.Collect(ctx, exec, table, CollectOptions{
		IncludeSamples: opts.IncludeSamples,
		SampleRows:     opts.SampleRows,
	})
	if err != nil {
		return nil, err
	}

	if opts.Previous != nil {
		cmp := s.Compare(opts.Previous, profile)
		profile.SchemaShifts = cmp.SchemaShifts
		profile.Anomalies = cmp.Anomalies
	}
	return profile, nil
}

func (s *profileService) Compare(previous, current *models.TableProfile) Comparison {
	cmp := Comparison{
		SchemaShifts: DetectSchemaShifts(previous, current),
		Anomalies:    DetectAnomalies(previous, current, s.thresholds),
	}
	for _, a := range cmp.Anomalies {
		metrics.AnomaliesDetected.WithLabelValues(string(a.Severity)).Inc()
	}
	if len(cmp.SchemaShifts) > 0 || len(cmp.Anomalies) > 0 {
		s.logger.Info("Profile changed since previous run",
			zap.String("table", current.Table),
			zap.Int("schema_shifts", len(cmp.SchemaShifts)),
			zap.Int("anomalies", len(cmp.Anomalies)))
	}
	return cmp
}
