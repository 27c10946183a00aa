package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-quality/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-quality/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-quality/pkg/logging"
	"github.com/ekaya-inc/ekaya-quality/pkg/metrics"
	"github.com/ekaya-inc/ekaya-quality/pkg/models"
	sqlcheck "github.com/ekaya-inc/ekaya-quality/pkg/sql"
)

// DefaultMaxRules is the batch limit used when ValidationConfig.MaxRules is zero.
const DefaultMaxRules = 500

// ValidationConfig bounds rule evaluation.
type ValidationConfig struct {
	// MaxRules is the largest batch Evaluate accepts. Zero uses
	// DefaultMaxRules; a negative value disables the limit.
	MaxRules int
}

// DefaultValidationConfig returns the validation defaults.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{MaxRules: DefaultMaxRules}
}

// ValidationService evaluates validation rules and derives default rules from profiles.
type ValidationService interface {
	// Evaluate runs each rule's query and compares the scalar result with the
	// rule's expected value. Results are returned in rule order. A malformed
	// batch fails before any query runs; a failing rule only fails its own
	// result.
	Evaluate(ctx context.Context, exec datasource.QueryExecutor, rules []models.ValidationRule) ([]models.ValidationResult, error)

	// SynthesizeDefaults derives a deterministic rule set from a profile.
	SynthesizeDefaults(profile *models.TableProfile) ([]models.ValidationRule, error)
}

type validationService struct {
	config ValidationConfig
	logger *zap.Logger
}

// NewValidationService creates a ValidationService.
func NewValidationService(config ValidationConfig, logger *zap.Logger) ValidationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxRules == 0 {
		config.MaxRules = DefaultMaxRules
	}
	return &validationService{
		config: config,
		logger: logger.Named("validation"),
	}
}

var _ ValidationService = (*validationService)(nil)

func (s *validationService) Evaluate(
	ctx context.Context,
	exec datasource.QueryExecutor,
	rules []models.ValidationRule,
) ([]models.ValidationResult, error) {
	if s.config.MaxRules > 0 && len(rules) > s.config.MaxRules {
		return nil, fmt.Errorf("%w: %d rules exceeds the limit of %d", apperrors.ErrMalformedRule, len(rules), s.config.MaxRules)
	}
	if err := models.ValidateRules(rules); err != nil {
		return nil, err
	}

	queries := make([]string, len(rules))
	for i, rule := range rules {
		q, err := sqlcheck.NormalizeStatement(rule.Query)
		if err != nil {
			return nil, fmt.Errorf("%w: rule %q: %w", apperrors.ErrMalformedRule, rule.Name, err)
		}
		queries[i] = q
	}

	results := make([]models.ValidationResult, 0, len(rules))
	var passed, failed int
	for i, rule := range rules {
		result, err := s.evaluateRule(ctx, exec, rule.WithDefaults(), queries[i])
		if err != nil {
			return nil, err
		}
		switch {
		case result.Error != "":
			metrics.RuleResults.WithLabelValues(metrics.ResultError).Inc()
			failed++
		case result.IsValid:
			metrics.RuleResults.WithLabelValues(metrics.ResultPassed).Inc()
			passed++
		default:
			metrics.RuleResults.WithLabelValues(metrics.ResultFailed).Inc()
			failed++
		}
		results = append(results, result)
	}

	s.logger.Info("Evaluated validation rules",
		zap.Int("rules", len(rules)),
		zap.Int("passed", passed),
		zap.Int("failed", failed))
	return results, nil
}

// evaluateRule produces the result for one rule. Only cancellation of ctx is
// returned as an error.
func (s *validationService) evaluateRule(
	ctx context.Context,
	exec datasource.QueryExecutor,
	rule models.ValidationRule,
	query string,
) (models.ValidationResult, error) {
	result := models.ValidationResult{
		RuleName:      rule.Name,
		ExpectedValue: rule.ExpectedValue,
		Operator:      rule.Operator,
		Description:   rule.Description,
	}
	failWith := func(err error) (models.ValidationResult, error) {
		msg := logging.SanitizeError(err)
		result.IsValid = false
		result.Error = msg
		result.Description = msg
		s.logger.Warn("Validation rule failed to evaluate",
			zap.String("rule", rule.Name),
			zap.String("error", msg))
		return result, nil
	}

	// Invalid operators fail without running the query.
	op, err := normalizeOperator(rule.Operator)
	if err != nil {
		return failWith(err)
	}
	result.Operator = op

	if err := ctx.Err(); err != nil {
		return result, err
	}
	s.logger.Debug("Running rule query",
		zap.String("rule", rule.Name),
		zap.String("sql", logging.SanitizeQuery(query)))

	qr, err := exec.Query(ctx, query)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}
		return failWith(fmt.Errorf("%w: %w", apperrors.ErrRuleQuery, err))
	}
	actual, err := qr.Scalar()
	if err != nil {
		return failWith(fmt.Errorf("%w: %w", apperrors.ErrRuleQuery, err))
	}
	result.ActualValue = models.DocumentValue(actual)

	ok, err := applyOperator(op, actual, rule.ExpectedValue)
	if err != nil {
		return failWith(err)
	}
	result.IsValid = ok
	return result, nil
}

func (s *validationService) SynthesizeDefaults(profile *models.TableProfile) ([]models.ValidationRule, error) {
	if profile == nil {
		return nil, errors.New("profile is required")
	}
	rules, err := SynthesizeDefaultRules(profile)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Synthesized default rules",
		zap.String("table", profile.Table),
		zap.Int("rules", len(rules)))
	return rules, nil
}
