package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRuleResults_Increment(t *testing.T) {
	before := testutil.ToFloat64(RuleResults.WithLabelValues(ResultPassed))
	RuleResults.WithLabelValues(ResultPassed).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(RuleResults.WithLabelValues(ResultPassed)))
}

func TestCollectorsRegistered(t *testing.T) {
	// init() pre-creates the rule result series.
	assert.Equal(t, 3, testutil.CollectAndCount(RuleResults))
}
