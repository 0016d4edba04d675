package usecase

import "context"

// MetricsSummary represents aggregated verification insights.
type MetricsSummary struct {
	TotalRequests             int64   `json:"total_requests"`
	VerifiedRequests          int64   `json:"verified_requests"`
	VerificationRate          float64 `json:"verification_rate"`
	ConsistentRequests        int64   `json:"consistent_requests"`
	AverageAddressConsistency float64 `json:"average_address_consistency"`
	AverageAuthenticity       float64 `json:"average_authenticity"`
}

// GetMetricsSummary aggregates verification metrics from persisted logs.
func (uc *VerificationUseCase) GetMetricsSummary(ctx context.Context) (*MetricsSummary, error) {
	aggregation, err := uc.repo.AggregateMetrics(ctx)
	if err != nil {
		return nil, err
	}

	summary := &MetricsSummary{
		TotalRequests:             aggregation.TotalCount,
		VerifiedRequests:          aggregation.VerifiedCount,
		ConsistentRequests:        aggregation.ConsistentCount,
		AverageAddressConsistency: aggregation.AverageAddressConsistency,
		AverageAuthenticity:       aggregation.AverageAuthenticity,
	}

	if aggregation.TotalCount > 0 {
		summary.VerificationRate = float64(aggregation.VerifiedCount) / float64(aggregation.TotalCount)
	}

	return summary, nil
}
