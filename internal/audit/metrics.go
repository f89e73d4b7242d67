package audit

// Metrics receives engine counters. observability.Metrics implements it.
type Metrics interface {
	RecordOutcome(outcome Outcome)
	RecordFetch(result FetchResult)
	RecordRefresh(mode RefreshMode)
	SubscriptionOpened()
	SubscriptionClosed()
}

type nopMetrics struct{}

func (nopMetrics) RecordOutcome(Outcome)     {}
func (nopMetrics) RecordFetch(FetchResult)   {}
func (nopMetrics) RecordRefresh(RefreshMode) {}
func (nopMetrics) SubscriptionOpened()       {}
func (nopMetrics) SubscriptionClosed()       {}
