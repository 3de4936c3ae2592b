package metrics

type Counter interface {
	Inc()
}

type Metrics struct {
	RebalancesExecuted Counter
	RebalancesSkipped  Counter
	RebalancesFailed   Counter
	OrdersPlaced       Counter
	OrdersFailed       Counter
	MarginTransfers    Counter
	VaultSyncs         Counter
	VaultSyncsFailed   Counter
}

type noopCounter struct{}

func (noopCounter) Inc() {}

func NewNoop() *Metrics {
	n := noopCounter{}
	return &Metrics{
		RebalancesExecuted: n,
		RebalancesSkipped:  n,
		RebalancesFailed:   n,
		OrdersPlaced:       n,
		OrdersFailed:       n,
		MarginTransfers:    n,
		VaultSyncs:         n,
		VaultSyncsFailed:   n,
	}
}
