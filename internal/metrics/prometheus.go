package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "duncan"

type promCounter struct {
	counter prometheus.Counter
}

func (p promCounter) Inc() {
	p.counter.Inc()
}

type Prometheus struct {
	Metrics *Metrics

	registry   *prometheus.Registry
	rebalances *prometheus.CounterVec
	orders     *prometheus.CounterVec
	margin     prometheus.Counter
	vaultSyncs *prometheus.CounterVec
}

func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	rebalances := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "rebalances_total",
		Help:      "Rebalance invocations by result.",
	}, []string{"result"})
	orders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "orders_total",
		Help:      "Market orders sent to the exchange by result.",
	}, []string{"result"})
	margin := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "margin_transfers_total",
		Help:      "Total number of isolated margin transfers.",
	})
	vaultSyncs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "vault_syncs_total",
		Help:      "Vault assets-in-use syncs by result.",
	}, []string{"result"})

	registry.MustRegister(rebalances, orders, margin, vaultSyncs)

	m := &Metrics{
		RebalancesExecuted: promCounter{rebalances.WithLabelValues("executed")},
		RebalancesSkipped:  promCounter{rebalances.WithLabelValues("skipped")},
		RebalancesFailed:   promCounter{rebalances.WithLabelValues("failed")},
		OrdersPlaced:       promCounter{orders.WithLabelValues("placed")},
		OrdersFailed:       promCounter{orders.WithLabelValues("failed")},
		MarginTransfers:    promCounter{margin},
		VaultSyncs:         promCounter{vaultSyncs.WithLabelValues("ok")},
		VaultSyncsFailed:   promCounter{vaultSyncs.WithLabelValues("failed")},
	}

	return &Prometheus{
		Metrics:    m,
		registry:   registry,
		rebalances: rebalances,
		orders:     orders,
		margin:     margin,
		vaultSyncs: vaultSyncs,
	}
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
