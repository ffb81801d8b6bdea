package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

type DBMetrics struct {
	QueryDuration *prometheus.HistogramVec
}

type BusinessMetrics struct {
	OperationsTotal  *prometheus.CounterVec
	CustomersTotal   prometheus.Gauge
	CreditLimitTotal prometheus.Gauge
}

var (
	DB = DBMetrics{
		QueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "clientes_db_query_duration_seconds",
				Help:    "Histogram of database query latencies.",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"query_name", "status"},
		),
	}

	Business = BusinessMetrics{
		OperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clientes_customer_operations_total",
				Help: "Total number of customer operations by outcome.",
			},
			[]string{"operation", "outcome"},
		),
		CustomersTotal: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "clientes_customers_total",
				Help: "Number of rows in the customer table at the last book refresh.",
			},
		),
		CreditLimitTotal: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "clientes_credit_limit_total",
				Help: "Sum of all credit limits at the last book refresh.",
			},
		),
	}
)

func RecordDBQuery(queryName, status string, duration time.Duration) {
	DB.QueryDuration.WithLabelValues(queryName, status).Observe(duration.Seconds())
}

func RecordOperation(operation, outcome string) {
	Business.OperationsTotal.WithLabelValues(operation, outcome).Inc()
}

func RecordBook(customers int64, totalCreditLimit decimal.Decimal) {
	Business.CustomersTotal.Set(float64(customers))
	Business.CreditLimitTotal.Set(totalCreditLimit.InexactFloat64())
}
