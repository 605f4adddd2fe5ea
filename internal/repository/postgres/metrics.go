package postgres

import (
	"time"

	"babyshop/internal/observability"
)

func observeQuery(operation, table string, start time.Time) {
	observability.DBQueryDuration.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
}
