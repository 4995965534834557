package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	ordersCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Total number of orders created from payment events",
		},
	)

	couponsRedeemedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coupons_redeemed_total",
			Help: "Total number of coupon redemptions recorded",
		},
	)

	notificationsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_published_total",
			Help: "Total number of notification requests published",
		},
		[]string{"kind", "outcome"},
	)

	sweepProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweep_processed_total",
			Help: "Total number of records processed by background sweeps",
		},
		[]string{"sweep"},
	)

	rateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"bucket"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(ordersCreatedTotal)
	prometheus.MustRegister(couponsRedeemedTotal)
	prometheus.MustRegister(notificationsPublishedTotal)
	prometheus.MustRegister(sweepProcessedTotal)
	prometheus.MustRegister(rateLimitedTotal)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

func RecordOrderCreated() {
	ordersCreatedTotal.Inc()
}

func RecordCouponRedeemed() {
	couponsRedeemedTotal.Inc()
}

func RecordNotificationPublished(kind, outcome string) {
	notificationsPublishedTotal.WithLabelValues(kind, outcome).Inc()
}

func RecordSweepProcessed(sweep string, n int) {
	sweepProcessedTotal.WithLabelValues(sweep).Add(float64(n))
}

func RecordRateLimited(bucket string) {
	rateLimitedTotal.WithLabelValues(bucket).Inc()
}
