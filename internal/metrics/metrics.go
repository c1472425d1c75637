package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drillboard_uploads_total",
			Help: "Total spreadsheet uploads by detected format and outcome",
		},
		[]string{"format", "status"},
	)

	UploadParseLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "drillboard_upload_parse_seconds",
			Help:    "Time to parse and normalize an uploaded file",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"format"},
	)

	RecordsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drillboard_records_ingested_total",
			Help: "Total normalized records produced by uploads",
		},
		[]string{"well"},
	)

	QualityFlags = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drillboard_quality_flags_total",
			Help: "Records flagged by quality checks",
		},
		[]string{"flag"},
	)

	StoreFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drillboard_store_fallbacks_total",
			Help: "Dataset writes kept in memory because the primary backend failed",
		},
		[]string{"backend"},
	)

	ChatRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drillboard_chat_requests_total",
			Help: "Total chat requests by assistant backend and outcome",
		},
		[]string{"backend", "status"},
	)

	ChatLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "drillboard_chat_latency_seconds",
			Help:    "Chat assistant call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend"},
	)

	FTPFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drillboard_ftp_fetches_total",
			Help: "Total FTP spreadsheet fetches by outcome",
		},
		[]string{"status"},
	)
)
