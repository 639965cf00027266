package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all metrics for the resource factory service
type Collector struct {
	// Request counters
	generateRequests prometheus.Counter
	processRequests  prometheus.Counter
	searchRequests   prometheus.Counter
	campaignRequests prometheus.Counter

	// Error counters
	generateErrors prometheus.Counter
	processErrors  prometheus.Counter
	searchErrors   prometheus.Counter
	campaignErrors prometheus.Counter

	// Processing histograms
	generateDuration prometheus.Histogram
	processDuration  prometheus.Histogram
	templateSize     prometheus.Histogram

	// Validation metrics
	rowsValidated   prometheus.Counter
	rowsRejected    prometheus.Counter
	sheetsValidated prometheus.Counter

	// Orchestration metrics
	boundariesCreated    prometheus.Counter
	localizationChunks   prometheus.Counter
	skippedChunks        prometheus.Counter
	orchestrateDuration  prometheus.Histogram

	// Job metrics
	activeJobs    prometheus.Gauge
	completedJobs prometheus.Counter
	failedJobs    prometheus.Counter

	// Cache metrics
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter

	// Kafka metrics
	kafkaMessages      prometheus.Counter
	kafkaMessageErrors prometheus.Counter

	// Database metrics
	dbQueries prometheus.Counter
	dbErrors  prometheus.Counter
}

// NewCollector creates a new metrics collector registered with the
// default Prometheus registry
func NewCollector() *Collector {
	return newCollector(prometheus.DefaultRegisterer)
}

// NewNop creates a collector backed by a throwaway registry, for tests
// and optional wiring
func NewNop() *Collector {
	return newCollector(prometheus.NewRegistry())
}

// Ensure returns the given collector, or a nop one when nil
func Ensure(c *Collector) *Collector {
	if c != nil {
		return c
	}
	return NewNop()
}

func newCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		generateRequests: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "resource_factory",
			Name:      "generate_requests_total",
			Help:      "Total number of template generation requests",
		}),
		processRequests: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "resource_factory",
			Name:      "process_requests_total",
			Help:      "Total number of sheet processing requests",
		}),
		searchRequests: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "resource_factory",
			Name:      "search_requests_total",
			Help:      "Total number of resource search requests",
		}),
		campaignRequests: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "resource_factory",
			Name:      "campaign_requests_total",
			Help:      "Total number of campaign requests",
		}),

		generateErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "resource_factory",
			Name:      "generate_errors_total",
			Help:      "Total number of template generation errors",
		}),
		processErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "resource_factory",
			Name:      "process_errors_total",
			Help:      "Total number of sheet processing errors",
		}),
		searchErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "resource_factory",
			Name:      "search_errors_total",
			Help:      "Total number of resource search errors",
		}),
		campaignErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "resource_factory",
			Name:      "campaign_errors_total",
			Help:      "Total number of campaign errors",
		}),

		generateDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "resource_factory",
			Name:      "generate_duration_seconds",
			Help:      "Duration of template generation jobs",
			Buckets:   []float64{0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
		}),
		processDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "resource_factory",
			Name:      "process_duration_seconds",
			Help:      "Duration of sheet processing jobs",
			Buckets:   []float64{0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0, 300.0},
		}),
		templateSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "resource_factory",
			Name:      "template_size_bytes",
			Help:      "Size of generated template workbooks in bytes",
			Buckets:   []float64{1024, 10240, 102400, 1048576, 10485760, 104857600},
		}),

		rowsValidated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "resource_factory",
			Name:      "rows_validated_total",
			Help:      "Total number of sheet rows validated",
		}),
		rowsRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "resource_factory",
			Name:      "rows_rejected_total",
			Help:      "Total number of sheet rows rejected by validation",
		}),
		sheetsValidated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "resource_factory",
			Name:      "sheets_validated_total",
			Help:      "Total number of uploaded sheets validated",
		}),

		boundariesCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "resource_factory",
			Name:      "boundaries_created_total",
			Help:      "Total number of boundary entities created",
		}),
		localizationChunks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "resource_factory",
			Name:      "localization_chunks_total",
			Help:      "Total number of localization upsert chunks sent",
		}),
		skippedChunks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "resource_factory",
			Name:      "skipped_chunks_total",
			Help:      "Total number of chunks skipped after retry exhaustion",
		}),
		orchestrateDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "resource_factory",
			Name:      "orchestrate_duration_seconds",
			Help:      "Duration of campaign orchestration runs",
			Buckets:   []float64{1, 5, 10, 30, 60, 300, 600, 1800},
		}),

		activeJobs: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "resource_factory",
			Name:      "active_jobs",
			Help:      "Number of currently active background jobs",
		}),
		completedJobs: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "resource_factory",
			Name:      "completed_jobs_total",
			Help:      "Total number of completed jobs",
		}),
		failedJobs: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "resource_factory",
			Name:      "failed_jobs_total",
			Help:      "Total number of failed jobs",
		}),

		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "resource_factory",
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "resource_factory",
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		}),

		kafkaMessages: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "resource_factory",
			Name:      "kafka_messages_total",
			Help:      "Total number of Kafka messages published",
		}),
		kafkaMessageErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "resource_factory",
			Name:      "kafka_message_errors_total",
			Help:      "Total number of Kafka message publishing errors",
		}),

		dbQueries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "resource_factory",
			Name:      "db_queries_total",
			Help:      "Total number of database queries",
		}),
		dbErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "resource_factory",
			Name:      "db_errors_total",
			Help:      "Total number of database errors",
		}),
	}
}

// Request counters

func (c *Collector) IncGenerateRequests() { c.generateRequests.Inc() }
func (c *Collector) IncProcessRequests()  { c.processRequests.Inc() }
func (c *Collector) IncSearchRequests()   { c.searchRequests.Inc() }
func (c *Collector) IncCampaignRequests() { c.campaignRequests.Inc() }

func (c *Collector) IncGenerateErrors() { c.generateErrors.Inc() }
func (c *Collector) IncProcessErrors()  { c.processErrors.Inc() }
func (c *Collector) IncSearchErrors()   { c.searchErrors.Inc() }
func (c *Collector) IncCampaignErrors() { c.campaignErrors.Inc() }

// Job lifecycle

func (c *Collector) JobStarted()  { c.activeJobs.Inc() }
func (c *Collector) JobFinished() { c.activeJobs.Dec() }

func (c *Collector) JobCompleted(duration time.Duration) {
	c.completedJobs.Inc()
	c.processDuration.Observe(duration.Seconds())
}

func (c *Collector) JobFailed() { c.failedJobs.Inc() }

// ObserveGenerate records one finished generation job.
func (c *Collector) ObserveGenerate(duration time.Duration, templateBytes int) {
	c.generateDuration.Observe(duration.Seconds())
	c.templateSize.Observe(float64(templateBytes))
}

// ObserveValidation records one validated sheet.
func (c *Collector) ObserveValidation(rows, rejected int) {
	c.sheetsValidated.Inc()
	c.rowsValidated.Add(float64(rows))
	c.rowsRejected.Add(float64(rejected))
}

// ObserveOrchestration records one campaign orchestration run.
func (c *Collector) ObserveOrchestration(duration time.Duration, boundaries, chunks, skipped int) {
	c.orchestrateDuration.Observe(duration.Seconds())
	c.boundariesCreated.Add(float64(boundaries))
	c.localizationChunks.Add(float64(chunks))
	c.skippedChunks.Add(float64(skipped))
}

// Cache

func (c *Collector) IncCacheHits()   { c.cacheHits.Inc() }
func (c *Collector) IncCacheMisses() { c.cacheMisses.Inc() }

// Kafka

func (c *Collector) IncKafkaMessages()      { c.kafkaMessages.Inc() }
func (c *Collector) IncKafkaMessageErrors() { c.kafkaMessageErrors.Inc() }

// Database

func (c *Collector) IncDBQueries() { c.dbQueries.Inc() }
func (c *Collector) IncDBErrors()  { c.dbErrors.Inc() }
