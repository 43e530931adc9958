// Package metrics counts scanned documents for batch runs. Metrics are kept in
// a private registry and written out as a node_exporter textfile.
package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"idscan/internal/pipeline"
)

// Recorder holds the scan metrics of one process.
type Recorder struct {
	registry *prometheus.Registry

	documentsTotal  *prometheus.CounterVec
	failuresTotal   *prometheus.CounterVec
	rotationsTotal  *prometheus.CounterVec
	missingFields   *prometheus.CounterVec
	processingTime  prometheus.Histogram
	fieldsExtracted prometheus.Histogram
}

// NewRecorder creates a recorder with a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		documentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "idscan_documents_total",
				Help: "Total number of processed documents",
			},
			[]string{"status"}, // status: ok, partial, error
		),
		failuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "idscan_failures_total",
				Help: "Failed documents by pipeline stage",
			},
			[]string{"stage"},
		),
		rotationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "idscan_rotations_total",
				Help: "Rotation applied before recognition",
			},
			[]string{"angle"},
		),
		missingFields: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "idscan_missing_fields_total",
				Help: "Fields left empty after extraction",
			},
			[]string{"field"},
		),
		processingTime: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "idscan_processing_duration_seconds",
				Help:    "Document processing duration in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 25, 50},
			},
		),
		fieldsExtracted: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "idscan_fields_extracted",
				Help:    "Number of non-empty fields per document",
				Buckets: prometheus.LinearBuckets(0, 3, 6),
			},
		),
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Status classifies a pipeline outcome.
func Status(res *pipeline.Result, err error) string {
	switch {
	case err != nil:
		return "error"
	case res == nil || res.Record == nil || len(res.Record.Missing()) > 0:
		return "partial"
	default:
		return "ok"
	}
}

// Observe records the outcome of one document.
func (r *Recorder) Observe(res *pipeline.Result, err error) {
	status := Status(res, err)
	r.documentsTotal.WithLabelValues(status).Inc()
	if err != nil {
		stage := "unknown"
		var perr *pipeline.Error
		if errors.As(err, &perr) {
			stage = string(perr.Stage)
		}
		r.failuresTotal.WithLabelValues(stage).Inc()
		return
	}
	if res == nil {
		return
	}

	r.rotationsTotal.WithLabelValues(strconv.Itoa(res.Rotation)).Inc()
	r.processingTime.Observe(res.Duration.Seconds())
	if res.Record != nil {
		r.fieldsExtracted.Observe(float64(len(res.Record.Fields())))
		for _, f := range res.Record.Missing() {
			r.missingFields.WithLabelValues(f).Inc()
		}
	}
}

// WriteTextfile writes all metrics to path in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
