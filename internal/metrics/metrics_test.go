package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idscan/internal/pipeline"
	"idscan/pkg/models"
)

func completeRecord() *models.IdentityRecord {
	rec := &models.IdentityRecord{}
	for _, f := range models.CoreFields {
		rec.Set(f, "x")
	}
	return rec
}

func TestStatus(t *testing.T) {
	assert.Equal(t, "error", Status(nil, errors.New("boom")))
	assert.Equal(t, "partial", Status(&pipeline.Result{Record: &models.IdentityRecord{CNP: "1890506430036"}}, nil))
	assert.Equal(t, "ok", Status(&pipeline.Result{Record: completeRecord()}, nil))
}

func TestObserve(t *testing.T) {
	r := NewRecorder()

	r.Observe(&pipeline.Result{Record: completeRecord(), Rotation: 90, Duration: 2 * time.Second}, nil)
	r.Observe(&pipeline.Result{Record: &models.IdentityRecord{LastName: "POP"}}, nil)
	r.Observe(nil, &pipeline.Error{Stage: pipeline.StageRecognize, Err: errors.New("quota")})
	r.Observe(nil, errors.New("read failed"))

	assert.Equal(t, 1.0, testutil.ToFloat64(r.documentsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.documentsTotal.WithLabelValues("partial")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.documentsTotal.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.failuresTotal.WithLabelValues("recognize")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.failuresTotal.WithLabelValues("unknown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.rotationsTotal.WithLabelValues("90")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.rotationsTotal.WithLabelValues("0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.missingFields.WithLabelValues(models.FieldCNP)))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.missingFields.WithLabelValues(models.FieldLastName)))
}

func TestWriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.Observe(&pipeline.Result{Record: completeRecord()}, nil)

	path := filepath.Join(t.TempDir(), "idscan.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `idscan_documents_total{status="ok"} 1`)
	assert.Contains(t, string(data), "idscan_processing_duration_seconds_count 1")
}
