package metrics

import (
	"context"
	"time"
)

// PipelineRecorder feeds ingest pipeline events into the Prometheus collectors above.
type PipelineRecorder struct{}

func (PipelineRecorder) RecordStage(_ context.Context, stage string, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	PipelineStageDuration.WithLabelValues(stage, status).Observe(duration.Seconds())
}

func (PipelineRecorder) RecordUpload(_ context.Context, platform string, merged bool, errorCode string) {
	if errorCode != "" {
		ExportsRejected.WithLabelValues(errorCode).Inc()
		return
	}
	ExportsNormalized.WithLabelValues(platform).Inc()
	if merged {
		ProfilesMerged.WithLabelValues(platform).Inc()
	}
}

// RecordConsentRemoved counts each withheld category once.
func RecordConsentRemoved(categories ...string) {
	for _, c := range categories {
		ConsentCategoriesRemoved.WithLabelValues(c).Inc()
	}
}
