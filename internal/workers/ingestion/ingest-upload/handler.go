package ingestupload

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"swipestats-workers/internal/common/errors"
	"swipestats-workers/internal/common/logger"
	"swipestats-workers/internal/common/metrics"
	"swipestats-workers/internal/ingest/pipeline"
	"swipestats-workers/internal/models"
)

const (
	TaskType = "ingest-upload"
)

// Ingester is satisfied by *pipeline.Service.
type Ingester interface {
	Ingest(ctx context.Context, up pipeline.Upload) (*pipeline.Result, error)
}

type Handler struct {
	config       *Config
	ingester     Ingester
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, ingester Ingester, log logger.Logger) *Handler {
	scoped := logger.ForTask(log, TaskType)
	return &Handler{
		config:       config,
		ingester:     ingester,
		errorHandler: errors.NewErrorHandler(scoped),
		logger:       scoped,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.Key,
		"processInstanceKey": job.ProcessInstanceKey,
	})

	input, err := parseInput(job)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

func parseInput(job entities.Job) (*Input, error) {
	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("parse job variables: %v", err))
	}
	if input.Export == nil {
		return nil, errors.NewInvalidInputError("export is required")
	}
	return &input, nil
}

// Execute runs one upload through the ingest pipeline.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.NewInvalidInputError("input cannot be nil")
	}

	res, err := h.ingester.Ingest(ctx, pipeline.Upload{
		ID:      input.UploadID,
		Export:  input.Export,
		Consent: input.Consent,
	})
	if err != nil {
		return nil, err
	}

	withheld := make([]string, 0, len(res.Withheld))
	for _, c := range res.Withheld {
		withheld = append(withheld, string(c))
	}
	metrics.RecordConsentRemoved(withheld...)

	h.logger.Info("upload ingested", map[string]interface{}{
		"uploadId":  res.UploadID,
		"profileId": res.ProfileID,
		"merged":    res.Merged,
		"indexed":   res.Indexed,
	})

	out := &Output{
		UploadID:  res.UploadID,
		ProfileID: res.ProfileID,
		Platform:  string(res.Platform),
		Merged:    res.Merged,
		Indexed:   res.Indexed,
		Withheld:  res.Withheld,
		Stats:     res.Stats,
	}
	if out.Withheld == nil {
		out.Withheld = []models.ConsentCategory{}
	}
	return out, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
	}
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.FromError(err).Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}
