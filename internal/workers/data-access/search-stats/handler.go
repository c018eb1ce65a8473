package searchstats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/elastic/go-elasticsearch/v8"

	apperrors "swipestats-workers/internal/common/errors"
	"swipestats-workers/internal/common/logger"
	"swipestats-workers/internal/common/metrics"
	"swipestats-workers/internal/common/validation"
	"swipestats-workers/internal/repository"
	"swipestats-workers/internal/workers/data-access/search-stats/queries"
)

const (
	TaskType = "search-stats"
)

type Handler struct {
	config       *Config
	client       *elasticsearch.Client
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, client *elasticsearch.Client, log logger.Logger) *Handler {
	scoped := logger.ForTask(log, TaskType)
	return &Handler{
		config:       config,
		client:       client,
		errorHandler: apperrors.NewErrorHandler(scoped),
		logger:       scoped,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(ctx, client, job, apperrors.NewInvalidInputError(fmt.Sprintf("parse job variables: %v", err)))
		return
	}

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

// Execute runs a cohort query against the stats index.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, apperrors.NewInvalidInputError("input cannot be nil")
	}
	if err := validation.ValidateStruct(input); err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}

	index := input.IndexName
	if index == "" {
		index = h.config.Index
	}

	result, err := queries.Execute(ctx, h.client, queries.CohortQuery{
		Index:   index,
		Filters: input.Filters,
		SortBy:  input.SortBy,
		From:    input.Pagination.From,
		Size:    input.Pagination.Size,
	})
	if err != nil {
		return nil, h.mapError(index, err)
	}

	return &Output{
		Profiles:  result.Profiles,
		TotalHits: result.TotalHits,
		Averages:  result.Averages,
		Took:      result.Took,
	}, nil
}

func (h *Handler) mapError(index string, err error) error {
	switch {
	case errors.Is(err, repository.ErrIndexNotFound):
		return apperrors.NewStatsIndexNotFoundError(index)
	case errors.Is(err, queries.ErrMissingIndex), errors.Is(err, queries.ErrUnknownSortBy):
		return apperrors.NewInvalidInputError(err.Error())
	default:
		return apperrors.NewStorageUnavailableError("elasticsearch", err)
	}
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.FromError(err).Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}
