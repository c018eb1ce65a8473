// internal/common/errors/handler.go
package errors

import (
	"context"
	"encoding/json"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// ErrorHandler handles job errors with standardized error handling
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Resolution is what HandleJobError does with a failed job.
type Resolution struct {
	StdErr  *StandardError
	BPMN    *BPMNError
	Fail    bool  // fail with retries instead of throwing
	Retries int32 // remaining retries when Fail is set
}

// Resolve decides between failing the job for a retry and throwing a BPMN error.
// Retries count down from the job's remaining retries, capped by the code's budget.
func (h *ErrorHandler) Resolve(job entities.Job, err error) Resolution {
	stdErr := FromError(err)
	bpmnErr := ConvertToBPMNError(stdErr)

	budget := int32(bpmnErr.Retries)
	remaining := job.Retries - 1
	if remaining > budget {
		remaining = budget
	}

	if stdErr.Retryable && budget > 0 && remaining > 0 {
		return Resolution{StdErr: stdErr, BPMN: bpmnErr, Fail: true, Retries: remaining}
	}
	return Resolution{StdErr: stdErr, BPMN: bpmnErr}
}

// HandleJobError handles any error in a worker job
func (h *ErrorHandler) HandleJobError(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	res := h.Resolve(job, err)
	h.logError(job, res)

	if res.Fail {
		h.failJobWithRetries(ctx, client, job, res.BPMN, res.Retries)
		return
	}
	h.throwBPMNError(ctx, client, job, res.BPMN)
}

func (h *ErrorHandler) failJobWithRetries(ctx context.Context, client worker.JobClient, job entities.Job, bpmnErr *BPMNError, retries int32) {
	cmd := client.NewFailJobCommand().
		JobKey(job.Key).
		Retries(retries).
		ErrorMessage(bpmnErr.Message)

	if varsJSON, err := json.Marshal(bpmnErr.ToErrorVariables()); err == nil {
		if withVars, err := cmd.VariablesFromString(string(varsJSON)); err == nil {
			if _, err := withVars.Send(ctx); err != nil {
				h.logSendFailure(job, "fail", err)
			}
			return
		}
	}

	if _, err := cmd.Send(ctx); err != nil {
		h.logSendFailure(job, "fail", err)
	}
}

func (h *ErrorHandler) throwBPMNError(ctx context.Context, client worker.JobClient, job entities.Job, bpmnErr *BPMNError) {
	cmd := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(bpmnErr.Code).
		ErrorMessage(bpmnErr.Message)

	if varsJSON, err := json.Marshal(bpmnErr.ToErrorVariables()); err == nil {
		if withVars, err := cmd.VariablesFromString(string(varsJSON)); err == nil {
			if _, err := withVars.Send(ctx); err != nil {
				h.logSendFailure(job, "throw", err)
			}
			return
		}
	}

	if _, err := cmd.Send(ctx); err != nil {
		h.logSendFailure(job, "throw", err)
	}
}

func (h *ErrorHandler) logSendFailure(job entities.Job, command string, err error) {
	h.logger.Error("failed to send job command", map[string]interface{}{
		"jobKey":  job.Key,
		"command": command,
		"error":   err.Error(),
	})
}

func (h *ErrorHandler) logError(job entities.Job, res Resolution) {
	h.logger.Error("Job failed", map[string]interface{}{
		"jobKey":           job.Key,
		"jobType":          job.Type,
		"errorCode":        string(res.StdErr.Code),
		"bpmnErrorCode":    res.BPMN.Code,
		"bpmnMessage":      res.BPMN.Message,
		"details":          res.StdErr.Details,
		"retryable":        res.StdErr.Retryable,
		"retriesLeft":      res.Retries,
		"thrown":           !res.Fail,
		"errorCategory":    GetErrorCategory(res.StdErr.Code),
		"workflowInstance": job.ProcessInstanceKey,
	})
}
