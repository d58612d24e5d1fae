package server

import (
	"os"

	"github.com/MeKo-Tech/flatdoc/internal/common"
	"github.com/MeKo-Tech/flatdoc/internal/pipeline"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Request is the JSON a client sends for one document.
type Request struct {
	Filename  string `json:"filename"`
	RequestID string `json:"request_id,omitempty"`
}

// ReplyError describes a failed request.
type ReplyError struct {
	Kind    common.Kind `json:"kind"`
	Stage   string      `json:"stage,omitempty"`
	Message string      `json:"message"`
}

// Reply is the single answer to one request.
type Reply struct {
	RequestID          string              `json:"request_id"`
	Status             string              `json:"status"`
	ImgOutputPath      string              `json:"img_output_path"`
	PID                int                 `json:"pid"`
	PreprocessExecTime float64             `json:"preprocess_exec_time"`
	OCRExecTime        float64             `json:"ocr_exec_time"`
	OCROutput          *pipeline.OCROutput `json:"ocr_output,omitempty"`
	Error              *ReplyError         `json:"error,omitempty"`
}

// NewReply builds the reply for a finished run. res may be nil.
func NewReply(req pipeline.Request, res *pipeline.Result, err error) Reply {
	r := Reply{RequestID: req.ID, PID: os.Getpid()}
	if res != nil {
		if res.RequestID != "" {
			r.RequestID = res.RequestID
		}
		r.ImgOutputPath = res.ImageOutputPath
		r.PreprocessExecTime = res.Preprocess.Seconds()
		r.OCRExecTime = res.Recognition.Seconds()
	}
	if err != nil {
		r.Status = StatusError
		r.Error = &ReplyError{Kind: common.KindOf(err), Stage: common.StageOf(err), Message: err.Error()}
		return r
	}
	r.Status = StatusOK
	if res != nil {
		out := res.Output()
		r.OCROutput = &out
	}
	return r
}

// errorReply answers a request that never reached the pipeline.
func errorReply(requestID string, kind common.Kind, msg string) Reply {
	return Reply{
		RequestID: requestID,
		Status:    StatusError,
		PID:       os.Getpid(),
		Error:     &ReplyError{Kind: kind, Stage: pipeline.StageRequest, Message: msg},
	}
}
