package pipeline

import (
	"image"
	"time"

	"github.com/MeKo-Tech/flatdoc/internal/common"
	"github.com/MeKo-Tech/flatdoc/internal/detector"
	"github.com/MeKo-Tech/flatdoc/internal/rectify"
	"github.com/MeKo-Tech/flatdoc/internal/utils"
)

// Request identifies one document to process.
type Request struct {
	ID         string `json:"request_id"`
	Filename   string `json:"filename"`
	SourcePath string `json:"source_path,omitempty"` // defaults to InputDir/Filename
	OutputDir  string `json:"output_dir,omitempty"`  // defaults to OutputDir/<name>
}

// OCROutput is the content of the per-document result JSON.
type OCROutput struct {
	ResStr     string `json:"res_str"`
	SrcImgPath string `json:"src_img_path"`
}

// Result is the outcome of one run. After a failure it holds whatever was
// produced before the failing stage.
type Result struct {
	RequestID  string `json:"request_id"`
	Filename   string `json:"filename"`
	SourcePath string `json:"source_path"`
	OutputDir  string `json:"output_dir"`
	PID        int    `json:"pid"`

	Binary *image.Gray `json:"-"`
	Text   string      `json:"text"`

	Quad          utils.Quad          `json:"quad"` // in resized-image coordinates
	Detection     *detector.Detection `json:"detection,omitempty"`
	Rectification rectify.Params      `json:"rectification"`
	Median        float64             `json:"median"`
	AutoLower     int                 `json:"auto_lower"`
	AutoUpper     int                 `json:"auto_upper"`

	Stages      []common.StageTiming `json:"stages"`
	Preprocess  time.Duration        `json:"preprocess_ns"`
	Recognition time.Duration        `json:"recognition_ns"`

	ImageOutputPath string   `json:"img_output_path"`
	ResultPath      string   `json:"result_path"`
	Artifacts       []string `json:"artifacts,omitempty"`
}

// Output returns the per-document result JSON content.
func (r *Result) Output() OCROutput {
	return OCROutput{ResStr: r.Text, SrcImgPath: r.ImageOutputPath}
}

// StageDuration returns the recorded duration of stage, or zero.
func (r *Result) StageDuration(stage string) time.Duration {
	for _, st := range r.Stages {
		if st.Stage == stage {
			return st.Duration
		}
	}
	return 0
}
