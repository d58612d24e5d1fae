package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/flatdoc/internal/common"
)

type jsonItem struct {
	File          string  `json:"file"`
	RequestID     string  `json:"request_id,omitempty"`
	Status        string  `json:"status"`
	ImgOutputPath string  `json:"img_output_path,omitempty"`
	Preprocess    float64 `json:"preprocess_exec_time"`
	OCR           float64 `json:"ocr_exec_time"`
	Text          string  `json:"text,omitempty"`
	Kind          string  `json:"kind,omitempty"`
	Stage         string  `json:"stage,omitempty"`
	Error         string  `json:"error,omitempty"`
}

func toJSONItem(it Item) jsonItem {
	j := jsonItem{File: it.Path, Status: "ok"}
	if r := it.Result; r != nil {
		j.RequestID = r.RequestID
		j.ImgOutputPath = r.ImageOutputPath
		j.Preprocess = r.Preprocess.Seconds()
		j.OCR = r.Recognition.Seconds()
		j.Text = r.Text
	}
	if it.Err != nil {
		j.Status = "error"
		j.Kind = string(common.KindOf(it.Err))
		j.Stage = common.StageOf(it.Err)
		j.Error = it.Err.Error()
		j.Text = ""
	}
	return j
}

// formatBatchResults formats the batch results in the specified format.
func formatBatchResults(items []Item, format string) (string, error) {
	switch format {
	case "json":
		return formatJSON(items)
	case "csv":
		return formatCSV(items)
	default: // text
		return formatText(items), nil
	}
}

func formatJSON(items []Item) (string, error) {
	batchResult := struct {
		Documents []jsonItem `json:"documents"`
	}{Documents: make([]jsonItem, len(items))}
	for i, it := range items {
		batchResult.Documents[i] = toJSONItem(it)
	}
	bts, err := json.MarshalIndent(batchResult, "", "  ")
	return string(bts), err
}

func formatCSV(items []Item) (string, error) {
	var output strings.Builder
	writer := csv.NewWriter(&output)
	header := []string{"file", "request_id", "status", "kind", "stage", "img_output_path",
		"preprocess_exec_time", "ocr_exec_time", "text"}
	if err := writer.Write(header); err != nil {
		return "", err
	}
	for _, it := range items {
		j := toJSONItem(it)
		row := []string{
			j.File, j.RequestID, j.Status, j.Kind, j.Stage, j.ImgOutputPath,
			strconv.FormatFloat(j.Preprocess, 'f', 3, 64),
			strconv.FormatFloat(j.OCR, 'f', 3, 64),
			j.Text,
		}
		if err := writer.Write(row); err != nil {
			return "", err
		}
	}
	writer.Flush()
	return output.String(), writer.Error()
}

func formatText(items []Item) string {
	var output strings.Builder
	for i, it := range items {
		if i > 0 {
			output.WriteString("\n")
		}
		output.WriteString(fmt.Sprintf("# %s\n", it.Path))
		if it.Err != nil {
			output.WriteString(fmt.Sprintf("! %s\n", it.Err))
			continue
		}
		if it.Result != nil && it.Result.Text != "" {
			output.WriteString(it.Result.Text)
			output.WriteString("\n")
		}
	}
	return output.String()
}
