package tools

import (
	"context"
	"encoding/json"

	"github.com/nachoal/coding-agent-server/tools/base"
)

type AnalyzeImageParams struct {
	ImagePath string `json:"image_path" schema:"required" description:"Absolute or relative path to an image file"`
	Prompt    string `json:"prompt" description:"Question or instruction about the image"`
}

// AnalyzeImageTool sends one image and a prompt to the vision model
type AnalyzeImageTool struct {
	base.BaseTool
	analyzer ImageAnalyzer
}

// Parameters returns the parameters struct
func (t *AnalyzeImageTool) Parameters() interface{} {
	return &AnalyzeImageParams{}
}

// Execute runs the analysis and returns the generated text
func (t *AnalyzeImageTool) Execute(ctx context.Context, params json.RawMessage) (string, error) {
	var args AnalyzeImageParams
	if err := json.Unmarshal(params, &args); err != nil {
		return "", NewToolError(CodeInvalidParams, "Failed to parse parameters").
			WithDetail("error", err.Error())
	}

	out, err := t.analyzer.AnalyzeImage(ctx, args.ImagePath, args.Prompt)
	if err != nil {
		return "", FromError(err)
	}
	return out, nil
}
