package tools

import (
	"context"
	"encoding/json"

	"github.com/nachoal/coding-agent-server/tools/base"
)

// ImagePaths has no "required" tag: an empty list must reach the count check
// so it is reported as TOO_FEW_IMAGES.
type CompareImagesParams struct {
	ImagePaths []string `json:"image_paths" schema:"minItems:2,maxItems:5" description:"List of 2-5 absolute or relative paths to image files"`
	Prompt     string   `json:"prompt" description:"Question or instruction about the images"`
}

// CompareImagesTool sends several images in order followed by a prompt
type CompareImagesTool struct {
	base.BaseTool
	analyzer ImageAnalyzer
}

// Parameters returns the parameters struct
func (t *CompareImagesTool) Parameters() interface{} {
	return &CompareImagesParams{}
}

// Execute runs the comparison and returns the generated text
func (t *CompareImagesTool) Execute(ctx context.Context, params json.RawMessage) (string, error) {
	var args CompareImagesParams
	if err := json.Unmarshal(params, &args); err != nil {
		return "", NewToolError(CodeInvalidParams, "Failed to parse parameters").
			WithDetail("error", err.Error())
	}

	out, err := t.analyzer.CompareImages(ctx, args.ImagePaths, args.Prompt)
	if err != nil {
		return "", FromError(err)
	}
	return out, nil
}
