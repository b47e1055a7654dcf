package tools

import (
	"github.com/nachoal/coding-agent-server/tools/base"
)

// Tool names exposed to agents
const (
	AnalyzeImageName  = "analyze_image"
	CompareImagesName = "compare_images"
)

// NewAnalyzeImageTool creates the single-image analysis tool
func NewAnalyzeImageTool(analyzer ImageAnalyzer) Tool {
	return &AnalyzeImageTool{
		BaseTool: base.BaseTool{
			ToolName: AnalyzeImageName,
			ToolDesc: "Analyze a local image file with a text prompt using the vision-language model",
		},
		analyzer: analyzer,
	}
}

// NewCompareImagesTool creates the multi-image comparison tool
func NewCompareImagesTool(analyzer ImageAnalyzer) Tool {
	return &CompareImagesTool{
		BaseTool: base.BaseTool{
			ToolName: CompareImagesName,
			ToolDesc: "Compare 2-5 local images with a text prompt using the vision-language model",
		},
		analyzer: analyzer,
	}
}
