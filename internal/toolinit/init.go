package toolinit

import (
	"fmt"

	"github.com/nachoal/coding-agent-server/tools"
	"github.com/nachoal/coding-agent-server/tools/registry"
)

// RegisterAll registers the vision tools backed by analyzer
func RegisterAll(reg *registry.Registry, analyzer tools.ImageAnalyzer) error {
	factories := map[string]registry.ToolFactory{
		tools.AnalyzeImageName: func() tools.Tool {
			return tools.NewAnalyzeImageTool(analyzer)
		},
		tools.CompareImagesName: func() tools.Tool {
			return tools.NewCompareImagesTool(analyzer)
		},
	}

	for name, factory := range factories {
		if err := reg.Register(name, factory); err != nil {
			return fmt.Errorf("register %s: %w", name, err)
		}
	}
	return nil
}
