package toolconv

import (
	"github.com/ringo380/agentik/pkg/models"
	"google.golang.org/genai"
)

// ToGeminiTools converts tool definitions to Gemini's function-declaration
// schema, bundled into a single genai.Tool as the SDK expects.
func ToGeminiTools(tools []models.ToolDefinition) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, len(tools))
	for i, tool := range tools {
		schema := any(tool.Parameters)
		if schema == nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		decls[i] = &genai.FunctionDeclaration{
			Name:                 tool.Name,
			Description:          tool.Description,
			ParametersJsonSchema: schema,
		}
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}
