package files

import (
	"encoding/json"

	"github.com/ringo380/agentik/pkg/models"
)

func toolError(message string) *models.ToolResult {
	payload, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		return &models.ToolResult{Success: false, Error: message}
	}
	return &models.ToolResult{Success: false, Output: string(payload), Error: message}
}

func toolOK(payload []byte) *models.ToolResult {
	return &models.ToolResult{Success: true, Output: string(payload)}
}
