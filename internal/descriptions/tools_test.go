package descriptions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToolDescriptions(t *testing.T) {
	names := GetAllToolNames()
	assert.Len(t, names, 8)
	assert.IsIncreasing(t, names)

	for _, name := range names {
		assert.NotEmpty(t, GetToolDescription(name), name)
		assert.NotEmpty(t, ToolSummaries[name], "missing summary for %s", name)
	}
	assert.Equal(t, "Tool description not available", GetToolDescription("pdf_unknown"))
}
