package agent

import (
	"fmt"
	"strings"

	"github.com/HexSleeves/forager/internal/tool"
)

const systemPromptTemplate = `You are a helpful AI agent with access to the following tools:
%s

When you need to use a tool, respond with JSON in this format:
{"tool": "tool_name", "input": {...input_data...}}

After getting tool results, provide a natural language response to the user.`

const synthesisPromptTemplate = `User query: %s

The tool '%s' returned: %s

Based on this result, answer the user's query.`

// ToolDescriptions renders one "- name: description" line per tool.
func ToolDescriptions(tools []tool.Tool) string {
	lines := make([]string, 0, len(tools))
	for _, t := range tools {
		lines = append(lines, fmt.Sprintf("- %s: %s", t.Name(), t.Description()))
	}
	return strings.Join(lines, "\n")
}

// SystemPrompt is shared by the decision and the synthesis call.
func SystemPrompt(tools []tool.Tool) string {
	return fmt.Sprintf(systemPromptTemplate, ToolDescriptions(tools))
}

// SynthesisPrompt asks the model to answer query from a tool's output.
func SynthesisPrompt(query, toolName string, result *tool.Result) string {
	return fmt.Sprintf(synthesisPromptTemplate, query, toolName, result.OutputText())
}
