package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const maxDelegationDepth = 3

// transferTool hands a task to one team member and returns its answer.
type transferTool struct {
	member *Agent
}

func newTransferTool(member *Agent) *transferTool {
	return &transferTool{member: member}
}

func (t *transferTool) Name() string {
	return "transfer_task_to_" + strings.ReplaceAll(t.member.id, "-", "_")
}

func (t *transferTool) Description() string {
	return fmt.Sprintf("Use this function to transfer a task to %s. Role: %s", t.member.name, t.member.role)
}

func (t *transferTool) InputSchema() any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"task_description": map[string]any{
				"type":        "string",
				"description": "A clear and concise description of the task the agent should achieve",
			},
			"expected_output": map[string]any{
				"type":        "string",
				"description": "The expected output from the agent",
			},
			"additional_information": map[string]any{
				"type":        "string",
				"description": "Additional information that will help the agent complete the task; empty if none",
			},
		},
		"required":             []string{"task_description", "expected_output", "additional_information"},
		"additionalProperties": false,
	}
}

func (t *transferTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		TaskDescription       string `json:"task_description"`
		ExpectedOutput        string `json:"expected_output"`
		AdditionalInformation string `json:"additional_information"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("parsing transfer input: %w", err)
	}
	if strings.TrimSpace(args.TaskDescription) == "" {
		return "", fmt.Errorf("task_description is required")
	}

	depth := delegationDepthFromContext(ctx)
	if depth >= maxDelegationDepth {
		return "", fmt.Errorf("maximum delegation depth (%d) exceeded", maxDelegationDepth)
	}

	var task strings.Builder
	task.WriteString(args.TaskDescription)
	if args.ExpectedOutput != "" {
		fmt.Fprintf(&task, "\n\nThe expected output is: %s", args.ExpectedOutput)
	}
	if args.AdditionalInformation != "" {
		fmt.Fprintf(&task, "\n\nAdditional information: %s", args.AdditionalInformation)
	}

	// The member's tokens are not streamed to the caller; only its final
	// answer comes back as the tool output.
	resp, err := t.member.Run(contextWithDelegationDepth(ctx, depth+1), task.String(), nil)
	if err != nil {
		return "", fmt.Errorf("%s failed: %w", t.member.name, err)
	}
	if resp.Content == "" {
		return "(agent produced no output)", nil
	}
	return resp.Content, nil
}
