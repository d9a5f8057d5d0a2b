package gcp

import (
	"context"
	"encoding/json"
	"fmt"

	executions "cloud.google.com/go/workflows/executions/apiv1"
	"cloud.google.com/go/workflows/executions/apiv1/executionspb"
)

// WorkflowParent formats the resource name of a workflow.
func WorkflowParent(projectID, location, workflowID string) string {
	return fmt.Sprintf("projects/%s/locations/%s/workflows/%s", projectID, location, workflowID)
}

// TriggerWorkflow starts an execution with payload as its JSON argument and
// returns the execution name.
func TriggerWorkflow(ctx context.Context, client *executions.Client, parent string, payload any) (string, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal workflow payload: %w", err)
	}
	exec, err := client.CreateExecution(ctx, &executionspb.CreateExecutionRequest{
		Parent:    parent,
		Execution: &executionspb.Execution{Argument: string(payloadBytes)},
	})
	if err != nil {
		return "", fmt.Errorf("failed to trigger workflow execution: %w", err)
	}
	return exec.GetName(), nil
}
