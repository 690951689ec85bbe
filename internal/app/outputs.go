package app

import (
	"context"
	"fmt"

	"postflow/internal/ratelimit"
	"postflow/pkg/domain"
	"postflow/pkg/events"
	"postflow/pkg/generate"
)

// ListOutputs returns a project's outputs in canonical slot order.
func (a *App) ListOutputs(user domain.User, projectID string) ([]domain.Output, error) {
	if _, err := a.GetProject(user, projectID); err != nil {
		return nil, err
	}
	return a.store.ListOutputs(projectID)
}

// GetOutput loads one output owned by the user.
func (a *App) GetOutput(user domain.User, outputID string) (domain.Output, error) {
	output, ok, err := a.store.GetOutput(outputID)
	if err != nil {
		return domain.Output{}, fmt.Errorf("load output: %w", err)
	}
	if !ok {
		return domain.Output{}, errNotFound("output not found")
	}
	if _, err := a.GetProject(user, output.ProjectID); err != nil {
		return domain.Output{}, errNotFound("output not found")
	}
	return output, nil
}

// UpdateOutput applies a manual edit to one output's content. The edit
// marks the output edited; the first generated text stays recoverable.
func (a *App) UpdateOutput(ctx context.Context, user domain.User, outputID, content string) (domain.Output, error) {
	if err := a.allow(ctx, user.ID, ratelimit.CategoryOutputUpdate); err != nil {
		return domain.Output{}, err
	}
	output, err := a.GetOutput(user, outputID)
	if err != nil {
		return domain.Output{}, err
	}
	sanitized := generate.Sanitize(output.Platform, content)
	if sanitized == "" {
		return domain.Output{}, errValidation("content must not be empty")
	}
	updated, err := a.store.UpdateOutputContent(output.ID, sanitized)
	if err != nil {
		return domain.Output{}, fmt.Errorf("update output: %w", err)
	}
	a.publisher.Publish(ctx, events.Event{
		Type:      events.TypeOutputEdited,
		UserID:    user.ID,
		ProjectID: output.ProjectID,
		Metadata:  map[string]string{"output_id": output.ID},
	})
	return updated, nil
}
