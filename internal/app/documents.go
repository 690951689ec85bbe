package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"postflow/internal/docparse"
	"postflow/internal/ratelimit"
	"postflow/pkg/domain"
)

// ParseDocument extracts source text from an uploaded document so the
// client can seed a project with it. The result is bounded by the plan's
// input ceiling.
func (a *App) ParseDocument(ctx context.Context, user domain.User, filename string, r io.Reader) (string, error) {
	if err := a.allow(ctx, user.ID, ratelimit.CategoryDocumentParse); err != nil {
		return "", err
	}
	snap, err := a.planFor(user)
	if err != nil {
		return "", err
	}
	text, err := docparse.ExtractText(filename, io.LimitReader(r, a.maxUpload))
	if err != nil {
		if errors.Is(err, docparse.ErrEmptyDocument) {
			return "", errValidation("no text could be extracted from the document")
		}
		return "", errValidation("document could not be parsed: " + err.Error())
	}
	if len([]rune(text)) > snap.Limits.MaxInputChars {
		return "", errQuota(fmt.Sprintf("document text exceeds the plan limit of %d characters", snap.Limits.MaxInputChars))
	}
	return text, nil
}
