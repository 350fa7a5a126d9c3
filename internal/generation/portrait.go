package generation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"lorekeep/internal/domain"
	"lorekeep/internal/jobs"
	"lorekeep/internal/providers/genai"
)

// PortraitBackend is the slice of the genai client the worker needs.
type PortraitBackend interface {
	GeneratePortrait(ctx context.Context, req genai.PortraitRequest) (string, error)
}

// PortraitWorker turns one bulk-job work unit into a generation call and
// writes the resulting artifact back onto the asset. It is registered with
// the job registry for the portrait and token job types.
type PortraitWorker struct {
	backend PortraitBackend
	assets  domain.AssetRepository
	logger  zerolog.Logger
}

// NewPortraitWorker wires a worker to the backend and the asset repository.
func NewPortraitWorker(backend PortraitBackend, assets domain.AssetRepository, logger zerolog.Logger) *PortraitWorker {
	return &PortraitWorker{backend: backend, assets: assets, logger: logger}
}

// Work implements jobs.WorkFunc. The unit's TargetID is the asset id and the
// payload is the prompt; the returned artifact URL becomes the item result.
func (w *PortraitWorker) Work(ctx context.Context, unit domain.WorkUnit) (string, error) {
	if unit.TargetID == "" {
		return "", fmt.Errorf("work unit has no target asset")
	}
	prompt := unit.Payload
	if prompt == "" {
		asset, err := w.assets.GetByID(ctx, unit.TargetID)
		if err != nil {
			return "", fmt.Errorf("load asset: %w", err)
		}
		prompt = defaultPrompt(asset)
	}

	url, err := w.backend.GeneratePortrait(ctx, genai.PortraitRequest{
		Prompt:      prompt,
		AspectRatio: "1:1",
		RequestID:   uuid.NewString(),
	})
	if err != nil {
		return "", err
	}

	if err := w.assets.SetPortraitURL(ctx, unit.TargetID, url); err != nil {
		// The artifact exists; losing the back-reference fails the item so
		// the caller can retry rather than silently orphaning the portrait.
		return "", fmt.Errorf("record portrait: %w", err)
	}
	return url, nil
}

func defaultPrompt(a *domain.Asset) string {
	return fmt.Sprintf("Fantasy %s portrait of %s. %s", a.Kind, a.Name, a.Description)
}

var _ jobs.WorkFunc = (*PortraitWorker)(nil).Work
