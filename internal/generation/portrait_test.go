package generation

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lorekeep/internal/domain"
	"lorekeep/internal/providers/genai"
)

type fakeBackend struct {
	lastReq genai.PortraitRequest
	url     string
	err     error
}

func (f *fakeBackend) GeneratePortrait(ctx context.Context, req genai.PortraitRequest) (string, error) {
	f.lastReq = req
	return f.url, f.err
}

type fakeAssetRepo struct {
	domain.AssetRepository
	assets       map[string]*domain.Asset
	portraitErr  error
	lastWriteID  string
	lastWriteURL string
}

func (f *fakeAssetRepo) GetByID(ctx context.Context, id string) (*domain.Asset, error) {
	a, ok := f.assets[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return a, nil
}

func (f *fakeAssetRepo) SetPortraitURL(ctx context.Context, id, url string) error {
	if f.portraitErr != nil {
		return f.portraitErr
	}
	f.lastWriteID = id
	f.lastWriteURL = url
	return nil
}

func TestWorkUsesExplicitPrompt(t *testing.T) {
	backend := &fakeBackend{url: "https://cdn.example/p.png"}
	repo := &fakeAssetRepo{}
	worker := NewPortraitWorker(backend, repo, zerolog.Nop())

	result, err := worker.Work(context.Background(), domain.WorkUnit{
		TargetID: "asset-1",
		Payload:  "a grizzled dwarf blacksmith",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/p.png", result)
	assert.Equal(t, "a grizzled dwarf blacksmith", backend.lastReq.Prompt)
	assert.NotEmpty(t, backend.lastReq.RequestID)
	assert.Equal(t, "asset-1", repo.lastWriteID)
	assert.Equal(t, "https://cdn.example/p.png", repo.lastWriteURL)
}

func TestWorkDerivesPromptFromAsset(t *testing.T) {
	backend := &fakeBackend{url: "https://cdn.example/p.png"}
	repo := &fakeAssetRepo{assets: map[string]*domain.Asset{
		"asset-1": {ID: "asset-1", Kind: domain.AssetKindMonster, Name: "Gnoll", Description: "Scarred pack leader."},
	}}
	worker := NewPortraitWorker(backend, repo, zerolog.Nop())

	_, err := worker.Work(context.Background(), domain.WorkUnit{TargetID: "asset-1"})
	require.NoError(t, err)
	assert.Contains(t, backend.lastReq.Prompt, "Gnoll")
	assert.Contains(t, backend.lastReq.Prompt, "monster")
	assert.Contains(t, backend.lastReq.Prompt, "Scarred pack leader.")
}

func TestWorkFailsOnMissingTarget(t *testing.T) {
	worker := NewPortraitWorker(&fakeBackend{}, &fakeAssetRepo{}, zerolog.Nop())
	_, err := worker.Work(context.Background(), domain.WorkUnit{})
	assert.Error(t, err)
}

func TestWorkFailsWhenAssetMissingAndNoPrompt(t *testing.T) {
	repo := &fakeAssetRepo{assets: map[string]*domain.Asset{}}
	worker := NewPortraitWorker(&fakeBackend{}, repo, zerolog.Nop())
	_, err := worker.Work(context.Background(), domain.WorkUnit{TargetID: "gone"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestWorkPropagatesBackendError(t *testing.T) {
	backend := &fakeBackend{err: errors.New("backend overloaded")}
	worker := NewPortraitWorker(backend, &fakeAssetRepo{}, zerolog.Nop())
	_, err := worker.Work(context.Background(), domain.WorkUnit{TargetID: "asset-1", Payload: "p"})
	assert.ErrorContains(t, err, "backend overloaded")
}

func TestWorkFailsWhenWritebackFails(t *testing.T) {
	backend := &fakeBackend{url: "https://cdn.example/p.png"}
	repo := &fakeAssetRepo{portraitErr: domain.ErrStoreUnavailable}
	worker := NewPortraitWorker(backend, repo, zerolog.Nop())
	_, err := worker.Work(context.Background(), domain.WorkUnit{TargetID: "asset-1", Payload: "p"})
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}
