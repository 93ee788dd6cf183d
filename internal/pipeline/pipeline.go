// Package pipeline turns a submitted form into a minted token: generate the
// image, upload it with its metadata, then mint. Stages run strictly one after
// another and a failure stops everything after it.
package pipeline

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog"

	"aimint/internal/chain"
	"aimint/internal/infra"
	"aimint/internal/providers/inference"
	"aimint/internal/storage"
)

// ImageGenerator produces an image from a text prompt.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (*inference.Image, error)
}

// Uploader stores the image and metadata on content-addressed storage.
type Uploader interface {
	Store(ctx context.Context, up storage.Upload) (*storage.Stored, error)
}

// Minter mints a token that points at tokenURI.
type Minter interface {
	Mint(ctx context.Context, tokenURI string) (*chain.MintResult, error)
}

// Observer receives every state transition in order.
type Observer func(State)

// Pipeline wires the three external collaborators.
type Pipeline struct {
	generator ImageGenerator
	uploader  Uploader
	minter    Minter
	logger    *infra.Logger
}

// New builds a pipeline. A nil logger discards output.
func New(generator ImageGenerator, uploader Uploader, minter Minter, logger *infra.Logger) *Pipeline {
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	return &Pipeline{generator: generator, uploader: uploader, minter: minter, logger: logger}
}

type run struct {
	state   State
	observe Observer
	logger  zerolog.Logger
}

func (r *run) emit() {
	if r.observe != nil {
		r.observe(r.state)
	}
}

func (r *run) advance(stage Stage) {
	r.state.Stage = stage
	r.state.Status = StatusText(stage)
	r.logger.Info().Str("stage", string(stage)).Msg("pipeline: stage started")
	r.emit()
}

func (r *run) fail(stage Stage, err error) (State, error) {
	stageErr := &StageError{Stage: stage, Message: err.Error(), err: err}
	r.state.Stage = StageIdle
	r.state.Busy = false
	r.state.Status = stageErr.Message
	r.state.Err = stageErr
	r.logger.Error().Err(err).Str("stage", string(stage)).Msg("pipeline: stage failed")
	r.emit()
	return r.state, stageErr
}

// Run executes one submit cycle. The returned state is always idle; on
// failure it carries a StageError that is also returned as the error.
// A logger attached to ctx takes precedence over the pipeline's own.
func (p *Pipeline) Run(ctx context.Context, form Form, observe Observer) (State, error) {
	logger := *p.logger
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		logger = *l
	}
	r := &run{state: Idle(), observe: observe, logger: logger}

	r.state.Stage = StageValidating
	r.emit()
	form = form.Normalize()
	if err := form.Validate(); err != nil {
		return r.fail(StageValidating, err)
	}
	r.state.Form = form
	r.state.Busy = true

	r.advance(StageGeneratingImage)
	if err := ctx.Err(); err != nil {
		return r.fail(StageGeneratingImage, err)
	}
	img, err := p.generator.Generate(ctx, form.Description)
	if err == nil && (img == nil || len(img.Data) == 0) {
		err = errors.New("image generator returned no image")
	}
	if err != nil {
		return r.fail(StageGeneratingImage, err)
	}
	r.state.Image = img

	r.advance(StageUploading)
	if err := ctx.Err(); err != nil {
		return r.fail(StageUploading, err)
	}
	stored, err := p.uploader.Store(ctx, storage.Upload{
		Name:        form.Name,
		Description: form.Description,
		Image:       img.Data,
	})
	if err == nil && (stored == nil || stored.MetadataURL == "") {
		err = errors.New("upload returned no metadata url")
	}
	if err != nil {
		return r.fail(StageUploading, err)
	}
	r.state.CID = stored.CID
	r.state.MetadataURL = stored.MetadataURL
	r.logger = r.logger.With().Str("cid", stored.CID).Logger()

	r.advance(StageMinting)
	if err := ctx.Err(); err != nil {
		return r.fail(StageMinting, err)
	}
	minted, err := p.minter.Mint(ctx, stored.MetadataURL)
	if err == nil && minted == nil {
		err = errors.New("minter returned no result")
	}
	if err != nil {
		return r.fail(StageMinting, err)
	}
	r.state.TxHash = minted.TxHash.Hex()
	if minted.TokenID != nil {
		r.state.TokenID = minted.TokenID.String()
	}

	r.state.Stage = StageIdle
	r.state.Busy = false
	r.state.Status = ""
	r.logger.Info().
		Str("tx_hash", r.state.TxHash).
		Str("metadata_url", r.state.MetadataURL).
		Msg("pipeline: minted")
	r.emit()
	return r.state, nil
}
