package pipeline

import (
	"aimint/internal/providers/inference"
)

// Stage is the single discriminated status of a submission.
type Stage string

const (
	StageIdle            Stage = "idle"
	StageValidating      Stage = "validating"
	StageGeneratingImage Stage = "generating_image"
	StageUploading       Stage = "uploading"
	StageMinting         Stage = "minting"
)

// Status text shown while a stage is in flight.
const (
	StatusCreatingImage  = "Creating Image..."
	StatusUploadingImage = "Uploading Image..."
	StatusWaitingForMint = "Waiting for Mint..."
)

// StatusText returns the progress message for stage.
func StatusText(stage Stage) string {
	switch stage {
	case StageGeneratingImage:
		return StatusCreatingImage
	case StageUploading:
		return StatusUploadingImage
	case StageMinting:
		return StatusWaitingForMint
	default:
		return ""
	}
}

// StageError records which stage failed and why.
type StageError struct {
	Stage   Stage  `json:"stage"`
	Message string `json:"message"`
	err     error
}

func (e *StageError) Error() string {
	return string(e.Stage) + ": " + e.Message
}

func (e *StageError) Unwrap() error {
	return e.err
}

// State is an immutable snapshot of one submission. Busy is true exactly
// while a stage is in flight.
type State struct {
	Stage       Stage
	Busy        bool
	Status      string
	Form        Form
	Image       *inference.Image
	CID         string
	MetadataURL string
	TxHash      string
	TokenID     string
	Err         *StageError
}

// Idle is the zero submission state.
func Idle() State {
	return State{Stage: StageIdle}
}

// Failed reports whether the last cycle ended with an error.
func (s State) Failed() bool {
	return s.Stage == StageIdle && s.Err != nil
}

// Succeeded reports whether the last cycle ended with a confirmed mint.
func (s State) Succeeded() bool {
	return s.Stage == StageIdle && s.Err == nil && s.TxHash != ""
}
