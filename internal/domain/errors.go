package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidPrompt       = errors.New("please enter name and description")
	ErrBusy                = errors.New("a submission is already in progress")
	ErrUnsupportedNetwork  = errors.New("unsupported network")
	ErrTransactionReverted = errors.New("transaction reverted")
)
