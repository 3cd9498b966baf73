package domain

import "errors"

var (
	ErrUnknownSpread     = errors.New("unknown spread type")
	ErrDeckExhausted     = errors.New("not enough cards in deck for spread")
	ErrDuplicateCard     = errors.New("duplicate card in selection")
	ErrCardNotFound      = errors.New("card not found in deck")
	ErrEmptyQuestion     = errors.New("question must not be empty")
	ErrUpstreamLLM       = errors.New("upstream text generation failure")
	ErrUpstreamRetrieval = errors.New("upstream retrieval failure")
)
