package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrInvalidPosition = errors.New("invalid position")
	ErrNoQuote         = errors.New("no quote available")
	ErrNoLiquidity     = errors.New("no liquidity data")
	ErrUnknownCurve    = errors.New("unknown curve account")
)
