package domain

import "errors"

var (
	ErrNoCatalog     = errors.New("metrics: catalog snapshot unavailable")
	ErrRunInProgress = errors.New("metrics: an aggregation pass is already running")
)
