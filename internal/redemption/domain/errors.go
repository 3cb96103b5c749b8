package domain

import "errors"

var ErrNoCatalog = errors.New("redemption: catalog snapshot unavailable")
