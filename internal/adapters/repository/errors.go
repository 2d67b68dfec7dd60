package repository

import "errors"

// Sentinel kinds for ledger storage errors.
var (
	ErrInvalidRefID = errors.New("invalid player ref id")
	ErrLoadLedger   = errors.New("load ledger failed")
	ErrSaveLedger   = errors.New("save ledger failed")
)
