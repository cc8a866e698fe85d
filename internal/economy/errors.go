// Package economy defines the capabilities shared by every farm subsystem:
// the wallet, the per-producer inventories, the money ledger hook and the
// error taxonomy returned by player operations.
package economy

import "errors"

// Every player operation that fails returns one of these (possibly wrapped
// with context) and leaves all state unchanged.
var (
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrInsufficientInventory   = errors.New("insufficient inventory")
	ErrInsufficientCreditScore = errors.New("insufficient credit score")
	ErrExceedsMaxLoan          = errors.New("exceeds maximum loan")
	ErrNotFound                = errors.New("not found")
	ErrNotReady                = errors.New("not ready")
	ErrOccupiedPlot            = errors.New("plot occupied")
	ErrUnknownKind             = errors.New("unknown kind")
	ErrUnsupportedOperation    = errors.New("unsupported operation")
	ErrNotOperational          = errors.New("not operational")
	ErrAlreadyActive           = errors.New("already active")
	ErrAlreadyInstalled        = errors.New("already installed")
)
