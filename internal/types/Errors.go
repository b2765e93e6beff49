/*

This file contains the registered error set for the cellar core. Callers wrap
these with context at the call site and test with errors.Is.

*/

package types

import (
	errorsmod "cosmossdk.io/errors"
)

const Codespace = "cellar"

var (
	// User errors.
	ErrZeroShares            = errorsmod.Register(Codespace, 2, "operation results in zero shares")
	ErrZeroAssets            = errorsmod.Register(Codespace, 3, "operation results in zero assets")
	ErrInvalidAmount         = errorsmod.Register(Codespace, 4, "amount must be positive")
	ErrExceedsMax            = errorsmod.Register(Codespace, 5, "amount exceeds maximum")
	ErrSharesAreLocked       = errorsmod.Register(Codespace, 6, "shares are locked")
	ErrNotApprovedForDeposit = errorsmod.Register(Codespace, 7, "caller not approved to deposit on behalf of receiver")
	ErrInsufficientShares    = errorsmod.Register(Codespace, 8, "insufficient share balance")
	ErrInsufficientAllowance = errorsmod.Register(Codespace, 9, "insufficient share allowance")
	ErrInsufficientFunds     = errorsmod.Register(Codespace, 10, "insufficient funds")

	// Configuration errors.
	ErrPositionAlreadyUsed       = errorsmod.Register(Codespace, 20, "position already used")
	ErrPositionNotUsed           = errorsmod.Register(Codespace, 21, "position not used")
	ErrPositionNotInCatalogue    = errorsmod.Register(Codespace, 22, "position not in catalogue")
	ErrAdaptorNotInCatalogue     = errorsmod.Register(Codespace, 23, "adaptor not in catalogue")
	ErrPositionArrayFull         = errorsmod.Register(Codespace, 24, "position array full")
	ErrInvalidHoldingPosition    = errorsmod.Register(Codespace, 25, "invalid holding position")
	ErrRemovingHoldingPosition   = errorsmod.Register(Codespace, 26, "cannot remove holding position")
	ErrDebtMismatch              = errorsmod.Register(Codespace, 27, "position debt classification mismatch")
	ErrPositionNotEmpty          = errorsmod.Register(Codespace, 28, "position balance must be zero")
	ErrInvalidFee                = errorsmod.Register(Codespace, 29, "invalid fee")
	ErrInvalidFeeCut             = errorsmod.Register(Codespace, 30, "invalid fee cut")
	ErrInvalidShareLockPeriod    = errorsmod.Register(Codespace, 31, "invalid share lock period")
	ErrInvalidRebalanceDeviation = errorsmod.Register(Codespace, 32, "invalid rebalance deviation")
	ErrUnknownAdaptor            = errorsmod.Register(Codespace, 33, "unknown adaptor")
	ErrUntrustedPosition         = errorsmod.Register(Codespace, 34, "position not trusted by registry")
	ErrUntrustedAdaptor          = errorsmod.Register(Codespace, 35, "adaptor not trusted by registry")
	ErrAssetNotSupported         = errorsmod.Register(Codespace, 36, "asset not supported")

	// Invariant violations. Fatal to the call, no partial success.
	ErrIncompleteWithdraw      = errorsmod.Register(Codespace, 40, "incomplete withdrawal")
	ErrTotalAssetsDeviated     = errorsmod.Register(Codespace, 41, "total assets deviated outside allowed range")
	ErrTotalSharesChanged      = errorsmod.Register(Codespace, 42, "total shares must remain constant during rebalance")
	ErrReentrancy              = errorsmod.Register(Codespace, 43, "reentrant call")
	ErrTotalDebtExceedsCredit  = errorsmod.Register(Codespace, 44, "total debt exceeds total credit")
	ErrExternalReceiverBlocked = errorsmod.Register(Codespace, 45, "external receivers blocked during rebalance")

	// Adaptor errors.
	ErrUserDepositsNotAllowed  = errorsmod.Register(Codespace, 46, "user deposits not allowed for this position")
	ErrUserWithdrawsNotAllowed = errorsmod.Register(Codespace, 47, "user withdraws not allowed for this position")
	ErrInvalidAdaptorCall      = errorsmod.Register(Codespace, 48, "invalid adaptor call")

	// Emergency states.
	ErrCellarPaused      = errorsmod.Register(Codespace, 50, "cellar is paused")
	ErrCellarShutdown    = errorsmod.Register(Codespace, 51, "cellar is shut down")
	ErrCellarNotShutdown = errorsmod.Register(Codespace, 52, "cellar is not shut down")
	ErrUnauthorized      = errorsmod.Register(Codespace, 53, "caller not authorized")
)
