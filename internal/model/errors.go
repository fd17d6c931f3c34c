package model

import "errors"

// Authorization failures. The caller lacks the required role; the attempted
// operation is aborted with no state change.
var (
	ErrNotOwnerOrAdmin = errors.New("caller is not owner or admin")
	ErrNotAllowed      = errors.New("caller is not allowed")
)

// Validation failures. Caller-supplied parameters violate an invariant; the
// caller must resubmit with corrected parameters.
var (
	ErrNotAllowedPairedToken     = errors.New("paired token is not allow-listed")
	ErrInvalidTick               = errors.New("tick is not a multiple of the fee tier's tick spacing")
	ErrInvalidRewardPercentage   = errors.New("reward percentage exceeds 100")
	ErrExceedsMaxBps             = errors.New("combined reward percentages exceed 100")
	ErrInvalidCampaignPercentage = errors.New("campaign percentage exceeds 100")
)

// Consistency failures. A precondition about derived or looked-up state did
// not hold.
var (
	ErrInvalidSalt    = errors.New("token address does not sort below paired token")
	ErrInvalidTokenID = errors.New("no reward recipient registered for position")
	ErrTokenNotFound  = errors.New("token was not deployed by this factory")
)

// Ledger-level failures.
var (
	ErrSaltCollision         = errors.New("contract already deployed at derived address")
	ErrInsufficientBalance   = errors.New("insufficient token balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrInsufficientNative    = errors.New("insufficient native balance")
)
