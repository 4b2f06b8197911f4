package ledger

import (
	"context"
	"errors"
)

var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrInvalidAccountID     = errors.New("invalid account id")
	ErrUnknownProject       = errors.New("unknown offset project")
	ErrUnknownReward        = errors.New("unknown reward")
	ErrUnknownCode          = errors.New("unknown product code")
	ErrInsufficientFunds    = errors.New("insufficient points")
	ErrRewardUnavailable    = errors.New("reward unavailable")
	ErrAlreadyCheckedIn     = errors.New("already checked in today")
	ErrNotFound             = errors.New("account not found")
	ErrAccountExists        = errors.New("account already exists")
	ErrAccountNotOpen       = errors.New("account session not open")
	ErrTransientUnavailable = errors.New("ledger temporarily unavailable")
	ErrStaleAccount         = errors.New("account changed since it was loaded")
	ErrInvariant            = errors.New("account invariant violated")
)

// Kind groups errors by how a caller should react to them.
type Kind int

const (
	KindNone Kind = iota
	KindValidation
	KindBusinessRule
	KindNotFound
	KindTransient
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindValidation:
		return "validation"
	case KindBusinessRule:
		return "business_rule"
	case KindNotFound:
		return "not_found"
	case KindTransient:
		return "transient"
	default:
		return "internal"
	}
}

// KindOf classifies err. Unrecognised errors are Internal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidPaymentMethod),
		errors.Is(err, ErrInvalidAccountID):
		return KindValidation
	case errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrRewardUnavailable),
		errors.Is(err, ErrAlreadyCheckedIn),
		errors.Is(err, ErrAccountExists):
		return KindBusinessRule
	case errors.Is(err, ErrUnknownProject),
		errors.Is(err, ErrUnknownReward),
		errors.Is(err, ErrUnknownCode),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrAccountNotOpen):
		return KindNotFound
	case errors.Is(err, ErrTransientUnavailable),
		errors.Is(err, ErrStaleAccount),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return KindTransient
	default:
		return KindInternal
	}
}

// reason is the short label used in logs and metrics.
func reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrRewardUnavailable):
		return "reward_unavailable"
	case errors.Is(err, ErrAlreadyCheckedIn):
		return "already_checked_in"
	default:
		return KindOf(err).String()
	}
}
