package registry

import "errors"

var (
	ErrNotOwner           = errors.New("caller is not the registry owner")
	ErrInvalidName        = errors.New("promotion name is empty")
	ErrDuplicatePromotion = errors.New("promotion already exists")
	ErrInvalidLimits      = errors.New("customer and usage limits must be positive")
	ErrInvalidExpiry      = errors.New("promotion expiry is not set")
	ErrInvalidCustomer    = errors.New("customer id is empty")
	ErrPromotionNotFound  = errors.New("promotion not found")
	ErrPromotionExpired   = errors.New("promotion expired")
	ErrCapacityExceeded   = errors.New("promotion reached max customers")
	ErrUsageLimitExceeded = errors.New("customer reached max uses")
	ErrCustomerNotActive  = errors.New("customer is not active in promotion")
	ErrCorruptState       = errors.New("stored registry state is inconsistent")
	ErrJournalUnavailable = errors.New("event journal is not connected")
)

// Kind returns a short stable label for a registry error, "" for foreign errors.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrNotOwner):
		return "not_owner"
	case errors.Is(err, ErrInvalidName):
		return "invalid_name"
	case errors.Is(err, ErrDuplicatePromotion):
		return "duplicate_promotion"
	case errors.Is(err, ErrInvalidLimits):
		return "invalid_limits"
	case errors.Is(err, ErrInvalidExpiry):
		return "invalid_expiry"
	case errors.Is(err, ErrInvalidCustomer):
		return "invalid_customer"
	case errors.Is(err, ErrPromotionNotFound):
		return "promotion_not_found"
	case errors.Is(err, ErrPromotionExpired):
		return "promotion_expired"
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, ErrUsageLimitExceeded):
		return "usage_limit_exceeded"
	case errors.Is(err, ErrCustomerNotActive):
		return "customer_not_active"
	case errors.Is(err, ErrCorruptState):
		return "corrupt_state"
	case errors.Is(err, ErrJournalUnavailable):
		return "journal_unavailable"
	}
	return ""
}
