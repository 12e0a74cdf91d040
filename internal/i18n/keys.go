// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Authentication
	KeyAuthRequired           = "auth.required"
	KeyAuthInvalidToken       = "auth.invalid_token"
	KeyAuthInvalidCredentials = "auth.invalid_credentials"
	KeyAuthLoginSuccess       = "auth.login_success"
	KeyAdminAccessDenied      = "admin.access_denied"

	// Validation
	KeyValidationInvalid = "validation.invalid"

	// Resources
	KeyBatchNotFound      = "batch.not_found"
	KeySubBatchNotFound   = "sub_batch.not_found"
	KeySaleNotFound       = "sale.not_found"
	KeySettlementNotFound = "settlement.not_found"
	KeySellerNotFound     = "seller.not_found"
	KeyAlertNotFound      = "alert.not_found"
	KeyOperatorNotFound   = "operator.not_found"

	// Domain errors, keyed by error kind
	KeyErrorInvalidTransition   = "error.invalid_state_transition"
	KeyErrorConcurrentUpdate    = "error.concurrent_update"
	KeyErrorInsufficientStock   = "error.insufficient_stock"
	KeyErrorGiftQuotaExceeded   = "error.gift_quota_exceeded"
	KeyErrorInvalidPromo        = "error.invalid_promo_quantity"
	KeyErrorMissingPrice        = "error.missing_price"
	KeyErrorAmountMismatch      = "error.amount_mismatch"
	KeyErrorRecruiterChain      = "error.recruiter_chain"
	KeyErrorUnsupportedSequence = "error.unsupported_sequence"
	KeyErrorInternal            = "error.internal"

	// Rate limiting
	KeyRateLimitExceeded = "rate_limit.exceeded"
)
