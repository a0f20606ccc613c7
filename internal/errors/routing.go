package errors

var (
	ErrNoEligiblePSP = &DomainError{
		Code:    "NO_ELIGIBLE_PSP",
		Message: "no eligible payment service provider",
	}
	ErrProviderDeclined = &DomainError{
		Code:    "PROVIDER_DECLINED",
		Message: "payment declined by provider",
	}
	ErrProviderTransport = &DomainError{
		Code:    "PROVIDER_TRANSPORT_ERROR",
		Message: "provider unreachable",
	}
	ErrCredentialDecryption = &DomainError{
		Code:    "CREDENTIAL_DECRYPTION_FAILURE",
		Message: "psp credentials could not be decrypted",
	}
	ErrCapacityLedgerUnavailable = &DomainError{
		Code:    "CAPACITY_LEDGER_UNAVAILABLE",
		Message: "capacity usage could not be read",
	}
	ErrRecorderWriteFailure = &DomainError{
		Code:    "RECORDER_WRITE_FAILURE",
		Message: "payment attempt could not be recorded",
	}
	ErrRoutingConfigInvalid = &DomainError{
		Code:    "ROUTING_CONFIG_INVALID",
		Message: "invalid routing configuration",
	}
	ErrInvalidRouteRequest = &DomainError{
		Code:    "INVALID_ROUTE_REQUEST",
		Message: "invalid payment routing request",
	}
	ErrPSPNotFound = &DomainError{
		Code:    "PSP_NOT_FOUND",
		Message: "psp not found",
	}
)
