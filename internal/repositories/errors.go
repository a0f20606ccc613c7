package repositories

import "errors"

var (
	ErrPSPNotFound           = errors.New("psp not found")
	ErrRoutingConfigNotFound = errors.New("routing config not found")
	ErrPaymentNotFound       = errors.New("payment not found")
	ErrAttemptAlreadyFinal   = errors.New("payment attempt is not processing")
)
