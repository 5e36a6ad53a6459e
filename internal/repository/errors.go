package repository

import "errors"

var ErrDuplicatePaymentSession = errors.New("order for payment session already exists")
