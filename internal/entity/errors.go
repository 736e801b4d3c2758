package entity

import "errors"

var (
	ErrItemNotFound      = errors.New("item not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrCustomerNotFound  = errors.New("customer not found")
	ErrDuplicateCustomer = errors.New("customer already exists")
	ErrInvalidQuantity   = errors.New("quantity must be at least 1")
	ErrDuplicateRequest  = errors.New("idempotency key already used")
	ErrOutOfStock        = errors.New("item out of stock")
	ErrUnauthorized      = errors.New("unauthorized")
)
