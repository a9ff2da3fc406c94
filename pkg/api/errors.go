package api

import "errors"

var (
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrCommandRequired = errors.New("no command given")
	ErrInvalidRule     = errors.New("invalid policy rule")
	ErrReadPolicyFile  = errors.New("read policy file")
	ErrParsePolicyFile = errors.New("parse policy file")
)
