package domain

import "errors"

var (
	ErrKeyNotFound   = errors.New("key not found")
	ErrOffline       = errors.New("offline")
	ErrInvalidAction = errors.New("invalid action")
)
