// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// errors.go — sentinel error variables returned by the public eav API,
// covering key and value validation, merge feasibility, bag definition and
// storage lifecycle, plus the structured UnknownKeyError.

// Package eav provides schema-less attribute bags attached to parent records:
// typed values stored one per row, loaded lazily, and committed on Flush.
package eav

import (
	"errors"
	"fmt"
	"strings"

	"github.com/AndrewDonelson/eav/internal/valuecodec"
)

// Key and value errors
var (
	ErrInvalidKey   = errors.New("eav: key must be a non-blank string or Symbol")
	ErrInvalidValue = errors.New("eav: value must not be nil or empty")
	ErrUnknownKey   = errors.New("eav: key not registered")
)

// Merge errors
var (
	ErrUnsupportedShovelType = errors.New("eav: can only merge a map or an *AttributeStore")
)

// Flush errors
var (
	ErrOwnerNotPersisted = errors.New("eav: owner has no id; persist it before flushing")
)

// Codec errors
var (
	ErrDecodeFailed = valuecodec.ErrDecodeFailed
	ErrEncodeFailed = valuecodec.ErrEncodeFailed
)

// Bag errors
var (
	ErrBagNotFound  = errors.New("eav: bag not defined")
	ErrBagDuplicate = errors.New("eav: bag already defined")
	ErrInvalidBag   = errors.New("eav: invalid bag schema")
	ErrNoRegistrar  = errors.New("eav: key registry does not support registration")
)

// Lifecycle errors
var (
	ErrClosed     = errors.New("eav: database closed")
	ErrNoPostgres = errors.New("eav: postgres not configured")
)

// UnknownKeyError lists keys that are not registered. It matches ErrUnknownKey.
type UnknownKeyError struct {
	Keys []string
}

func (e *UnknownKeyError) Error() string {
	return fmt.Sprintf("eav: keys must already have been defined; missing keys: [%s]", strings.Join(e.Keys, ", "))
}

func (e *UnknownKeyError) Is(target error) bool {
	return target == ErrUnknownKey
}
