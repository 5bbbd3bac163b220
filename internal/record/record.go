// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// record.go — persisted row and key descriptor shapes shared by every storage
// backend, plus the Writer interface the flush path drives.

// Package record holds the storage-facing types of an attribute bag.
package record

import (
	"context"
	"errors"

	"github.com/AndrewDonelson/eav/internal/valuecodec"
)

// Row is one persisted attribute entry.
type Row struct {
	ID        int64           `json:"id" msgpack:"id"`
	OwnerID   int64           `json:"owner_id" msgpack:"owner_id"`
	KeyID     int64           `json:"key_id" msgpack:"key_id"`
	KeyName   string          `json:"key_name" msgpack:"key_name"`
	Value     string          `json:"value" msgpack:"value"`
	ValueType valuecodec.Type `json:"value_type" msgpack:"value_type"`
	SymbolKey bool            `json:"symbol_key" msgpack:"symbol_key"`
}

// Key is a registered attribute key descriptor.
type Key struct {
	ID       int64  `json:"id" msgpack:"id"`
	Name     string `json:"name" msgpack:"name"`
	Symbolic bool   `json:"symbolic" msgpack:"symbolic"`
}

// ErrKeyNotFound is returned by key registries when a name is not registered.
var ErrKeyNotFound = errors.New("eav: key not found in registry")

// Writer applies entry mutations to storage.
// Upsert must set row.ID once the row is persisted. Delete removes the row
// identified by (OwnerID, KeyID) and is a no-op when no such row exists.
type Writer interface {
	Upsert(ctx context.Context, row *Row) error
	Delete(ctx context.Context, row Row) error
}
