// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// owner.go — the parent record contract an attribute bag hangs off.

package eav

import "time"

// Owner is the parent record an AttributeStore belongs to.
type Owner interface {
	// OwnerID returns the record's identity; ok is false until it is persisted.
	OwnerID() (id int64, ok bool)
	// TouchModified updates the record's last-modified timestamp.
	TouchModified(at time.Time)
}

// Record is a minimal Owner for callers without their own record type.
type Record struct {
	ID        int64
	UpdatedAt time.Time
}

// OwnerID implements Owner. A zero ID means not yet persisted.
func (r *Record) OwnerID() (int64, bool) { return r.ID, r.ID != 0 }

// TouchModified implements Owner.
func (r *Record) TouchModified(at time.Time) { r.UpdatedAt = at }
