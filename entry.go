// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// entry.go — one attribute entry: its persisted row plus the in-memory value,
// which is pending (loaded, not yet decoded), set, or cleared (scheduled for
// deletion on the next flush).

package eav

import (
	"fmt"
	"reflect"
	"strings"
)

type valueState uint8

const (
	valuePending valueState = iota
	valueSet
	valueCleared
)

// entry is owned by exactly one AttributeStore and never handed out.
type entry struct {
	row   Row
	value any
	state valueState
}

// newEntry builds an unsaved entry for key holding value.
func newEntry(key KeyDescriptor, value any) (*entry, error) {
	if err := checkKeyName(key.Name); err != nil {
		return nil, err
	}
	if err := checkValue(value); err != nil {
		return nil, err
	}
	return &entry{
		row: Row{
			KeyID:     key.ID,
			KeyName:   key.Name,
			SymbolKey: key.Symbolic,
		},
		value: value,
		state: valueSet,
	}, nil
}

// entryFromRow wraps a loaded row; its value is decoded on first read.
func entryFromRow(r Row) (*entry, error) {
	if err := checkKeyName(r.KeyName); err != nil {
		return nil, fmt.Errorf("row %d: %w", r.ID, err)
	}
	return &entry{row: r, state: valuePending}, nil
}

func (e *entry) cleared() bool { return e.state == valueCleared }

// get returns the entry's value, decoding the stored text once.
func (e *entry) get(c ValueCodec) (any, error) {
	switch e.state {
	case valueCleared:
		return nil, nil
	case valuePending:
		v, err := c.Decode(e.row.ValueType, e.row.Value)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", e.row.KeyName, err)
		}
		e.value = v
		e.state = valueSet
	}
	return e.value, nil
}

// assign replaces the value; nil, typed or not, clears the entry.
func (e *entry) assign(v any) error {
	if isNil(v) {
		e.clear()
		return nil
	}
	if err := checkValue(v); err != nil {
		return err
	}
	e.value = v
	e.state = valueSet
	return nil
}

func (e *entry) clear() {
	e.value = nil
	e.state = valueCleared
}

// encoded returns the row to upsert for ownerID with the value serialized.
// Pending entries keep their stored text untouched.
func (e *entry) encoded(c ValueCodec, ownerID int64) (Row, error) {
	r := e.row
	r.OwnerID = ownerID
	if e.state == valueSet {
		t, s, err := c.Encode(e.value)
		if err != nil {
			return Row{}, fmt.Errorf("key %q: %w", e.row.KeyName, err)
		}
		r.ValueType, r.Value = t, s
	}
	return r, nil
}

func checkKeyName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: blank key", ErrInvalidKey)
	}
	return nil
}

func checkValue(v any) error {
	switch x := v.(type) {
	case nil:
		return fmt.Errorf("%w: nil", ErrInvalidValue)
	case string:
		if x == "" {
			return fmt.Errorf("%w: empty string", ErrInvalidValue)
		}
	case Symbol:
		if x == "" {
			return fmt.Errorf("%w: empty symbol", ErrInvalidValue)
		}
	default:
		if isNil(v) {
			return fmt.Errorf("%w: nil %T", ErrInvalidValue, v)
		}
	}
	return nil
}

// isNil reports whether v is nil or a nil pointer, map, slice, interface,
// func or chan.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// keyName validates a caller-supplied key.
func keyName(key any) (string, error) {
	var name string
	switch k := key.(type) {
	case string:
		name = k
	case Symbol:
		name = string(k)
	default:
		return "", fmt.Errorf("%w: got %T", ErrInvalidKey, key)
	}
	if err := checkKeyName(name); err != nil {
		return "", err
	}
	return name, nil
}
