// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// valuecodec.go — closed type-tag table for attribute values: classification
// of Go runtime values, and the per-tag encode/decode pair that maps a value
// to its (tag, text) storage form and back.

// Package valuecodec maps attribute values to and from their stored
// (type tag, text) representation.
package valuecodec

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/AndrewDonelson/eav/internal/codec"
)

// Type is the persisted value_type tag.
type Type int16

// Tag values are persisted; never renumber them.
const (
	TypeString   Type = 0
	TypeSymbol   Type = 1
	TypeInteger  Type = 2
	TypeFloat    Type = 3
	TypeComplex  Type = 4
	TypeRational Type = 5
	TypeBoolean  Type = 6
	TypeObject   Type = 7
)

var typeNames = [...]string{
	TypeString:   "String",
	TypeSymbol:   "Symbol",
	TypeInteger:  "Integer",
	TypeFloat:    "Float",
	TypeComplex:  "Complex",
	TypeRational: "Rational",
	TypeBoolean:  "Boolean",
	TypeObject:   "Object",
}

func (t Type) String() string {
	if t >= 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", int16(t))
}

// Symbol is an interned-style name, stored with the Symbol tag.
type Symbol string

var (
	ErrEncodeFailed = errors.New("eav: failed to encode value for storage")
	ErrDecodeFailed = errors.New("eav: failed to decode stored value")
)

// Classify returns the tag v would be stored under. ok is false for nil,
// which is never stored.
func Classify(v any) (t Type, ok bool) {
	switch v.(type) {
	case nil:
		return 0, false
	case string:
		return TypeString, true
	case Symbol:
		return TypeSymbol, true
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, *big.Int:
		return TypeInteger, true
	case float32, float64:
		return TypeFloat, true
	case complex64, complex128:
		return TypeComplex, true
	case *big.Rat:
		return TypeRational, true
	case bool:
		return TypeBoolean, true
	default:
		return TypeObject, true
	}
}

// Codec encodes and decodes values. Blob serializes Object values;
// the zero Codec uses codec.Default.
type Codec struct {
	Blob codec.Codec
}

func (c Codec) blob() codec.Codec {
	if c.Blob == nil {
		return codec.Default
	}
	return c.Blob
}

// Encode returns the tag and text form of v.
func (c Codec) Encode(v any) (Type, string, error) {
	t, ok := Classify(v)
	if !ok {
		return 0, "", fmt.Errorf("%w: nil value", ErrEncodeFailed)
	}
	var (
		s   string
		err error
	)
	switch t {
	case TypeString:
		s = v.(string)
	case TypeSymbol:
		s = string(v.(Symbol))
	case TypeInteger:
		s, err = encodeInteger(v)
	case TypeFloat:
		s = encodeFloat(v)
	case TypeComplex:
		s = encodeComplex(v)
	case TypeRational:
		s, err = encodeRational(v.(*big.Rat))
	case TypeBoolean:
		s = strconv.FormatBool(v.(bool))
	case TypeObject:
		s, err = c.encodeObject(v)
	}
	if err != nil {
		return 0, "", err
	}
	return t, s, nil
}

// Decode restores the value stored as (t, s). Unknown tags pass s through.
func (c Codec) Decode(t Type, s string) (any, error) {
	switch t {
	case TypeString:
		return s, nil
	case TypeSymbol:
		return Symbol(s), nil
	case TypeInteger:
		return decodeInteger(s)
	case TypeFloat:
		return decodeFloat(s)
	case TypeComplex:
		return decodeComplex(s)
	case TypeRational:
		return decodeRational(s)
	case TypeBoolean:
		return s == "true", nil
	case TypeObject:
		return c.decodeObject(s)
	default:
		return s, nil
	}
}

func encodeInteger(v any) (string, error) {
	switch n := v.(type) {
	case int:
		return strconv.FormatInt(int64(n), 10), nil
	case int8:
		return strconv.FormatInt(int64(n), 10), nil
	case int16:
		return strconv.FormatInt(int64(n), 10), nil
	case int32:
		return strconv.FormatInt(int64(n), 10), nil
	case int64:
		return strconv.FormatInt(n, 10), nil
	case uint:
		return strconv.FormatUint(uint64(n), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(n), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(n), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(n), 10), nil
	case uint64:
		return strconv.FormatUint(n, 10), nil
	case *big.Int:
		if n == nil {
			return "", fmt.Errorf("%w: nil *big.Int", ErrEncodeFailed)
		}
		return n.String(), nil
	}
	return "", fmt.Errorf("%w: %T is not an integer", ErrEncodeFailed, v)
}

// decodeInteger yields an int, or a *big.Int when the text overflows 64 bits.
func decodeInteger(s string) (any, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err == nil {
		return int(n), nil
	}
	if errors.Is(err, strconv.ErrRange) {
		if b, ok := new(big.Int).SetString(s, 10); ok {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w: integer %q: %v", ErrDecodeFailed, s, err)
}

func encodeFloat(v any) string {
	if f, ok := v.(float32); ok {
		return strconv.FormatFloat(float64(f), 'g', -1, 32)
	}
	return strconv.FormatFloat(v.(float64), 'g', -1, 64)
}

func decodeFloat(s string) (any, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: float %q: %v", ErrDecodeFailed, s, err)
	}
	return f, nil
}

func encodeComplex(v any) string {
	if c, ok := v.(complex64); ok {
		return strconv.FormatComplex(complex128(c), 'g', -1, 64)
	}
	return strconv.FormatComplex(v.(complex128), 'g', -1, 128)
}

func decodeComplex(s string) (any, error) {
	c, err := strconv.ParseComplex(s, 128)
	if err != nil {
		return nil, fmt.Errorf("%w: complex %q: %v", ErrDecodeFailed, s, err)
	}
	return c, nil
}

func encodeRational(r *big.Rat) (string, error) {
	if r == nil {
		return "", fmt.Errorf("%w: nil *big.Rat", ErrEncodeFailed)
	}
	return r.String(), nil
}

func decodeRational(s string) (any, error) {
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, fmt.Errorf("%w: rational %q", ErrDecodeFailed, s)
	}
	return r, nil
}

func (c Codec) encodeObject(v any) (string, error) {
	b, err := c.blob().Marshal(v)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrEncodeFailed, c.blob().Name(), err)
	}
	return string(b), nil
}

func (c Codec) decodeObject(s string) (any, error) {
	var v any
	if err := c.blob().Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecodeFailed, c.blob().Name(), err)
	}
	return v, nil
}
