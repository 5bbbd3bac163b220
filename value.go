// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// value.go — re-exports of the value codec, storage records and ambient
// interfaces so callers only import this package.

package eav

import (
	"github.com/AndrewDonelson/eav/internal/clock"
	"github.com/AndrewDonelson/eav/internal/codec"
	"github.com/AndrewDonelson/eav/internal/metrics"
	"github.com/AndrewDonelson/eav/internal/record"
	"github.com/AndrewDonelson/eav/internal/valuecodec"
)

type (
	// Symbol is a symbolic string value or key.
	Symbol = valuecodec.Symbol
	// ValueType is the persisted value_type tag.
	ValueType = valuecodec.Type
	// ValueCodec converts values to and from their (tag, text) form.
	ValueCodec = valuecodec.Codec
	// BlobCodec serializes Object-tagged values.
	BlobCodec = codec.Codec
	// Row is one persisted attribute entry.
	Row = record.Row
	// KeyDescriptor is a registered attribute key.
	KeyDescriptor = record.Key
	// EntryWriter applies entry upserts and deletes.
	EntryWriter = record.Writer
	// Clock supplies the timestamps passed to Owner.TouchModified.
	Clock = clock.Clock
	// MetricsRecorder receives load, flush and cache counters.
	MetricsRecorder = metrics.Recorder
)

const (
	TypeString   = valuecodec.TypeString
	TypeSymbol   = valuecodec.TypeSymbol
	TypeInteger  = valuecodec.TypeInteger
	TypeFloat    = valuecodec.TypeFloat
	TypeComplex  = valuecodec.TypeComplex
	TypeRational = valuecodec.TypeRational
	TypeBoolean  = valuecodec.TypeBoolean
	TypeObject   = valuecodec.TypeObject
)

// Classify returns the tag v would be stored under; ok is false for nil.
func Classify(v any) (t ValueType, ok bool) {
	return valuecodec.Classify(v)
}
