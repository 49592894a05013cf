package model

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// ValueKind classifies how an indicator's raw value is expressed.
type ValueKind string

const (
	ValueKindNumeric ValueKind = "numeric"
	ValueKindBinary  ValueKind = "binary"
	ValueKindPolicy  ValueKind = "policy"
)

// Valid reports whether k is a known value kind.
func (k ValueKind) Valid() bool {
	switch k {
	case ValueKindNumeric, ValueKindBinary, ValueKindPolicy:
		return true
	}
	return false
}

// PolicyStatus is the coded state of a policy or regulatory instrument.
type PolicyStatus int

const (
	PolicyAbsent  PolicyStatus = 0
	PolicyPartial PolicyStatus = 1 // drafted, proposed or partially implemented
	PolicyEnacted PolicyStatus = 2
)

func (s PolicyStatus) String() string {
	switch s {
	case PolicyAbsent:
		return "absent"
	case PolicyPartial:
		return "partial"
	case PolicyEnacted:
		return "enacted"
	}
	return "unknown"
}

// Value is a closed union over the three indicator value categories.
// The only implementations are NumericValue, BinaryValue and PolicyValue.
type Value interface {
	Kind() ValueKind
	// Code returns the numeric encoding used for storage and export.
	Code() float64
	isValue()
}

// NumericValue is a finite measurement in the indicator's unit.
type NumericValue float64

// BinaryValue records presence (true) or absence (false).
type BinaryValue bool

// PolicyValue records a policy instrument's enactment status.
type PolicyValue PolicyStatus

func (NumericValue) Kind() ValueKind { return ValueKindNumeric }
func (v NumericValue) Code() float64 { return float64(v) }
func (NumericValue) isValue()        {}

func (BinaryValue) Kind() ValueKind { return ValueKindBinary }
func (BinaryValue) isValue()        {}

func (PolicyValue) Kind() ValueKind { return ValueKindPolicy }
func (v PolicyValue) Code() float64 { return float64(v) }
func (PolicyValue) isValue()        {}

func (v BinaryValue) Code() float64 {
	if v {
		return 1
	}
	return 0
}

// DecodeValue rebuilds a typed value from its stored numeric code.
// It never coerces: non-finite numbers and codes outside a category's
// domain are errors.
func DecodeValue(kind ValueKind, code float64) (Value, error) {
	if math.IsNaN(code) || math.IsInf(code, 0) {
		return nil, eris.Errorf("model: non-finite %s value", kind)
	}
	switch kind {
	case ValueKindNumeric:
		return NumericValue(code), nil
	case ValueKindBinary:
		switch code {
		case 0:
			return BinaryValue(false), nil
		case 1:
			return BinaryValue(true), nil
		}
		return nil, eris.Errorf("model: binary value must be 0 or 1, got %v", code)
	case ValueKindPolicy:
		switch code {
		case 0, 1, 2:
			return PolicyValue(PolicyStatus(code)), nil
		}
		return nil, eris.Errorf("model: policy value must be 0, 1 or 2, got %v", code)
	}
	return nil, eris.Errorf("model: unknown value kind %q", kind)
}

// thousandsGrouped matches numbers whose commas separate groups of three
// digits, such as "1,250" or "-12,500.5".
var thousandsGrouped = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d*)?$`)

// ParseValue parses collector text into a typed value. Binary values
// accept yes/no/true/false/1/0; policy values accept absent/partial/
// proposed/draft/enacted or their numeric codes.
func ParseValue(kind ValueKind, raw string) (Value, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return nil, eris.Errorf("model: empty %s value", kind)
	}
	switch kind {
	case ValueKindNumeric:
		if strings.Contains(s, ",") {
			if !thousandsGrouped.MatchString(s) {
				return nil, eris.Errorf("model: parse numeric value %q: comma is only accepted as a thousands separator", raw)
			}
			s = strings.ReplaceAll(s, ",", "")
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, eris.Wrapf(err, "model: parse numeric value %q", raw)
		}
		return DecodeValue(kind, f)
	case ValueKindBinary:
		switch s {
		case "1", "yes", "true", "y":
			return BinaryValue(true), nil
		case "0", "no", "false", "n":
			return BinaryValue(false), nil
		}
		return nil, eris.Errorf("model: parse binary value %q", raw)
	case ValueKindPolicy:
		switch s {
		case "0", "absent", "none", "no":
			return PolicyValue(PolicyAbsent), nil
		case "1", "partial", "proposed", "draft", "in_progress":
			return PolicyValue(PolicyPartial), nil
		case "2", "enacted", "adopted", "yes":
			return PolicyValue(PolicyEnacted), nil
		}
		return nil, eris.Errorf("model: parse policy value %q", raw)
	}
	return nil, eris.Errorf("model: unknown value kind %q", kind)
}
