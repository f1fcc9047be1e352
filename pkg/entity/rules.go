package entity

import (
	"fmt"
	"math"
	"strconv"
)

// Rule extracts one candidate value from a record. It reports false when the
// record has nothing usable for it, letting Resolve move on to the next rule.
type Rule func(r Record) (string, bool)

// IDRules is the identity fallback chain: the feature id, then well-known
// identifier properties, then the record's position in its payload.
var IDRules = []Rule{
	FeatureID(),
	Property("id"),
	Property("vehicle_id"),
	Property("trip_id"),
	Property("journey_id"),
	Property("segment_id"),
	Index(),
}

// ModeRules resolves the coarse category used for icon selection.
var ModeRules = []Rule{
	Property("mode"),
	Property("route_type"),
	Property("vehicle_type"),
	Property("type"),
	Constant(DefaultMode),
}

// Resolve returns the value of the first rule that matches.
func Resolve(r Record, rules []Rule) (string, bool) {
	for _, rule := range rules {
		if v, ok := rule(r); ok {
			return v, true
		}
	}
	return "", false
}

// FeatureID matches any non-null top-level feature id, including 0 and "".
func FeatureID() Rule {
	return func(r Record) (string, bool) {
		if r.ID == nil {
			return "", false
		}
		return Stringify(r.ID), true
	}
}

// Property matches a property that holds a meaningful value. Empty strings,
// zero, false and null are skipped.
func Property(name string) Rule {
	return func(r Record) (string, bool) {
		v, ok := r.Properties[name]
		if !ok || !meaningful(v) {
			return "", false
		}
		return Stringify(v), true
	}
}

func Index() Rule {
	return func(r Record) (string, bool) {
		return strconv.Itoa(r.Index), true
	}
}

func Constant(v string) Rule {
	return func(Record) (string, bool) { return v, true }
}

func meaningful(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0 && !math.IsNaN(t)
	case int:
		return t != 0
	}
	return true
}

// Stringify renders JSON scalars the way they appear on the wire, so a
// numeric id 42 becomes "42" rather than "42.000000".
func Stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

// Number reads a JSON number, reporting false for anything else.
func Number(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	}
	return 0, false
}
