package webhook

import (
	"encoding/json"

	appLog "nachhilfecal/internal/log"
)

// wrapperKeys are the known envelope keys the webhook backend has been seen
// wrapping its event list in, probed in this order.
var wrapperKeys = []string{"events", "calendar", "body", "data", "items"}

// RawEvent is a single undecoded event object as the source sent it.
type RawEvent map[string]any

// Unwrap reduces an arbitrary decoded JSON value to the list of raw event
// objects it carries. The source's response shape is unstable, so resolution
// is an ordered decision procedure, first match wins:
//
//  1. a bare array                          -> taken as-is
//  2. an object with a known wrapper key    -> that key's array
//  3. an object that looks like one event   -> one-element list
//  4. an object with exactly one array value-> that array (unknown wrapper)
//  5. anything else                         -> empty
//
// Unwrap never fails; unrecognized shapes degrade to "no events", which the
// caller surfaces as a no-data state rather than an error.
func Unwrap(payload any) []RawEvent {
	switch v := payload.(type) {
	case []any:
		return toRawEvents(v)
	case map[string]any:
		for _, key := range wrapperKeys {
			if arr, ok := v[key].([]any); ok {
				return toRawEvents(arr)
			}
		}
		if isSingleEvent(v) {
			return []RawEvent{RawEvent(v)}
		}
		if arr, ok := soleArrayValue(v); ok {
			return toRawEvents(arr)
		}
	}
	return nil
}

// UnwrapJSON decodes body and unwraps it. Malformed JSON degrades to an
// empty list, logged at debug level so the shape can be inspected with -debug.
func UnwrapJSON(body []byte) []RawEvent {
	if len(body) == 0 {
		return nil
	}
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		appLog.Debug("unwrap: response is not valid JSON", "len", len(body))
		return nil
	}
	return Unwrap(payload)
}

// isSingleEvent reports whether obj looks like one bare event rather than an
// envelope: it carries an identifier and a title-ish field.
func isSingleEvent(obj map[string]any) bool {
	if _, ok := obj["id"]; !ok {
		return false
	}
	if _, ok := obj["summary"]; ok {
		return true
	}
	_, ok := obj["title"]
	return ok
}

// soleArrayValue returns the object's single array value, if the object has
// exactly one. Defensive fallback for wrapper keys we have not seen yet.
func soleArrayValue(obj map[string]any) ([]any, bool) {
	var found []any
	count := 0
	for _, v := range obj {
		if arr, ok := v.([]any); ok {
			found = arr
			count++
		}
	}
	if count == 1 {
		return found, true
	}
	return nil, false
}

func toRawEvents(arr []any) []RawEvent {
	out := make([]RawEvent, 0, len(arr))
	for _, item := range arr {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, RawEvent(obj))
		}
		// Non-object entries (numbers, strings, nulls) carry no event data
		// and are skipped without aborting the batch.
	}
	return out
}

// UnwrapNames reduces a roster payload (students or teachers) to a list of
// names. The source has returned bare string arrays, arrays of objects with
// a name field, and the same envelopes Unwrap handles.
func UnwrapNames(payload any) []string {
	arr, ok := payload.([]any)
	if !ok {
		if obj, isObj := payload.(map[string]any); isObj {
			for _, key := range wrapperKeys {
				if a, found := obj[key].([]any); found {
					arr = a
					ok = true
					break
				}
			}
			if !ok {
				if a, found := soleArrayValue(obj); found {
					arr = a
					ok = true
				}
			}
		}
	}
	if !ok {
		return nil
	}

	out := make([]string, 0, len(arr))
	for _, item := range arr {
		switch v := item.(type) {
		case string:
			if v != "" {
				out = append(out, v)
			}
		case map[string]any:
			for _, key := range []string{"name", "Name", "student", "teacher"} {
				if s, found := v[key].(string); found && s != "" {
					out = append(out, s)
					break
				}
			}
		}
	}
	return out
}
