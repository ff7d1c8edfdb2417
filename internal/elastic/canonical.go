package elastic

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// Project returns the remote document reduced to the shape of the desired
// document: maps keep only the keys the desired document declares
// (recursively), arrays are projected element-wise, scalars pass through.
//
// Server-managed fields (revision counters, timestamps, _meta additions)
// never appear in desired documents, so projection removes them before
// comparison and they can never produce a spurious diff. Drift in any
// field the definition does manage survives projection and is detected.
// An array length mismatch is preserved as-is, which makes the documents
// compare unequal.
func Project(desired, remote interface{}) interface{} {
	switch want := desired.(type) {
	case map[string]interface{}:
		got, ok := remote.(map[string]interface{})
		if !ok {
			return remote
		}
		out := make(map[string]interface{}, len(want))
		for key, wantVal := range want {
			gotVal, present := got[key]
			if !present {
				continue
			}
			out[key] = Project(wantVal, gotVal)
		}
		return out
	case []interface{}:
		got, ok := remote.([]interface{})
		if !ok {
			return remote
		}
		if len(got) != len(want) {
			return remote
		}
		out := make([]interface{}, len(got))
		for i := range got {
			out[i] = Project(want[i], got[i])
		}
		return out
	default:
		return remote
	}
}

// CanonicalJSON renders a document as RFC 8785 (JCS) canonical JSON
// bytes: sorted keys, normalised number formatting. Identical structural
// content always yields identical bytes, which keeps diffing stable
// across runs.
func CanonicalJSON(doc interface{}) ([]byte, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshalling document: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalizing document: %w", err)
	}
	return canonical, nil
}

// Equivalent reports whether the remote document already carries the
// desired content. The remote document is projected onto the desired
// shape first, then both are compared as canonical JSON bytes.
func Equivalent(desired, remote Document) (bool, error) {
	wantBytes, err := CanonicalJSON(desired)
	if err != nil {
		return false, err
	}
	gotBytes, err := CanonicalJSON(Project(desired, remote))
	if err != nil {
		return false, err
	}
	return bytes.Equal(wantBytes, gotBytes), nil
}
