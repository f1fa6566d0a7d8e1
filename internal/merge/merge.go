// Package merge implements the structural-merge semantics used for partial
// updates of user records: maps merge recursively, arrays and scalars
// replace the stored value wholesale, and keys absent from the patch are
// never removed.
package merge

import "reflect"

// Deep merges patch into dst in place and returns dst. Both sides must use
// plain map[string]interface{} for nested objects; any other value type is
// treated as a leaf and overwrites the destination.
func Deep(dst, patch map[string]interface{}) map[string]interface{} {
	for k, v := range patch {
		pv, patchIsMap := v.(map[string]interface{})
		dv, dstIsMap := dst[k].(map[string]interface{})
		if patchIsMap && dstIsMap {
			Deep(dv, pv)
			continue
		}
		dst[k] = v
	}
	return dst
}

// Flatten converts a nested patch into dotted-path leaves, the form MongoDB
// expects in a $set document. Applying the flattened patch server-side is
// equivalent to Deep applied locally: nested maps become paths, arrays and
// scalars stay leaves. An empty map flattens to nothing, the same no-op
// Deep's recursion produces.
func Flatten(patch map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(patch))
	flattenInto(out, "", patch)
	return out
}

func flattenInto(out map[string]interface{}, prefix string, m map[string]interface{}) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if mv, ok := v.(map[string]interface{}); ok {
			if len(mv) > 0 {
				flattenInto(out, key, mv)
			}
			continue
		}
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Map && rv.Len() == 0 {
			// Typed empty maps (map[string]string and friends) merge as a
			// no-op too.
			continue
		}
		out[key] = v
	}
}
