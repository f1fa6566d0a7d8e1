package merge

import (
	"reflect"
	"testing"
)

func TestDeepPreservesUntouchedKeys(t *testing.T) {
	dst := map[string]interface{}{
		"username": "octocat",
		"city":     "Seoul",
		"timestamps": map[string]interface{}{
			"created": "2026-01-01T00:00:00Z",
			"updated": "2026-01-01T00:00:00Z",
		},
	}
	patch := map[string]interface{}{
		"timestamps": map[string]interface{}{
			"updated": "2026-02-01T00:00:00Z",
		},
	}

	out := Deep(dst, patch)

	if out["username"] != "octocat" || out["city"] != "Seoul" {
		t.Fatalf("untouched top-level keys changed: %v", out)
	}
	ts := out["timestamps"].(map[string]interface{})
	if ts["created"] != "2026-01-01T00:00:00Z" {
		t.Errorf("nested sibling key lost: %v", ts)
	}
	if ts["updated"] != "2026-02-01T00:00:00Z" {
		t.Errorf("patched key not applied: %v", ts)
	}
}

func TestDeepReplacesArraysWholesale(t *testing.T) {
	dst := map[string]interface{}{
		"interests": []interface{}{"tech", "science", "sports"},
	}
	patch := map[string]interface{}{
		"interests": []interface{}{"music"},
	}

	out := Deep(dst, patch)

	got := out["interests"].([]interface{})
	if len(got) != 1 || got[0] != "music" {
		t.Fatalf("expected array replacement, got %v", got)
	}
}

func TestDeepMapOverScalarReplaces(t *testing.T) {
	dst := map[string]interface{}{"field": "scalar"}
	patch := map[string]interface{}{
		"field": map[string]interface{}{"nested": true},
	}

	out := Deep(dst, patch)

	if _, ok := out["field"].(map[string]interface{}); !ok {
		t.Fatalf("map patch over scalar should replace, got %T", out["field"])
	}
}

func TestDeepIdempotent(t *testing.T) {
	patch := map[string]interface{}{
		"city": "Busan",
		"timestamps": map[string]interface{}{
			"weatherUpdated": "2026-03-01T00:00:00Z",
		},
	}

	once := Deep(map[string]interface{}{"city": "Seoul"}, patch)
	twice := Deep(once, patch)

	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("applying the same patch twice diverged: %v vs %v", once, twice)
	}
}

func TestFlattenDottedPaths(t *testing.T) {
	patch := map[string]interface{}{
		"city": "Seoul",
		"timestamps": map[string]interface{}{
			"weatherUpdated": "x",
			"newsUpdated":    "y",
		},
		"interests": []interface{}{"tech"},
	}

	out := Flatten(patch)

	want := map[string]interface{}{
		"city":                      "Seoul",
		"timestamps.weatherUpdated": "x",
		"timestamps.newsUpdated":    "y",
		"interests":                 []interface{}{"tech"},
	}
	if !reflect.DeepEqual(out, want) {
		t.Fatalf("Flatten mismatch:\n got %v\nwant %v", out, want)
	}
}

func TestFlattenSkipsEmptyMaps(t *testing.T) {
	out := Flatten(map[string]interface{}{
		"aiProjectDescriptions": map[string]interface{}{},
		"skills":                map[string]string{},
		"city":                  "Seoul",
	})

	if _, ok := out["aiProjectDescriptions"]; ok {
		t.Errorf("empty map should flatten to nothing: %v", out)
	}
	if _, ok := out["skills"]; ok {
		t.Errorf("typed empty map should flatten to nothing: %v", out)
	}
	if out["city"] != "Seoul" {
		t.Errorf("scalar leaf lost: %v", out)
	}
}

func TestFlattenMatchesDeepOnEmptyMaps(t *testing.T) {
	// Both stores must treat an empty object patch as a no-op: Deep recurses
	// into nothing, Flatten emits no $set path that could wipe the stored
	// subdocument.
	patch := map[string]interface{}{
		"aiProjectDescriptions": map[string]interface{}{},
	}

	dst := map[string]interface{}{
		"aiProjectDescriptions": map[string]interface{}{"hello-world": "kept"},
	}
	merged := Deep(dst, patch)
	descs := merged["aiProjectDescriptions"].(map[string]interface{})
	if descs["hello-world"] != "kept" {
		t.Fatalf("Deep should keep sibling keys: %v", descs)
	}

	if set := Flatten(patch); len(set) != 0 {
		t.Fatalf("Flatten should produce no paths for an empty object, got %v", set)
	}
}
