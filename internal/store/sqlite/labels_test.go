package sqlite

import (
	"reflect"
	"testing"

	"github.com/forgectl/fg/internal/types"
)

func TestLabelsRoundTripStructured(t *testing.T) {
	color := "ff0000"
	want := []types.Label{{Name: "bug", Color: &color}, {Name: "p1"}}

	raw, err := encodeLabels(want)
	if err != nil {
		t.Fatalf("encodeLabels: %v", err)
	}
	got, err := decodeLabels(raw)
	if err != nil {
		t.Fatalf("decodeLabels: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestLabelsUpgradeLegacyFlatEncoding(t *testing.T) {
	legacy := []byte(`["bug", "p1"]`)

	got, err := decodeLabels(legacy)
	if err != nil {
		t.Fatalf("decodeLabels: %v", err)
	}
	want := []types.Label{{Name: "bug", Color: nil}, {Name: "p1", Color: nil}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("legacy upgrade mismatch: got %+v, want %+v", got, want)
	}
}

func TestLabelsEmpty(t *testing.T) {
	got, err := decodeLabels(nil)
	if err != nil {
		t.Fatalf("decodeLabels: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty slice, got %+v", got)
	}
}
