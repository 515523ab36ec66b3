package discovery

import (
	"reflect"
	"testing"
)

func TestParseProperties(t *testing.T) {
	content := []byte(`
! a bang comment
# a hash comment
foo=bar
baz: qux

spaced.key = value with spaces
`)

	got, err := ParseProperties(content)
	if err != nil {
		t.Fatalf("ParseProperties: %v", err)
	}

	want := map[string]string{
		"foo":        "bar",
		"baz":        "qux",
		"spaced.key": "value with spaces",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseProperties() = %+v, want %+v", got, want)
	}
}

func TestParseProperties_MissingSeparatorIsError(t *testing.T) {
	if _, err := ParseProperties([]byte("justakey")); err == nil {
		t.Error("expected an error for a line with no separator")
	}
}
