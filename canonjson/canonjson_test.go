package canonjson

import (
	"bytes"
	"testing"
)

func TestCanonicalizeSortsKeysAndStripsWhitespace(t *testing.T) {
	in := []byte("{\n  \"b\": 1,\n  \"a\": {\"z\": [1, 2, 3], \"y\": null}\n}")
	want := `{"a":{"y":null,"z":[1,2,3]},"b":1}`

	got, err := Canonicalize(in)
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	if string(got) != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestCanonicalizeKeyOrderIndependence(t *testing.T) {
	// All permutations of the same object must canonicalize identically.
	variants := []string{
		`{"a":1,"b":"x","c":[true,false]}`,
		`{"b":"x","a":1,"c":[true,false]}`,
		`{"c":[true,false],"b":"x","a":1}`,
		"{ \"c\": [true, false],\n \"a\": 1, \"b\": \"x\" }",
	}

	first, err := Canonicalize([]byte(variants[0]))
	if err != nil {
		t.Fatalf("Canonicalize variant 0: %v", err)
	}
	for i, v := range variants[1:] {
		got, err := Canonicalize([]byte(v))
		if err != nil {
			t.Fatalf("Canonicalize variant %d: %v", i+1, err)
		}
		if !bytes.Equal(got, first) {
			t.Fatalf("variant %d: got %s, want %s", i+1, got, first)
		}
	}
}

func TestCanonicalizeIdempotent(t *testing.T) {
	cases := []string{
		`{"b":2,"a":1}`,
		`[1,2.5,-3,1e3,"s",null,{}]`,
		`"plain string"`,
		`12345678901234567890`,
	}
	for _, c := range cases {
		once, err := Canonicalize([]byte(c))
		if err != nil {
			t.Fatalf("Canonicalize(%s): %v", c, err)
		}
		twice, err := Canonicalize(once)
		if err != nil {
			t.Fatalf("Canonicalize twice (%s): %v", c, err)
		}
		if !bytes.Equal(once, twice) {
			t.Fatalf("not idempotent for %s: %s vs %s", c, once, twice)
		}
	}
}

func TestCanonicalizeNumbersPreserved(t *testing.T) {
	// json.Number carries the decoded text through unchanged. Large integers
	// must not be rewritten in exponent form or lose precision.
	in := `{"big":12345678901234567890,"small":0.1,"exp":1e3}`
	got, err := Canonicalize([]byte(in))
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	want := `{"big":12345678901234567890,"exp":1e3,"small":0.1}`
	if string(got) != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestCanonicalizeRejectsTrailingData(t *testing.T) {
	if _, err := Canonicalize([]byte(`{"a":1} {"b":2}`)); err == nil {
		t.Fatal("expected error for trailing data")
	}
}

func TestCanonicalizeRejectsInvalidJSON(t *testing.T) {
	for _, c := range []string{``, `{`, `{"a":}`, `nan`} {
		if _, err := Canonicalize([]byte(c)); err == nil {
			t.Fatalf("expected error for %q", c)
		}
	}
}

func TestEncodeStructMatchesFieldOrderInsensitiveForm(t *testing.T) {
	type rec struct {
		Z string `json:"z"`
		A int    `json:"a"`
	}
	got, err := Encode(rec{Z: "v", A: 7})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if string(got) != `{"a":7,"z":"v"}` {
		t.Fatalf("got %s", got)
	}
}

func TestEncodeRejectsUnsupportedValues(t *testing.T) {
	if _, err := Encode(make(chan int)); err == nil {
		t.Fatal("expected error for channel value")
	}
}
