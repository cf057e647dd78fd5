package inventory

import "testing"

func TestNormalizeParameter(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"trims whitespace", "  110  ", "110"},
		{"strips mm suffix", "110mm", "110"},
		{"strips mm suffix with space", "110 mm", "110"},
		{"strips lone trailing m", "6m", "6"},
		{"does not strip mm twice", "110mmmm", "110mm"},
		{"leaves bare number alone", "110", "110"},
		{"leaves non-numeric alone", "PN16", "PN16"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeParameter(tc.in); got != tc.want {
				t.Errorf("NormalizeParameter(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeParameters(t *testing.T) {
	in := map[string]string{"diameter": "110mm", "pressure": "PN16"}
	got := NormalizeParameters(in)
	want := map[string]string{"diameter": "110", "pressure": "PN16"}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("NormalizeParameters()[%q] = %q, want %q", k, got[k], v)
		}
	}
	// Original map must be untouched.
	if in["diameter"] != "110mm" {
		t.Errorf("NormalizeParameters mutated its input: %q", in["diameter"])
	}
}

func TestSameVariant(t *testing.T) {
	a := map[string]string{"diameter": "110mm", "pressure": "PN16"}
	b := map[string]string{"diameter": "110", "pressure": "PN16"}
	if !SameVariant(a, b) {
		t.Errorf("SameVariant(%v, %v) = false, want true", a, b)
	}

	c := map[string]string{"diameter": "125", "pressure": "PN16"}
	if SameVariant(a, c) {
		t.Errorf("SameVariant(%v, %v) = true, want false", a, c)
	}

	d := map[string]string{"diameter": "110"}
	if SameVariant(a, d) {
		t.Errorf("SameVariant with mismatched key counts should be false")
	}
}
