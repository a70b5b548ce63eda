package ecosystem

import "testing"

func TestParse(t *testing.T) {
	for _, tc := range []struct {
		in      string
		want    Ecosystem
		wantOK  bool
	}{
		{in: "pypi", want: PyPI, wantOK: true},
		{in: "npm", want: NPM, wantOK: true},
		{in: "conda", wantOK: false},
		{in: "", wantOK: false},
	} {
		got, ok := Parse(tc.in)
		if ok != tc.wantOK {
			t.Errorf("Parse(%q) ok = %v, want %v", tc.in, ok, tc.wantOK)
		}
		if ok && got != tc.want {
			t.Errorf("Parse(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestAll(t *testing.T) {
	all := All()
	if len(all) != 2 {
		t.Fatalf("All() = %v, want 2 entries", all)
	}
	for _, e := range all {
		if !e.Valid() {
			t.Errorf("All() contains invalid ecosystem %v", e)
		}
	}
}
