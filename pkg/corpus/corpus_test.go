package corpus

import "testing"

func TestParse(t *testing.T) {
	c, err := Parse([]byte(`
names:
  - Totally-Fake-Pkg
patterns:
  - "^acme-.*-sdk$"
`))
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}

	if ok, matched := c.Matches("totally-fake-pkg"); !ok || matched != "totally-fake-pkg" {
		t.Errorf("Matches(exact, case-insensitive) = (%v, %q), want (true, %q)", ok, matched, "totally-fake-pkg")
	}
	if ok, matched := c.Matches("acme-foo-sdk"); !ok || matched != "^acme-.*-sdk$" {
		t.Errorf("Matches(pattern) = (%v, %q), want (true, %q)", ok, matched, "^acme-.*-sdk$")
	}
	if ok, _ := c.Matches("requests"); ok {
		t.Errorf("Matches(clean name) = true, want false")
	}
}

func TestParseInvalidPattern(t *testing.T) {
	_, err := Parse([]byte(`
patterns:
  - "("
`))
	if err == nil {
		t.Fatal("Parse() with invalid regex succeeded, want error")
	}
}

func TestEmpty(t *testing.T) {
	c := Empty()
	if ok, _ := c.Matches("anything"); ok {
		t.Errorf("Empty().Matches() = true, want false")
	}
}
