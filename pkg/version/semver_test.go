package version

import "testing"

func TestParse(t *testing.T) {
	cases := map[string]struct {
		raw  string
		want string
		ok   bool
	}{
		"plain":             {raw: "1.2.3", want: "1.2.3", ok: true},
		"git tag prefix":    {raw: "v2.0.1", want: "2.0.1", ok: true},
		"prerelease":        {raw: "1.0.0-rc.1", want: "1.0.0-rc.1", ok: true},
		"build metadata":    {raw: "1.0.0+20260830", want: "1.0.0+20260830", ok: true},
		"padded whitespace": {raw: " 1.2.3 ", want: "1.2.3", ok: true},
		"empty":             {raw: "", ok: false},
		"dev build":         {raw: "dev", ok: false},
		"missing patch":     {raw: "1.2", ok: false},
		"leading zero":      {raw: "01.2.3", ok: false},
		"zero prerelease":   {raw: "1.0.0-01", ok: false},
		"empty prerelease":  {raw: "1.0.0-rc..1", ok: false},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			v, err := Parse(tc.raw)
			if tc.ok != (err == nil) {
				t.Fatalf("Parse(%q) error = %v, want ok=%v", tc.raw, err, tc.ok)
			}
			if tc.ok && v.String() != tc.want {
				t.Fatalf("Parse(%q).String() = %q, want %q", tc.raw, v.String(), tc.want)
			}
		})
	}
}

func TestIsValid(t *testing.T) {
	if !IsValid("v1.0.0") {
		t.Fatal("expected v1.0.0 to be valid")
	}
	if IsValid("dev") {
		t.Fatal("expected dev to be invalid")
	}
}

func TestIsPreRelease(t *testing.T) {
	rc, err := Parse("1.0.0-rc.2")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !rc.IsPreRelease() {
		t.Fatal("expected prerelease")
	}

	release, err := Parse("1.0.0")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if release.IsPreRelease() {
		t.Fatal("expected release build")
	}
}
