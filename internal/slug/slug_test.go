package slug

import (
	"regexp"
	"strings"
	"testing"
)

var allowedRe = regexp.MustCompile(`^[a-z0-9.\-]+$`)

func TestMake(t *testing.T) {
	cases := map[string]string{
		"":                                "untitled",
		"   ":                             "untitled",
		"!!!":                             "untitled",
		"Hello World":                     "hello-world",
		"Protein Design (De Novo)":        "protein-design-de-novo",
		"snake_case_name":                 "snake-case-name",
		"  leading and trailing  ":        "leading-and-trailing",
		"multi   space\t\ttabs":           "multi-space-tabs",
		"dash -- run":                     "dash-run",
		"Version 2.0 release":             "version-2.0-release",
		"“Quoted” 'name'":                 "quoted-name",
		"Über-fast café":                  "ber-fast-caf",
		"-already-slugged-":               "already-slugged",
		"Scalable [Brain] {Mapping}?":     "scalable-brain-mapping",
		"AI/ML & Robotics":                "aiml-robotics",
		"Gap #12: Low-cost DNA synthesis": "gap-12-low-cost-dna-synthesis",
	}
	for in, want := range cases {
		if got := Make(in); got != want {
			t.Errorf("Make(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMake_Properties(t *testing.T) {
	inputs := []string{
		"", "a", "A B C", "__init__", "--x--", "x---y", "Émile Zola", "日本語",
		"Tabs\tand\nnewlines", "100% (certain)", "a.b.c", "  -  ", "Rank #5 / 10",
	}
	for _, in := range inputs {
		got := Make(in)
		if got == "" {
			t.Errorf("Make(%q) is empty", in)
		}
		if !allowedRe.MatchString(got) {
			t.Errorf("Make(%q) = %q contains disallowed characters", in, got)
		}
		if strings.HasPrefix(got, "-") || strings.HasSuffix(got, "-") {
			t.Errorf("Make(%q) = %q has leading or trailing hyphen", in, got)
		}
		if strings.Contains(got, "--") {
			t.Errorf("Make(%q) = %q has doubled hyphen", in, got)
		}
		if again := Make(got); again != got {
			t.Errorf("Make not idempotent for %q: %q then %q", in, got, again)
		}
	}
}
