package rundir

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNameAndParse(t *testing.T) {
	launched := time.Date(2026, 8, 26, 14, 3, 59, 0, time.UTC)

	name := Name(launched, "resnet bbb")
	if name != "2026-08-26_14-03-59_resnet-bbb" {
		t.Fatalf("Name()=%q", name)
	}

	ts, variant, err := Parse(name)
	if err != nil {
		t.Fatalf("Parse() err=%v", err)
	}
	if !ts.Equal(launched) {
		t.Fatalf("timestamp=%v, want %v", ts, launched)
	}
	if variant != "resnet-bbb" {
		t.Fatalf("variant=%q", variant)
	}
}

func TestNameWithoutVariant(t *testing.T) {
	launched := time.Date(2026, 8, 26, 14, 3, 59, 0, time.UTC)
	name := Name(launched, "")
	if name != "2026-08-26_14-03-59" {
		t.Fatalf("Name()=%q", name)
	}
	_, variant, err := Parse(name)
	if err != nil {
		t.Fatalf("Parse() err=%v", err)
	}
	if variant != "" {
		t.Fatalf("variant=%q, want empty", variant)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, name := range []string{"", "not-a-timestamp", "2026-08-26", "2026-08-26_14-03-59x"} {
		if _, _, err := Parse(name); err == nil {
			t.Fatalf("Parse(%q) expected error", name)
		}
	}
}

func TestCreate(t *testing.T) {
	root := t.TempDir()
	launched := time.Date(2026, 8, 26, 14, 3, 59, 0, time.UTC)

	path, err := Create(root, launched, "cifar")
	if err != nil {
		t.Fatalf("Create() err=%v", err)
	}
	if filepath.Dir(path) != root {
		t.Fatalf("path=%q not under root", path)
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected directory, err=%v", err)
	}
}

func TestSanitize(t *testing.T) {
	cases := map[string]string{
		"resnet":           "resnet",
		"resnet bbb":       "resnet-bbb",
		"  padded  ":       "padded",
		"a/b\\c":           "abc",
		"mixed_OK-1.2":     "mixed_OK-1.2",
		"tabs\there":       "tabs-here",
		"unicode-β-label":  "unicode--label",
	}
	for in, want := range cases {
		if got := Sanitize(in); got != want {
			t.Fatalf("Sanitize(%q)=%q, want %q", in, got, want)
		}
	}
}
