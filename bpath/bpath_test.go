package bpath

import (
	"testing"

	"kernix/ustr"
)

func TestCanonicalize(t *testing.T) {
	cases := map[string]string{
		"/a/b/../c":   "/a/c",
		"/a/./b":      "/a/b",
		"/../a":       "/a",
		"/":           "/",
		"/a/b/c/../.": "/a/b",
	}
	for in, want := range cases {
		got := Canonicalize(ustr.Ustr(in)).String()
		if got != want {
			t.Errorf("Canonicalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDirBase(t *testing.T) {
	if Dirname(ustr.Ustr("/mnt/a/x")).String() != "/mnt/a" {
		t.Fatal("dirname")
	}
	if Basename(ustr.Ustr("/mnt/a/x")).String() != "x" {
		t.Fatal("basename")
	}
}
