package fingerprint_test

import (
	"testing"

	"github.com/turbokube/potr/pkg/fingerprint"
)

func TestParse(t *testing.T) {
	ok := []string{
		"d41d8cd98f00b204e9800998ecf8427e",
		"00000000000000000000000000000000",
	}
	for _, s := range ok {
		fp, err := fingerprint.Parse(s)
		if err != nil {
			t.Errorf("%s: %v", s, err)
		}
		if fp.String() != s {
			t.Errorf("%s: round trip got %s", s, fp)
		}
	}

	bad := []string{
		"",
		"d41d8cd98f00b204e9800998ecf8427",   // short
		"d41d8cd98f00b204e9800998ecf8427e0", // long
		"D41D8CD98F00B204E9800998ECF8427E",  // upper
		"d41d8cd98f00b204e9800998ecf8427g",  // non-hex
		"d41d8cd98f00b204e9800998ecf8427e\n",
		" d41d8cd98f00b204e9800998ecf8427e",
	}
	for _, s := range bad {
		if _, err := fingerprint.Parse(s); err == nil {
			t.Errorf("%q: expected error", s)
		}
	}
}
