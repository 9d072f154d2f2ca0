package cveid

import "testing"

func TestIsValid(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"CVE-2021-44228", true},
		{"cve-2021-44228", true},
		{"  CVE-2021-44228  ", true},
		{"CVE-2021-442280", true},
		{"", false},
		{"CVE-21-4422", false},
		{"CVE-2021-442", false},
		{"not a cve", false},
		{"CVE-1990-0001", false}, // before 1999
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := IsValid(tt.in); got != tt.want {
				t.Errorf("IsValid(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	id, err := Normalize("cve-2021-44228")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.String() != "CVE-2021-44228" {
		t.Errorf("got %q, want CVE-2021-44228", id.String())
	}

	if _, err := Normalize("not-a-cve"); err == nil {
		t.Error("expected error for invalid input")
	}
}

func TestExtract(t *testing.T) {
	id, ok := Extract("Found CVE-2021-44228: Log4Shell remote code execution")
	if !ok {
		t.Fatal("expected to find a CVE")
	}
	if id.String() != "CVE-2021-44228" {
		t.Errorf("got %q", id.String())
	}

	_, ok = Extract("no cve references here")
	if ok {
		t.Error("expected no CVE found")
	}
}

func TestExtractFirstMatchWins(t *testing.T) {
	id, ok := Extract("related to CVE-2020-0001 and also CVE-2021-44228")
	if !ok {
		t.Fatal("expected a match")
	}
	if id.String() != "CVE-2020-0001" {
		t.Errorf("expected first match CVE-2020-0001, got %q", id.String())
	}
}

func TestRoundTrip(t *testing.T) {
	inputs := []string{"cve-2023-0001", "CVE-2019-12345"}
	for _, in := range inputs {
		norm, err := Normalize(in)
		if err != nil {
			t.Fatalf("Normalize(%q): %v", in, err)
		}
		extracted, ok := Extract(norm.String())
		if !ok {
			t.Fatalf("Extract(%q) found nothing", norm.String())
		}
		if !extracted.Equal(norm) {
			t.Errorf("round trip mismatch: %q != %q", extracted.String(), norm.String())
		}
	}
}

func TestDetermineBestName(t *testing.T) {
	t.Run("explicit cve wins", func(t *testing.T) {
		name, id, has := DetermineBestName("Some Name", "description", "CVE-2021-44228")
		if !has || name != "CVE-2021-44228" || id.String() != "CVE-2021-44228" {
			t.Errorf("got name=%q id=%q has=%v", name, id.String(), has)
		}
	})

	t.Run("cve in proposed name promoted", func(t *testing.T) {
		name, id, has := DetermineBestName("CVE-2021-44228: Log4Shell", "background text", "")
		if !has || name != "CVE-2021-44228" {
			t.Errorf("got name=%q has=%v", name, has)
		}
		if id.String() != "CVE-2021-44228" {
			t.Errorf("got id=%q", id.String())
		}
	})

	t.Run("cve in description promoted", func(t *testing.T) {
		name, _, has := DetermineBestName("SQL Injection", "Tracked as CVE-2022-12345 upstream", "")
		if !has || name != "CVE-2022-12345" {
			t.Errorf("got name=%q has=%v", name, has)
		}
	})

	t.Run("no cve falls back to cleaned name", func(t *testing.T) {
		name, _, has := DetermineBestName("  Reflected   XSS  ", "no identifiers here", "")
		if has {
			t.Error("expected no CVE")
		}
		if name != "Reflected XSS" {
			t.Errorf("got %q", name)
		}
	})
}

func TestFormatDisplay(t *testing.T) {
	id, _ := Normalize("CVE-2021-44228")
	if got := FormatDisplay(true, id, "CVE-2021-44228", "Log4Shell", false); got != "CVE-2021-44228" {
		t.Errorf("got %q", got)
	}
	if got := FormatDisplay(true, id, "CVE-2021-44228", "Log4Shell", true); got != "CVE-2021-44228 (Log4Shell)" {
		t.Errorf("got %q", got)
	}
	if got := FormatDisplay(false, ID{}, "Reflected XSS", "Reflected XSS", true); got != "Reflected XSS" {
		t.Errorf("got %q", got)
	}
}
