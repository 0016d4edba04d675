package fieldextract

import "testing"

func TestFieldsLookup(t *testing.T) {
	fields := Fields{
		KeyName:    "Arun Kumar",
		KeyAddress: "  ",
	}

	if value, ok := fields.Lookup(KeyName); !ok || value != "Arun Kumar" {
		t.Fatalf("Lookup(name) = (%q, %v)", value, ok)
	}
	if _, ok := fields.Lookup(KeyAddress); ok {
		t.Fatal("whitespace-only value should not be present")
	}
	if _, ok := fields.Lookup(KeyDocumentType); ok {
		t.Fatal("missing key should not be present")
	}
}

func TestIsSentinel(t *testing.T) {
	sentinels := []string{"", "   ", "None", "none", "N/A", "Not Provided", "UNKNOWN"}
	for _, s := range sentinels {
		if !isSentinel(s) {
			t.Fatalf("isSentinel(%q) = false, want true", s)
		}
	}
	if isSentinel("10 Main St") {
		t.Fatal("real value flagged as sentinel")
	}
}

func TestRecognizeAddressLabeledLine(t *testing.T) {
	text := "Name: Arun Kumar\nAddress: 10 F2 Narayanasamy Kovil Street, Pettai, Tirunelveli\nDOB: 01/01/1990"
	got := RecognizeAddress(text)
	want := "10 F2 Narayanasamy Kovil Street, Pettai, Tirunelveli"
	if got != want {
		t.Fatalf("RecognizeAddress = %q, want %q", got, want)
	}
}

func TestRecognizeAddressStreetPattern(t *testing.T) {
	text := "DRIVING LICENCE\nArun Kumar\n12 Anna Nagar Main Road\nChennai 600040"
	got := RecognizeAddress(text)
	if got == "" {
		t.Fatal("expected a recognized address")
	}
	if got != "12 Anna Nagar Main Road, Chennai 600040" {
		t.Fatalf("RecognizeAddress = %q", got)
	}
}

func TestRecognizeAddressNoMatch(t *testing.T) {
	if got := RecognizeAddress("no address-shaped content here"); got != "" {
		t.Fatalf("RecognizeAddress = %q, want empty", got)
	}
}

func TestRecognizeAddressIgnoresSentinelLabel(t *testing.T) {
	if got := RecognizeAddress("Address: None"); got != "" {
		t.Fatalf("RecognizeAddress = %q, want empty", got)
	}
}
