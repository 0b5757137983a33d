package dedup

import "testing"

func TestDisplayName(t *testing.T) {
	cases := map[string]string{
		"the main st library":   "Main St. Library",
		"oak park ave":          "Oak Park Avenue",
		"dept of public works":  "Department Of Public Works",
		"riverside ctr":         "Riverside Center",
		"":                      "",
		"THE":                   "",
		"dpw yard":              "DPW Yard",
	}
	for in, want := range cases {
		if got := DisplayName(in); got != want {
			t.Errorf("DisplayName(%q)=%q want %q", in, got, want)
		}
	}
}

func TestGroupLabelSpecies(t *testing.T) {
	cases := map[string]string{
		"Red Oak":          "Broadleaf",
		"Eastern White Pine": "Conifer",
		"Coconut Palm":     "Palm",
		"Cherry Blossom":   "Fruit",
		"Unknown Shrub":    "Other Flora",
	}
	for name, want := range cases {
		if got := GroupLabel("species", name); got != want {
			t.Errorf("GroupLabel(species, %q)=%q want %q", name, got, want)
		}
	}
}

func TestGroupLabelFacility(t *testing.T) {
	cases := map[string]string{
		"Lincoln High School":  "Education",
		"Mercy Hospital":       "Healthcare",
		"Riverside Park":       "Recreation",
		"Union Station":        "Transit",
		"Police Precinct 9":    "Civic",
		"Water Tower":          "General Facility",
	}
	for name, want := range cases {
		if got := GroupLabel("facility", name); got != want {
			t.Errorf("GroupLabel(facility, %q)=%q want %q", name, got, want)
		}
	}
}

func TestGroupLabelFallbackTitleCasesCategory(t *testing.T) {
	if got := GroupLabel("public_art", "Mural"); got != "Public Art" {
		t.Fatalf("got %q", got)
	}
}
