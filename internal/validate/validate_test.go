package validate

import "testing"

func TestValidateEventType(t *testing.T) {
	cases := []struct {
		name   string
		answer string
		want   bool
	}{
		{"simple option", "fall", true},
		{"option inside sentence", "I think it was a near miss", true},
		{"uppercase option", "PHYSICAL ASSAULT", true},
		{"american spelling", "behavior", true},
		{"other variant", "others", true},
		{"unmatched free text", "purple elephant", false},
		{"empty", "", false},
		{"whitespace only", "   ", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Validate(KindEventType, tc.answer); got != tc.want {
				t.Errorf("Validate(KindEventType, %q) = %v, want %v", tc.answer, got, tc.want)
			}
		})
	}
}

func TestValidateInjurySize(t *testing.T) {
	if !Validate(KindInjurySize, "it was quite small") {
		t.Error("expected small to pass")
	}
	if !Validate(KindInjurySize, "Medium") {
		t.Error("expected Medium to pass")
	}
	if Validate(KindInjurySize, "tiny") {
		t.Error("expected tiny to fail")
	}
}

func TestValidateTemporal(t *testing.T) {
	cases := []struct {
		name   string
		answer string
		want   bool
	}{
		{"am time", "it happened at 3 pm", true},
		{"clock time with minutes", "around 7:45 AM", true},
		{"24 hour time", "at 18:21 in the lounge", true},
		{"relative yesterday", "yesterday after lunch", true},
		{"relative last night", "it was last night", true},
		{"part of day", "during the morning rounds", true},
		{"ordinal day", "on the 24th", true},
		{"no time at all", "in the garden", false},
		{"empty", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Validate(KindTemporal, tc.answer); got != tc.want {
				t.Errorf("Validate(KindTemporal, %q) = %v, want %v", tc.answer, got, tc.want)
			}
		})
	}
}

func TestValidateInformedParty(t *testing.T) {
	cases := []struct {
		name   string
		answer string
		want   bool
	}{
		// Any of name, date, or time is sufficient.
		{"name and date", "we informed the social worker named Sajib on 24th October 2024", true},
		{"name only", "we told Margaret", true},
		{"date only", "on 24/10/2024", true},
		{"time only", "at 3 pm", true},
		{"nothing recognizable", "nobody was told anything", false},
		{"empty", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Validate(KindInformedParty, tc.answer); got != tc.want {
				t.Errorf("Validate(KindInformedParty, %q) = %v, want %v", tc.answer, got, tc.want)
			}
		})
	}
}

func TestValidateFreeForm(t *testing.T) {
	if !Validate(KindFreeForm, "anything at all") {
		t.Error("free form should accept any non-empty answer")
	}
	// Empty input is "no response", never a pass, for every kind.
	if Validate(KindFreeForm, "") {
		t.Error("free form should reject empty input")
	}
	if Validate(KindFreeForm, "  \t ") {
		t.Error("free form should reject whitespace-only input")
	}
}

func TestValidateUnknownKind(t *testing.T) {
	if Validate(Kind("bogus"), "anything") {
		t.Error("unknown kind should fail")
	}
}

func TestContainsOption(t *testing.T) {
	if !ContainsOption("A FALL in the corridor", EventTypeOptions) {
		t.Error("expected case-insensitive containment match")
	}
	if ContainsOption("nothing relevant", InjurySizeOptions) {
		t.Error("expected no match")
	}
}
