package services

import "testing"

func TestNameInference(t *testing.T) {
	engine := NewNameInference()

	tests := []struct {
		text string
		want string
		ok   bool
	}{
		{"Hi, my name is Alex, nice to meet you", "Alex", true},
		{"my name is alex", "alex", true},
		{"I'm Maria", "Maria", true},
		{"i am Sam.", "Sam", true},
		{"call me Ishmael", "Ishmael", true},
		{"this is Priya speaking", "Priya", true},
		{"John is here checking the system", "John", true},
		{"hi, Tom here", "Tom", true},
		{"Lena speaking", "Lena", true},
		{"the report is ready", "", false},
		{"hello there", "", false},
		{"my name is the", "", false},
		{"call me ok", "", false},
		{"", "", false},
		{"what is the weather today", "", false},
	}

	for _, tt := range tests {
		got, ok := engine.Infer(tt.text)
		if ok != tt.ok || got != tt.want {
			t.Errorf("Infer(%q) = (%q, %v), want (%q, %v)", tt.text, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNameInferenceRejectsLongCaptures(t *testing.T) {
	engine := NewNameInference()

	// 21 letters: the patterns cap captures at 20, so the tail letter makes
	// the boundary check fail rather than yielding a truncated name.
	if name, ok := engine.Infer("my name is Abcdefghijklmnopqrstu"); ok {
		t.Fatalf("names longer than 20 characters must never be accepted, got %q", name)
	}
}

func TestNameInferenceFirstPatternWins(t *testing.T) {
	engine := NewNameInference()

	// Both the introduction pattern and the trailing "here" pattern match;
	// the ordered contract picks the introduction capture.
	name, ok := engine.Infer("my name is Kim, Bob here")
	if !ok || name != "Kim" {
		t.Fatalf("expected first-pattern capture Kim, got (%q, %v)", name, ok)
	}
}

func TestNameEligible(t *testing.T) {
	tests := []struct {
		username string
		want     bool
	}{
		{"Guest", true},
		{"Alex", false},
		{"a name captured from a whole sentence", true},
		{"", false},
		// Length is counted in runes, not bytes.
		{"Анастасия", false},
		{"Анастасия-Викторияна-А", true},
	}

	for _, tt := range tests {
		if got := NameEligible(tt.username); got != tt.want {
			t.Errorf("NameEligible(%q) = %v, want %v", tt.username, got, tt.want)
		}
	}
}
