package severity

import "testing"

func TestFromExternal(t *testing.T) {
	tests := []struct {
		label string
		want  Severity
	}{
		{"High", High},
		{"Medium", Medium},
		{"Low", Low},
		{"Information", Info},
		{"False positive", Low},
		{"something-unexpected", Low},
		{"", Low},
		{"CRITICAL", Critical},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			if got := FromExternal(tt.label); got != tt.want {
				t.Errorf("FromExternal(%q) = %v, want %v", tt.label, got, tt.want)
			}
		})
	}
}

func TestOrdering(t *testing.T) {
	if !Critical.GreaterOrEqual(High) {
		t.Error("Critical should be >= High")
	}
	if !Info.LessOrEqual(Low) {
		t.Error("Info should be <= Low")
	}
	if High.GreaterOrEqual(Critical) {
		t.Error("High should not be >= Critical")
	}
}

func TestAllOrdered(t *testing.T) {
	all := All()
	for i := 1; i < len(all); i++ {
		if !all[i-1].GreaterOrEqual(all[i]) {
			t.Errorf("All() not ordered descending at index %d: %v then %v", i, all[i-1], all[i])
		}
	}
}

func TestValid(t *testing.T) {
	if !High.Valid() {
		t.Error("High should be valid")
	}
	if Severity("bogus").Valid() {
		t.Error("bogus severity should not be valid")
	}
}
