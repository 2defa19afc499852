package model

import "testing"

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{"regression", Regression, false},
		{"Classification", Classification, false},
		{"  REGRESSION ", Regression, false},
		{"binary", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseMode(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestModeDefaults(t *testing.T) {
	if got := Regression.DefaultMaxLength(); got != 512 {
		t.Errorf("regression max length = %d, want 512", got)
	}
	if got := Classification.DefaultMaxLength(); got != 128 {
		t.Errorf("classification max length = %d, want 128", got)
	}
	if got := Regression.DefaultNumLabels(); got != 1 {
		t.Errorf("regression labels = %d, want 1", got)
	}
	if got := Classification.DefaultNumLabels(); got != 2 {
		t.Errorf("classification labels = %d, want 2", got)
	}
	if Mode("other").Valid() {
		t.Error("unknown mode reported as valid")
	}
}
