package language

import "testing"

func TestToISO2(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"en", "en"},
		{"EN", "en"},
		{"eng", "en"},
		{"fra", "fr"},
		{"French", "fr"},
		{" français ", "fr"},
		{"pt-BR", "pt"},
		{"de", "de"},
		{"", ""},
		{"auto", ""},
		{"not a language", ""},
	}
	for _, tt := range tests {
		if got := ToISO2(tt.in); got != tt.want {
			t.Errorf("ToISO2(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"en", "English"},
		{"fra", "French"},
		{"", "Auto"},
		{"not a language", "NOT A LANGUAGE"},
	}
	for _, tt := range tests {
		if got := DisplayName(tt.in); got != tt.want {
			t.Errorf("DisplayName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
