package texttools

import "testing"

func TestCleanMathTitle(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"empty", "", ""},
		{"plain", "Observation of a new particle", "Observation of a new particle"},
		{
			"dollar math",
			`Measurement of the $t\bar{t}$ production cross-section`,
			"Measurement of the tt production cross-section",
		},
		{
			"mbox and scripts",
			`Search for \mbox{high-mass} resonances in $e^{+}e^{-}$ collisions`,
			"Search for high-mass resonances in e+e- collisions",
		},
		{
			"greek",
			`Study of $\pi\pi$ scattering and the $\sigma$ meson`,
			"Study of ππ scattering and the σ meson",
		},
		{
			"arrow decay",
			`Observation of $B \to \mu\mu$ decays`,
			"Observation of B → μμ decays",
		},
		{
			"braces and whitespace",
			"The {Large} N   limit\nof superconformal theories",
			"The Large N limit of superconformal theories",
		},
		{
			"paren delimiters",
			`Anomalies in \(Z\) boson production`,
			"Anomalies in Z boson production",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanMathTitle(tt.raw); got != tt.want {
				t.Errorf("CleanMathTitle(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
