// Package texttools normalizes text fields coming from literature
// APIs before they are displayed or cached. HEP titles frequently
// embed TeX math markup that renders poorly in plain-text contexts.
package texttools

import (
	"regexp"
	"strings"
)

var (
	// \mbox{...}, \text{...}, \mathrm{...} etc: keep the argument.
	texArgCommand = regexp.MustCompile(`\\(?:mbox|text|textrm|textit|textbf|mathrm|mathit|mathbf|mathcal|mathsf|rm|it|bf)\s*\{([^{}]*)\}`)

	// Bare commands with no argument worth keeping: \sqrt, \prime, ...
	texBareCommand = regexp.MustCompile(`\\[a-zA-Z]+`)

	// Sub/superscript groups: ^{...} and _{...} keep their contents.
	texScriptGroup = regexp.MustCompile(`[\^_]\{([^{}]*)\}`)

	multiSpace = regexp.MustCompile(`\s+`)
)

// greekCommands maps common TeX greek commands to unicode.
var greekCommands = map[string]string{
	`\alpha`: "α", `\beta`: "β", `\gamma`: "γ", `\delta`: "δ",
	`\epsilon`: "ε", `\eta`: "η", `\theta`: "θ", `\lambda`: "λ",
	`\mu`: "μ", `\nu`: "ν", `\pi`: "π", `\rho`: "ρ", `\sigma`: "σ",
	`\tau`: "τ", `\phi`: "φ", `\chi`: "χ", `\psi`: "ψ", `\omega`: "ω",
	`\Gamma`: "Γ", `\Delta`: "Δ", `\Lambda`: "Λ", `\Sigma`: "Σ",
	`\Phi`: "Φ", `\Psi`: "Ψ", `\Omega`: "Ω",
	`\to`: "→", `\rightarrow`: "→", `\ell`: "ℓ", `\pm`: "±",
	`\times`: "×", `\sim`: "~", `\infty`: "∞",
}

// CleanMathTitle strips TeX math markup from a title, keeping the
// readable content. It is deliberately lossy: the goal is a clean
// single-line plain-text title, not TeX fidelity.
func CleanMathTitle(raw string) string {
	if raw == "" {
		return ""
	}

	s := raw

	// Math delimiters: keep the contents.
	s = strings.ReplaceAll(s, `\(`, "")
	s = strings.ReplaceAll(s, `\)`, "")
	s = strings.ReplaceAll(s, `\[`, "")
	s = strings.ReplaceAll(s, `\]`, "")
	s = strings.ReplaceAll(s, "$", "")

	// Argument-keeping commands may nest one level; run twice.
	for i := 0; i < 2; i++ {
		s = texArgCommand.ReplaceAllString(s, "$1")
	}
	s = texScriptGroup.ReplaceAllString(s, "$1")

	for cmd, r := range greekCommands {
		s = strings.ReplaceAll(s, cmd, r)
	}
	s = texBareCommand.ReplaceAllString(s, "")

	s = strings.NewReplacer("{", "", "}", "", "~", " ", "\n", " ").Replace(s)
	s = multiSpace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
