// Package export converts citation-graph entries to BibTeX.
package export

import (
	"fmt"
	"strings"

	"github.com/citegraph/citegraph/internal/graph"
)

// ToBibTeX converts one graph entry to a BibTeX record.
func ToBibTeX(e graph.ReferenceEntry) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("@article{%s,\n", CiteKey(e)))

	if e.AuthorLabel != "" {
		b.WriteString(fmt.Sprintf("  author = {%s},\n", escapeLatex(authorField(e.AuthorLabel))))
	}
	b.WriteString(fmt.Sprintf("  title = {%s},\n", escapeLatex(e.Title)))

	if pi := e.PublicationInfo; pi != nil {
		if pi.JournalTitle != "" {
			b.WriteString(fmt.Sprintf("  journal = {%s},\n", escapeLatex(pi.JournalTitle)))
		}
		if pi.JournalVolume != "" {
			b.WriteString(fmt.Sprintf("  volume = {%s},\n", pi.JournalVolume))
		}
		if pi.ArtID != "" {
			b.WriteString(fmt.Sprintf("  pages = {%s},\n", pi.ArtID))
		} else if pi.PageStart != "" {
			b.WriteString(fmt.Sprintf("  pages = {%s},\n", pi.PageStart))
		}
	}

	if e.Year > 0 {
		b.WriteString(fmt.Sprintf("  year = {%d},\n", e.Year))
	}
	if e.ArxivID != "" {
		b.WriteString(fmt.Sprintf("  eprint = {%s},\n", e.ArxivID))
		b.WriteString("  archivePrefix = {arXiv},\n")
	}
	if e.DOI != "" {
		b.WriteString(fmt.Sprintf("  doi = {%s},\n", e.DOI))
	}

	b.WriteString("}\n")
	return b.String()
}

// ToBibTeXList converts multiple graph entries to BibTeX format.
func ToBibTeXList(entries []graph.ReferenceEntry) string {
	var out []string
	for _, e := range entries {
		out = append(out, ToBibTeX(e))
	}
	return strings.Join(out, "\n")
}

// CiteKey derives a citation key in the familiar Surname:Year form,
// falling back to the record id when author data is missing.
func CiteKey(e graph.ReferenceEntry) string {
	surname := keySurname(e.AuthorLabel)
	switch {
	case surname != "" && e.Year > 0:
		return fmt.Sprintf("%s:%d", surname, e.Year)
	case e.Recid != "":
		return "inspire-" + e.Recid
	case surname != "":
		return surname
	default:
		return "unresolved"
	}
}

// keySurname extracts the first surname from an author label like
// "Weinberg", "Gross and Wilczek" or "Maldacena et al.", stripped of
// characters BibTeX keys cannot carry.
func keySurname(label string) string {
	if label == "" {
		return ""
	}
	name := label
	if i := strings.Index(name, " and "); i >= 0 {
		name = name[:i]
	}
	name = strings.TrimSuffix(name, " et al.")

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// authorField converts a display label to a BibTeX author field:
// "Maldacena et al." becomes "Maldacena and others".
func authorField(label string) string {
	return strings.ReplaceAll(label, " et al.", " and others")
}

// escapeLatex escapes special LaTeX characters.
func escapeLatex(s string) string {
	// Order matters: & must be first (before other escapes that might produce &)
	replacer := strings.NewReplacer(
		"&", `\&`,
		"%", `\%`,
		"$", `\$`,
		"#", `\#`,
		"_", `\_`,
		"{", `\{`,
		"}", `\}`,
		"~", `\textasciitilde{}`,
		"^", `\textasciicircum{}`,
	)
	return replacer.Replace(s)
}
