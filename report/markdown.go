package report

import (
	"bufio"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/cwbudde/algo-protocol/analysis"
	"github.com/cwbudde/algo-protocol/engine"
	"github.com/cwbudde/algo-protocol/reference"
)

// WriteMarkdown renders the report. Every record appears exactly once and
// empty sections are stated explicitly.
func (r *Report) WriteMarkdown(w io.Writer) error {
	bw := bufio.NewWriter(w)

	writeHeader(bw, "Audio Analysis Report - "+r.Title, r.Meta)

	fmt.Fprintf(bw, "## %s\n\n", r.Title)

	if r.User {
		fmt.Fprintln(bw, "This section uses a **user-provided context file** to position measurements against user-provided ranges.")
	} else {
		fmt.Fprintln(bw, "This section uses **context files** to position a selected subset of metrics.")
	}

	fmt.Fprint(bw, "Contexts affect presentation only; they never affect computation.\n\n")

	if len(r.Families) == 0 {
		fmt.Fprint(bw, "_No analysis results found._\n\n")
	}

	for _, f := range r.Families {
		fmt.Fprintf(bw, "### %s\n\n", f.Family)

		if c := r.Contexts[f.Family]; c != nil {
			writeContextInfo(bw, c)
		}

		for _, s := range f.Sections {
			fmt.Fprintf(bw, "#### %s\n\n", s.Kind.Title())

			if len(s.Records) == 0 {
				fmt.Fprint(bw, "_None for this family._\n\n")

				continue
			}

			for _, rec := range s.Records {
				fmt.Fprintln(bw, recordLine(s.Kind, rec))
			}

			fmt.Fprintln(bw)
		}
	}

	return bw.Flush()
}

func writeHeader(w io.Writer, title string, meta *engine.Meta) {
	fmt.Fprintf(w, "# %s\n\n", title)

	if meta == nil {
		return
	}

	fmt.Fprintf(w, "- Run: `%s`\n", meta.RunID)
	fmt.Fprintf(w, "- Protocol version: `%s`\n", meta.ProtocolVersion)

	if !meta.Timestamp.IsZero() {
		fmt.Fprintf(w, "- Generated: %s\n", meta.Timestamp.Format("2006-01-02 15:04:05 MST"))
	}

	fmt.Fprintf(w, "- Channels: %s\n\n", strings.Join(meta.Channels, ", "))

	if fi := meta.File; fi != nil {
		fmt.Fprint(w, "## File Information\n\n")
		fmt.Fprintf(w, "- Path: `%s`\n", fi.Path)
		fmt.Fprintf(w, "- Format: %s\n", fi.Format)
		fmt.Fprintf(w, "- Sample rate: %d Hz\n", fi.SampleRate)
		fmt.Fprintf(w, "- Channels: %d\n", fi.Channels)
		fmt.Fprintf(w, "- Duration: %s s\n\n", FormatValue(fi.DurationSeconds))
	}

	p := meta.Preprocessing

	fmt.Fprint(w, "## Preprocessing\n\n")

	if p.Normalization != "" {
		fmt.Fprintf(w, "- Normalization: %s (target %s)\n", p.Normalization, FormatValue(p.TargetLevel))

		for _, ch := range slices.Sorted(maps.Keys(p.Gains)) {
			fmt.Fprintf(w, "  - gain %s: %s\n", ch, FormatValue(p.Gains[ch]))
		}
	} else {
		fmt.Fprintln(w, "- Normalization: none")
	}

	if p.Segmentation != "" {
		fmt.Fprintf(w, "- Segmentation: %s, %d segment(s)\n", p.Segmentation, len(p.Segments))
	} else {
		fmt.Fprintln(w, "- Segmentation: none")
	}

	s := meta.Summary
	fmt.Fprintf(w, "- Invocations: %d total, %d executed, %d contract violations, %d not executed\n\n",
		s.Total, s.Executed, s.ContractViolations, s.NotExecuted)
}

func writeContextInfo(w io.Writer, c *reference.Context) {
	wrote := false

	for _, warning := range c.Warnings {
		fmt.Fprintf(w, "- Context warning: %s\n", warning)

		wrote = true
	}

	if sc := c.Scope; sc != nil {
		if s := strings.TrimSpace(sc.Objective); s != "" {
			fmt.Fprintf(w, "- Objective: %s\n", s)
		}

		if s := strings.TrimSpace(sc.Coverage); s != "" {
			fmt.Fprintf(w, "- Coverage: `%s`\n", s)
		}

		if s := strings.TrimSpace(sc.Rationale); s != "" {
			fmt.Fprintf(w, "- Rationale: %s\n", s)
		}

		wrote = true
	}

	if len(c.References) > 0 {
		fmt.Fprintln(w, "- Documentary references:")

		for _, ref := range c.References {
			fmt.Fprintf(w, "  - %s\n", citation(ref))
		}

		wrote = true
	}

	if wrote {
		fmt.Fprintln(w)
	}
}

func citation(c reference.Citation) string {
	var parts []string

	if s := strings.TrimSpace(c.Authors); s != "" {
		parts = append(parts, s)
	}

	if s := strings.TrimSpace(c.Title); s != "" {
		parts = append(parts, `"`+s+`"`)
	}

	if s := strings.TrimSpace(c.Year); s != "" {
		parts = append(parts, "("+s+")")
	}

	out := strings.Join(parts, ", ") + "."
	if s := strings.TrimSpace(c.Note); s != "" {
		out += " " + s
	}

	return out
}

func where(rec reference.PositioningRecord) string {
	out := "`" + rec.Method + "`"
	if rec.Channel != "" {
		out += " / `" + rec.Channel + "`"
	}

	if rec.Invocation > 0 {
		out += fmt.Sprintf(" #%d", rec.Invocation)
	}

	return out
}

func recordLine(kind SectionKind, rec reference.PositioningRecord) string {
	switch kind {
	case SectionA, SectionUser:
		label := "reference"
		if kind == SectionUser {
			label = "user-provided range"
		}

		line := fmt.Sprintf("- %s: **%s** = %s (%s [%s, %s])",
			where(rec), rec.Metric, FormatValue(rec.Value), label,
			FormatValue(rec.Range.Lo), FormatValue(rec.Range.Hi))

		if rec.Position == reference.NotApplicable {
			line += ", non-numeric value, no positioning applied."
		} else {
			line += fmt.Sprintf(" -> **%s**.", rec.Position)
		}

		return line + " " + joinNotes(rec.Notes)
	case SectionB, SectionC:
		return fmt.Sprintf("- %s: **%s** = %s. %s", where(rec), rec.Metric, FormatValue(rec.Value), joinNotes(rec.Notes))
	case SectionMissing:
		return fmt.Sprintf("- %s: **%s** (status %s), missing in results.", where(rec), rec.Metric, rec.Status)
	default:
		return fmt.Sprintf("- %s: **%s** = %s, not covered (%s).", where(rec), rec.Metric, FormatValue(rec.Value), rec.Reason)
	}
}

// WriteSummary lists every record of doc with its metrics, without any
// interpretation.
func WriteSummary(doc *engine.ResultDocument, w io.Writer) error {
	bw := bufio.NewWriter(w)

	writeHeader(bw, "Audio Analysis Report - Measurement Summary", &doc.Meta)

	fmt.Fprint(bw, "## Measured Outputs\n\n")
	fmt.Fprint(bw, "Outputs as produced by the analysis engine. No interpretation is applied.\n\n")

	if len(doc.Analyses) == 0 {
		fmt.Fprint(bw, "_No analysis results found._\n")
	}

	var family analysis.Family

	for _, rec := range doc.Analyses {
		if rec.Family != family {
			family = rec.Family
			fmt.Fprintf(bw, "### %s\n\n", family)
		}

		fmt.Fprintf(bw, "#### %s / %s", rec.Method, rec.Channel)

		if rec.Invocation > 0 {
			fmt.Fprintf(bw, " #%d", rec.Invocation)
		}

		fmt.Fprint(bw, "\n\n")

		if rec.Status != engine.StatusOK {
			fmt.Fprintf(bw, "- status: **%s**: %s\n\n", rec.Status, rec.Error)

			continue
		}

		for _, name := range slices.Sorted(maps.Keys(rec.Metrics)) {
			fmt.Fprintf(bw, "- %s: %s", name, FormatValue(rec.Metrics[name]))

			if n, ok := rec.Truncated[name]; ok {
				fmt.Fprintf(bw, " (truncated from %d values)", n)
			}

			fmt.Fprintln(bw)
		}

		fmt.Fprintln(bw)
	}

	return bw.Flush()
}
