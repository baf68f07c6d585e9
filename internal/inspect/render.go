package inspect

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/goccy/go-yaml"
	"github.com/mattn/go-isatty"
)

// Colored reports whether f is a terminal that should get colored output.
func Colored(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

type palette struct {
	found, missing, head, bad func(a ...interface{}) string
}

func newPalette(colored bool) palette {
	mk := func(attrs ...color.Attribute) func(a ...interface{}) string {
		c := color.New(attrs...)
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c.SprintFunc()
	}
	return palette{
		found:   mk(color.FgGreen),
		missing: mk(color.FgRed),
		head:    mk(color.Bold),
		bad:     mk(color.FgYellow),
	}
}

const rule = "--------------------------------------------------"

// WriteText prints the report for a human reader.
func WriteText(w io.Writer, r *Report, colored bool) error {
	pal := newPalette(colored)
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "%s %s\n%s\n", pal.head("Archive:"), r.Archive, rule)
	fmt.Fprintln(bw, pal.head("Root level keys:"))
	for _, n := range r.Root {
		fmt.Fprintf(bw, "  %s\n", n)
	}

	fmt.Fprintf(bw, "\n%s\n", pal.head("Full structure:"))
	for _, it := range r.Items {
		depth := strings.Count(strings.TrimPrefix(it.Path, "/"), "/")
		indent := strings.Repeat("  ", depth+1)
		switch {
		case it.Error != "" && it.Kind == "":
			fmt.Fprintf(bw, "%s%s: %s\n", indent, it.Path, pal.bad(it.Error))
			continue
		case it.Kind == KindGroup:
			fmt.Fprintf(bw, "%sGroup %s (%d members)\n", indent, it.Path, len(it.Children))
		default:
			fmt.Fprintf(bw, "%sDataset %s shape=%v dtype=%s\n", indent, it.Path, it.Shape, it.Dtype)
		}
		if it.Error != "" {
			fmt.Fprintf(bw, "%s  %s\n", indent, pal.bad(it.Error))
		}
		for _, a := range it.Attrs {
			if a.Error != "" {
				fmt.Fprintf(bw, "%s  @%s: %s\n", indent, a.Name, pal.bad(a.Error))
				continue
			}
			fmt.Fprintf(bw, "%s  @%s = %s\n", indent, a.Name, a.Value)
		}
	}

	fmt.Fprintf(bw, "\n%s\n", pal.head("Checking common paths:"))
	for _, p := range r.Probes {
		if !p.Found {
			fmt.Fprintf(bw, "  %-16s %s\n", p.Path, pal.missing("NOT FOUND"))
			continue
		}
		detail := p.Kind
		if p.Kind == KindDataset {
			detail = fmt.Sprintf("%s shape=%v", p.Kind, p.Shape)
		}
		fmt.Fprintf(bw, "  %-16s %s %s\n", p.Path, pal.found("FOUND"), detail)
	}
	return bw.Flush()
}

// WriteYAML writes the report as a YAML document.
func WriteYAML(w io.Writer, r *Report) error {
	b, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	_, err = w.Write(b)
	return err
}
