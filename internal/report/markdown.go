package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const untitledSection = "Введение"

// maxSlugRunes keeps section file names well under file system limits.
const maxSlugRunes = 64

// writeFile is replaced in tests to fail part way through an emission.
var writeFile = os.WriteFile

// writeMarkdown writes one file per section into <dir>/<name>_teacher_conclusion/
// plus an index.md linking them in order. The files are written to a
// temporary directory that replaces the previous emission only once every
// file is written, so a failed emission leaves the earlier one untouched.
func writeMarkdown(doc Document, job Job, _ Options) ([]string, error) {
	base := baseName(job.Name)
	final := filepath.Join(job.Dir, base)
	staging, err := os.MkdirTemp(job.Dir, "."+base+"-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(staging)
	if err := os.Chmod(staging, 0o755); err != nil {
		return nil, err
	}

	title, sections := doc.Outline()
	if title == "" {
		title = job.Name
	}

	var paths []string
	var index strings.Builder
	fmt.Fprintf(&index, "# %s\n\n", title)
	for i, sec := range sections {
		heading := sec.Title
		if heading == "" {
			heading = untitledSection
		}
		file := fmt.Sprintf("%02d_%s.md", i+1, sectionSlug(heading))
		if err := writeFile(filepath.Join(staging, file), []byte(renderSection(heading, sec.Blocks)), 0o644); err != nil {
			return nil, err
		}
		paths = append(paths, filepath.Join(final, file))
		fmt.Fprintf(&index, "- [%s](%s)\n", heading, file)
	}
	if err := writeFile(filepath.Join(staging, "index.md"), []byte(index.String()), 0o644); err != nil {
		return nil, err
	}

	if err := os.RemoveAll(final); err != nil {
		return nil, err
	}
	if err := os.Rename(staging, final); err != nil {
		return nil, err
	}
	return append([]string{filepath.Join(final, "index.md")}, paths...), nil
}

func sectionSlug(heading string) string {
	slug := []rune(strings.Trim(Slug(heading), "_"))
	if len(slug) > maxSlugRunes {
		slug = slug[:maxSlugRunes]
	}
	if s := strings.TrimRight(string(slug), "_"); s != "" {
		return s
	}
	return "section"
}

func renderSection(title string, blocks []Block) string {
	parts := []string{"# " + title}
	for _, b := range blocks {
		parts = append(parts, renderBlock(b))
	}
	return strings.Join(parts, "\n\n") + "\n"
}

func renderBlock(b Block) string {
	switch b.Kind {
	case Heading:
		// section files start at "#", so nested headings move up one level
		return strings.Repeat("#", max(b.Level-1, 2)) + " " + b.Inline.Markdown()
	case Bullets:
		indent := strings.Repeat("  ", max(b.Level-1, 0))
		lines := make([]string, len(b.Items))
		for i, item := range b.Items {
			lines[i] = indent + "- " + item.Markdown()
		}
		return strings.Join(lines, "\n")
	default:
		return b.Inline.Markdown()
	}
}
