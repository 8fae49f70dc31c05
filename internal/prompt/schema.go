package prompt

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed schemas/*.yaml
var schemaFS embed.FS

// Shipped schema versions.
const (
	SchemaStandard4 = "standard-4"
	SchemaExtended7 = "extended-7"
)

// ErrUnknownSchema reports a schema version that is malformed or has no
// schema document.
var ErrUnknownSchema = errors.New("unknown report schema")

var schemaVersionPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,63}$`)

// ValidSchemaVersion reports whether version is usable as a schema file
// name: lowercase letters, digits and hyphens only.
func ValidSchemaVersion(version string) bool {
	return schemaVersionPattern.MatchString(version)
}

// Section is one required heading of the generated report together with the
// guidance the model receives for it.
type Section struct {
	Title  string   `yaml:"title" json:"title"`
	Lead   string   `yaml:"lead" json:"lead"`
	Points []string `yaml:"points" json:"points,omitempty"`
}

// ReportSchema is the versioned instruction block: report structure, style
// rules and the clinical reference table the model reasons against.
type ReportSchema struct {
	Version            string    `yaml:"version" json:"version"`
	Name               string    `yaml:"name" json:"name"`
	Intro              string    `yaml:"intro" json:"-"`
	Sections           []Section `yaml:"sections" json:"sections"`
	StyleRules         []string  `yaml:"style_rules" json:"style_rules"`
	ReferenceGuide     string    `yaml:"reference_guide" json:"-"`
	ReasoningClues     []string  `yaml:"reasoning_clues" json:"-"`
	ClosingInstruction string    `yaml:"closing_instruction" json:"-"`
	UserPreamble       string    `yaml:"user_preamble" json:"-"`
	UserClosing        string    `yaml:"user_closing" json:"-"`
}

// LoadSchema returns the schema for version. A file named <version>.yaml in
// overrideDir takes precedence over the embedded copy.
func LoadSchema(version, overrideDir string) (*ReportSchema, error) {
	if !ValidSchemaVersion(version) {
		return nil, fmt.Errorf("%w %q", ErrUnknownSchema, version)
	}

	name := version + ".yaml"
	var (
		data []byte
		err  error
	)
	if overrideDir != "" {
		data, err = os.ReadFile(filepath.Join(overrideDir, name))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read schema override %s: %w", name, err)
		}
	}
	if data == nil {
		data, err = schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			return nil, fmt.Errorf("%w %q", ErrUnknownSchema, version)
		}
	}

	return ParseSchema(data, version)
}

// AvailableSchemas lists the schema versions LoadSchema can resolve: the
// embedded ones plus every validly named *.yaml file in overrideDir. The
// result is sorted.
func AvailableSchemas(overrideDir string) ([]string, error) {
	seen := make(map[string]struct{})

	embedded, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("list embedded schemas: %w", err)
	}
	collectSchemaNames(seen, embedded)

	if overrideDir != "" {
		entries, err := os.ReadDir(overrideDir)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("list schema overrides: %w", err)
		}
		collectSchemaNames(seen, entries)
	}

	versions := make([]string, 0, len(seen))
	for v := range seen {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions, nil
}

func collectSchemaNames(seen map[string]struct{}, entries []os.DirEntry) {
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		version, ok := strings.CutSuffix(e.Name(), ".yaml")
		if ok && ValidSchemaVersion(version) {
			seen[version] = struct{}{}
		}
	}
}

// ParseSchema decodes and validates a schema document. The document's
// version must match want when want is non-empty.
func ParseSchema(data []byte, want string) (*ReportSchema, error) {
	var s ReportSchema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse report schema: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if want != "" && s.Version != want {
		return nil, fmt.Errorf("report schema version mismatch: file declares %q, expected %q", s.Version, want)
	}
	return &s, nil
}

// Validate checks that the schema can drive a prompt.
func (s *ReportSchema) Validate() error {
	if strings.TrimSpace(s.Version) == "" {
		return errors.New("report schema: version is required")
	}
	if len(s.Sections) == 0 {
		return fmt.Errorf("report schema %s: at least one section is required", s.Version)
	}
	seen := make(map[string]bool, len(s.Sections))
	for i, sec := range s.Sections {
		title := strings.TrimSpace(sec.Title)
		if title == "" {
			return fmt.Errorf("report schema %s: section %d has no title", s.Version, i+1)
		}
		if seen[title] {
			return fmt.Errorf("report schema %s: duplicate section %q", s.Version, title)
		}
		seen[title] = true
	}
	if strings.TrimSpace(s.UserPreamble) == "" {
		return fmt.Errorf("report schema %s: user_preamble is required", s.Version)
	}
	return nil
}

// SectionTitles returns the report headings in order.
func (s *ReportSchema) SectionTitles() []string {
	titles := make([]string, len(s.Sections))
	for i, sec := range s.Sections {
		titles[i] = sec.Title
	}
	return titles
}

// MissingSections lists the headings that do not occur in report. Matching
// is case-insensitive on the heading text without its parenthetical suffix.
func (s *ReportSchema) MissingSections(report string) []string {
	lower := strings.ToLower(report)
	var missing []string
	for _, title := range s.SectionTitles() {
		key := title
		if i := strings.Index(key, " ("); i > 0 {
			key = key[:i]
		}
		if !strings.Contains(lower, strings.ToLower(key)) {
			missing = append(missing, title)
		}
	}
	return missing
}

// SystemBlock renders the static instruction text. The output depends only
// on the schema contents.
func (s *ReportSchema) SystemBlock() string {
	var b strings.Builder

	b.WriteString(strings.TrimSpace(s.Intro))
	b.WriteString("\n\n🧠 YOU MUST FOLLOW THE EXACT FORMAT BELOW:\n\n---\n\n")

	for i, sec := range s.Sections {
		fmt.Fprintf(&b, "**%d. %s**  \n", i+1, sec.Title)
		if sec.Lead != "" {
			b.WriteString(sec.Lead)
			b.WriteString("\n")
		}
		for _, p := range sec.Points {
			b.WriteString("- ")
			b.WriteString(p)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("---\n\n✅ RESPONSE RULES:\n")
	for _, r := range s.StyleRules {
		b.WriteString("- ")
		b.WriteString(r)
		b.WriteString("\n")
	}
	b.WriteString("---\n")

	if guide := strings.TrimSpace(s.ReferenceGuide); guide != "" {
		b.WriteString("\n📚 Clinical Reference Ranges and Interpretation Guide (For Reasoning):\n\n")
		b.WriteString(guide)
		b.WriteString("\n")
	}

	if len(s.ReasoningClues) > 0 {
		b.WriteString("\n🧠 Reasoning Clues:\n")
		for _, c := range s.ReasoningClues {
			b.WriteString("- ")
			b.WriteString(c)
			b.WriteString("\n")
		}
	}

	if closing := strings.TrimSpace(s.ClosingInstruction); closing != "" {
		b.WriteString("\n---\n\n")
		b.WriteString(closing)
		b.WriteString("\n")
	}

	return b.String()
}

// UserBlock wraps normalized health data with the schema's preamble and
// closing request.
func (s *ReportSchema) UserBlock(normalized string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(s.UserPreamble))
	b.WriteString("\n\n")
	b.WriteString(normalized)
	b.WriteString("\n\n")
	if closing := strings.TrimSpace(s.UserClosing); closing != "" {
		b.WriteString(closing)
		b.WriteString("\n")
	}
	return b.String()
}
