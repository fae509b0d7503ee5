package seed

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ghprograms/programs-backend/internal/types"
)

//go:embed catalog.sample.yaml
var sampleCatalog []byte

// SampleCatalog returns the embedded demo catalog definition.
func SampleCatalog() []byte { return sampleCatalog }

// Catalog is the root of a YAML catalog definition. Seeding upserts by
// natural keys (org slug, program slug within org, sibling position
// below that), so re-running against an edited file updates in place.
type Catalog struct {
	Organizations []OrgDef `yaml:"organizations"`
}

type OrgDef struct {
	Name     string       `yaml:"name"`
	Slug     string       `yaml:"slug"`
	Programs []ProgramDef `yaml:"programs"`
}

type ProgramDef struct {
	Title             string     `yaml:"title"`
	Slug              string     `yaml:"slug"`
	Summary           string     `yaml:"summary"`
	Description       string     `yaml:"description"`
	Published         bool       `yaml:"published"`
	SequentialLessons bool       `yaml:"sequential_lessons"`
	Phases            []PhaseDef `yaml:"phases"`
}

type PhaseDef struct {
	Position int         `yaml:"position"`
	Title    string      `yaml:"title"`
	Summary  string      `yaml:"summary"`
	Drip     *DripDef    `yaml:"drip"`
	Lessons  []LessonDef `yaml:"lessons"`
}

// DripDef mirrors the drip_config column plus the rule kind. A phase
// cannot reference another phase by ID before it exists, so prerequisite
// rules name the prerequisite by its position within the same program.
type DripDef struct {
	Kind                 string     `yaml:"kind"`
	At                   *time.Time `yaml:"at"`
	OffsetDays           int        `yaml:"offset_days"`
	OffsetHours          int        `yaml:"offset_hours"`
	PrerequisitePosition int        `yaml:"prerequisite_position"`
	MinPercent           float64    `yaml:"min_percent"`
}

type LessonDef struct {
	Position         int           `yaml:"position"`
	Title            string        `yaml:"title"`
	Summary          string        `yaml:"summary"`
	Body             string        `yaml:"body"`
	VideoRequiredPct *float64      `yaml:"video_required_pct"`
	EstimatedMinutes int           `yaml:"estimated_minutes"`
	Drip             *DripDef      `yaml:"drip"`
	Tactics          []TacticDef   `yaml:"tactics"`
	Assessment       *AssessmentDef `yaml:"assessment"`
}

type TacticDef struct {
	Position         int    `yaml:"position"`
	Title            string `yaml:"title"`
	Description      string `yaml:"description"`
	Required         *bool  `yaml:"required"`
	EstimatedMinutes int    `yaml:"estimated_minutes"`
}

type AssessmentDef struct {
	Title       string        `yaml:"title"`
	PassPct     float64       `yaml:"pass_pct"`
	MaxAttempts int           `yaml:"max_attempts"`
	Questions   []QuestionDef `yaml:"questions"`
}

type QuestionDef struct {
	Position     int      `yaml:"position"`
	Prompt       string   `yaml:"prompt"`
	Options      []string `yaml:"options"`
	CorrectIndex int      `yaml:"correct_index"`
	Points       int      `yaml:"points"`
	Explanation  string   `yaml:"explanation"`
}

// Parse decodes a catalog definition. Unknown fields are rejected so a
// typoed key fails loudly instead of silently seeding defaults.
func Parse(data []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var c Catalog
	if err := dec.Decode(&c); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("Catalog file is empty")
		}
		return nil, fmt.Errorf("Failed to parse catalog yaml: %w", err)
	}
	c.normalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// normalize fills omitted positions from list order (1-based). Explicit
// positions are left alone and checked by Validate.
func (c *Catalog) normalize() {
	for oi := range c.Organizations {
		org := &c.Organizations[oi]
		for pi := range org.Programs {
			prog := &org.Programs[pi]
			for phi := range prog.Phases {
				phase := &prog.Phases[phi]
				if phase.Position == 0 {
					phase.Position = phi + 1
				}
				for li := range phase.Lessons {
					lesson := &phase.Lessons[li]
					if lesson.Position == 0 {
						lesson.Position = li + 1
					}
					for ti := range lesson.Tactics {
						if lesson.Tactics[ti].Position == 0 {
							lesson.Tactics[ti].Position = ti + 1
						}
					}
					if lesson.Assessment != nil {
						for qi := range lesson.Assessment.Questions {
							if lesson.Assessment.Questions[qi].Position == 0 {
								lesson.Assessment.Questions[qi].Position = qi + 1
							}
						}
					}
				}
			}
		}
	}
}

var knownDripKinds = map[string]bool{
	types.DripImmediate:         true,
	types.DripOnDate:            true,
	types.DripAfterEnrollment:   true,
	types.DripAfterPrerequisite: true,
	types.DripHybrid:            true,
}

// Validate enforces the same catalog invariants the HTTP write paths do:
// non-empty titles and slugs, dense sibling positions, known drip kinds,
// prerequisite rules pointing at an earlier phase, pass_pct within
// (0,100], and answer indexes within the option list.
func (c *Catalog) Validate() error {
	if len(c.Organizations) == 0 {
		return fmt.Errorf("Catalog has no organizations")
	}
	orgSlugs := map[string]bool{}
	for _, org := range c.Organizations {
		if strings.TrimSpace(org.Name) == "" || strings.TrimSpace(org.Slug) == "" {
			return fmt.Errorf("Organization requires name and slug")
		}
		if orgSlugs[org.Slug] {
			return fmt.Errorf("Duplicate organization slug %q", org.Slug)
		}
		orgSlugs[org.Slug] = true

		progSlugs := map[string]bool{}
		for _, prog := range org.Programs {
			if strings.TrimSpace(prog.Title) == "" || strings.TrimSpace(prog.Slug) == "" {
				return fmt.Errorf("Program in org %q requires title and slug", org.Slug)
			}
			if progSlugs[prog.Slug] {
				return fmt.Errorf("Duplicate program slug %q in org %q", prog.Slug, org.Slug)
			}
			progSlugs[prog.Slug] = true
			if err := validateProgram(org.Slug, prog); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateProgram(orgSlug string, prog ProgramDef) error {
	where := fmt.Sprintf("program %q (org %q)", prog.Slug, orgSlug)
	if err := densePositions(len(prog.Phases), func(i int) int { return prog.Phases[i].Position }); err != nil {
		return fmt.Errorf("Phases of %s: %w", where, err)
	}
	for _, phase := range prog.Phases {
		if strings.TrimSpace(phase.Title) == "" {
			return fmt.Errorf("Phase %d of %s requires a title", phase.Position, where)
		}
		if err := validateDrip(phase.Drip, phase.Position); err != nil {
			return fmt.Errorf("Phase %d of %s: %w", phase.Position, where, err)
		}
		if err := densePositions(len(phase.Lessons), func(i int) int { return phase.Lessons[i].Position }); err != nil {
			return fmt.Errorf("Lessons of phase %d of %s: %w", phase.Position, where, err)
		}
		for _, lesson := range phase.Lessons {
			if strings.TrimSpace(lesson.Title) == "" {
				return fmt.Errorf("Lesson %d of phase %d of %s requires a title", lesson.Position, phase.Position, where)
			}
			if lesson.VideoRequiredPct != nil && (*lesson.VideoRequiredPct < 0 || *lesson.VideoRequiredPct > 100) {
				return fmt.Errorf("Lesson %d of phase %d of %s: video_required_pct must be within [0,100]", lesson.Position, phase.Position, where)
			}
			if err := validateDrip(lesson.Drip, phase.Position); err != nil {
				return fmt.Errorf("Lesson %d of phase %d of %s: %w", lesson.Position, phase.Position, where, err)
			}
			if err := densePositions(len(lesson.Tactics), func(i int) int { return lesson.Tactics[i].Position }); err != nil {
				return fmt.Errorf("Tactics of lesson %d of phase %d of %s: %w", lesson.Position, phase.Position, where, err)
			}
			for _, tactic := range lesson.Tactics {
				if strings.TrimSpace(tactic.Title) == "" {
					return fmt.Errorf("Tactic %d of lesson %d of %s requires a title", tactic.Position, lesson.Position, where)
				}
			}
			if a := lesson.Assessment; a != nil {
				if err := validateAssessment(a); err != nil {
					return fmt.Errorf("Assessment of lesson %d of phase %d of %s: %w", lesson.Position, phase.Position, where, err)
				}
			}
		}
	}
	return nil
}

func validateDrip(d *DripDef, ownPosition int) error {
	if d == nil {
		return nil
	}
	if !knownDripKinds[d.Kind] {
		return fmt.Errorf("unknown drip kind %q", d.Kind)
	}
	switch d.Kind {
	case types.DripOnDate:
		if d.At == nil {
			return fmt.Errorf("drip kind %q requires at", d.Kind)
		}
	case types.DripAfterEnrollment:
		if d.OffsetDays <= 0 && d.OffsetHours <= 0 {
			return fmt.Errorf("drip kind %q requires offset_days or offset_hours", d.Kind)
		}
	case types.DripAfterPrerequisite, types.DripHybrid:
		if d.PrerequisitePosition <= 0 {
			return fmt.Errorf("drip kind %q requires prerequisite_position", d.Kind)
		}
		if d.PrerequisitePosition >= ownPosition {
			return fmt.Errorf("prerequisite_position %d must reference an earlier phase", d.PrerequisitePosition)
		}
	}
	if d.MinPercent < 0 || d.MinPercent > 100 {
		return fmt.Errorf("min_percent must be within [0,100]")
	}
	if d.OffsetDays < 0 || d.OffsetHours < 0 {
		return fmt.Errorf("offsets must not be negative")
	}
	return nil
}

func validateAssessment(a *AssessmentDef) error {
	if strings.TrimSpace(a.Title) == "" {
		return fmt.Errorf("requires a title")
	}
	if a.PassPct <= 0 || a.PassPct > 100 {
		return fmt.Errorf("pass_pct must be within (0,100]")
	}
	if a.MaxAttempts < 0 {
		return fmt.Errorf("max_attempts must not be negative")
	}
	if len(a.Questions) == 0 {
		return fmt.Errorf("requires at least one question")
	}
	if err := densePositions(len(a.Questions), func(i int) int { return a.Questions[i].Position }); err != nil {
		return err
	}
	for _, q := range a.Questions {
		if strings.TrimSpace(q.Prompt) == "" {
			return fmt.Errorf("question %d requires a prompt", q.Position)
		}
		if len(q.Options) < 2 {
			return fmt.Errorf("question %d requires at least two options", q.Position)
		}
		if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
			return fmt.Errorf("question %d correct_index out of range", q.Position)
		}
		if q.Points < 0 {
			return fmt.Errorf("question %d points must not be negative", q.Position)
		}
	}
	return nil
}

// densePositions checks that n sibling positions are exactly 1..n.
func densePositions(n int, at func(int) int) error {
	seen := make(map[int]bool, n)
	for i := 0; i < n; i++ {
		p := at(i)
		if p < 1 || p > n {
			return fmt.Errorf("position %d out of range 1..%d", p, n)
		}
		if seen[p] {
			return fmt.Errorf("duplicate position %d", p)
		}
		seen[p] = true
	}
	return nil
}
