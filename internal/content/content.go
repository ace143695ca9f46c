// Package content models the portfolio shown behind the gate.
package content

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
)

var idRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9\-]{0,63}$`)

var ErrNotFound = errors.New("content not found")

type About struct {
	Name     string `yaml:"name" json:"name"`
	Headline string `yaml:"headline" json:"headline"`
	Location string `yaml:"location" json:"location"`
	Bio      string `yaml:"bio" json:"bio"`
	BioHTML  string `yaml:"-" json:"bio_html,omitempty"`
}

type Metrics struct {
	UserIncrease           string `yaml:"user_increase,omitempty" json:"user_increase,omitempty"`
	PerformanceImprovement string `yaml:"performance_improvement,omitempty" json:"performance_improvement,omitempty"`
	ConversionRate         string `yaml:"conversion_rate,omitempty" json:"conversion_rate,omitempty"`
	TimeToMarket           string `yaml:"time_to_market,omitempty" json:"time_to_market,omitempty"`
}

type Project struct {
	ID                  string   `yaml:"id" json:"id"`
	Title               string   `yaml:"title" json:"title"`
	Description         string   `yaml:"description" json:"description"`
	LongDescription     string   `yaml:"long_description" json:"long_description"`
	LongDescriptionHTML string   `yaml:"-" json:"long_description_html,omitempty"`
	Technologies        []string `yaml:"technologies" json:"technologies"`
	Category            string   `yaml:"category" json:"category"`
	Year                int      `yaml:"year" json:"year"`
	Status              string   `yaml:"status" json:"status"`
	ImageURL            string   `yaml:"image_url" json:"image_url"`
	ThumbnailURL        string   `yaml:"thumbnail_url" json:"thumbnail_url"`
	Highlights          []string `yaml:"highlights" json:"highlights"`
	Metrics             Metrics  `yaml:"metrics" json:"metrics"`
}

type Skill struct {
	ID                string   `yaml:"id" json:"id"`
	Name              string   `yaml:"name" json:"name"`
	Category          string   `yaml:"category" json:"category"`
	Level             int      `yaml:"level" json:"level"`
	Description       string   `yaml:"description" json:"description"`
	Projects          []string `yaml:"projects" json:"projects"`
	YearsOfExperience int      `yaml:"years_of_experience" json:"years_of_experience"`
	Certifications    []string `yaml:"certifications" json:"certifications"`
}

type Experience struct {
	ID           string   `yaml:"id" json:"id"`
	Company      string   `yaml:"company" json:"company"`
	Position     string   `yaml:"position" json:"position"`
	StartDate    string   `yaml:"start_date" json:"start_date"`
	EndDate      string   `yaml:"end_date,omitempty" json:"end_date,omitempty"`
	Description  string   `yaml:"description" json:"description"`
	Achievements []string `yaml:"achievements" json:"achievements"`
	Technologies []string `yaml:"technologies" json:"technologies"`
	TeamSize     int      `yaml:"team_size,omitempty" json:"team_size,omitempty"`
	Location     string   `yaml:"location" json:"location"`
}

type Testimonial struct {
	Quote    string `yaml:"quote" json:"quote"`
	Author   string `yaml:"author" json:"author"`
	Position string `yaml:"position" json:"position"`
}

type CaseStudy struct {
	ID           string            `yaml:"id" json:"id"`
	Title        string            `yaml:"title" json:"title"`
	Subtitle     string            `yaml:"subtitle" json:"subtitle"`
	Client       string            `yaml:"client" json:"client"`
	Duration     string            `yaml:"duration" json:"duration"`
	Team         []string          `yaml:"team" json:"team"`
	MyRole       string            `yaml:"my_role" json:"my_role"`
	Challenge    string            `yaml:"challenge" json:"challenge"`
	Solution     string            `yaml:"solution" json:"solution"`
	Outcome      string            `yaml:"outcome" json:"outcome"`
	Metrics      map[string]string `yaml:"metrics" json:"metrics"`
	Images       []string          `yaml:"images" json:"images"`
	Technologies []string          `yaml:"technologies" json:"technologies"`
	Testimonial  *Testimonial      `yaml:"testimonial,omitempty" json:"testimonial,omitempty"`
}

// Portfolio is everything rendered behind the gate.
type Portfolio struct {
	About       About        `yaml:"about" json:"about"`
	Projects    []Project    `yaml:"projects" json:"projects"`
	Skills      []Skill      `yaml:"skills" json:"skills"`
	Experience  []Experience `yaml:"experience" json:"experience"`
	CaseStudies []CaseStudy  `yaml:"case_studies" json:"case_studies"`
}

// ValidateID reports whether id is a well-formed content slug.
func ValidateID(id string) bool {
	return idRegexp.MatchString(id)
}

// Project looks up a project by id.
func (p Portfolio) Project(id string) (Project, error) {
	for _, pr := range p.Projects {
		if pr.ID == id {
			return pr, nil
		}
	}
	return Project{}, fmt.Errorf("project %q: %w", id, ErrNotFound)
}

// CaseStudy looks up a case study by id.
func (p Portfolio) CaseStudy(id string) (CaseStudy, error) {
	for _, cs := range p.CaseStudies {
		if cs.ID == id {
			return cs, nil
		}
	}
	return CaseStudy{}, fmt.Errorf("case study %q: %w", id, ErrNotFound)
}

// Validate checks ids are well formed and unique within each collection.
func (p Portfolio) Validate() error {
	check := func(kind string, ids []string) error {
		seen := make(map[string]bool, len(ids))
		for _, id := range ids {
			if !ValidateID(id) {
				return fmt.Errorf("%s id %q is not a valid slug", kind, id)
			}
			if seen[id] {
				return fmt.Errorf("duplicate %s id %q", kind, id)
			}
			seen[id] = true
		}
		return nil
	}

	var projects, skills, experience, studies []string
	for _, v := range p.Projects {
		projects = append(projects, v.ID)
	}
	for _, v := range p.Skills {
		skills = append(skills, v.ID)
	}
	for _, v := range p.Experience {
		experience = append(experience, v.ID)
	}
	for _, v := range p.CaseStudies {
		studies = append(studies, v.ID)
	}

	return errors.Join(
		check("project", projects),
		check("skill", skills),
		check("experience", experience),
		check("case study", studies),
	)
}

// Render returns a copy of p with markdown fields converted to HTML. A field
// goldmark cannot convert is kept as raw text.
func Render(p Portfolio) Portfolio {
	out := p
	out.About.BioHTML = markdown(p.About.Bio)

	out.Projects = make([]Project, len(p.Projects))
	for i, pr := range p.Projects {
		pr.LongDescriptionHTML = markdown(pr.LongDescription)
		out.Projects[i] = pr
	}
	return out
}

// ETag fingerprints the rendered portfolio for conditional requests.
func ETag(p Portfolio) string {
	data, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf(`"%x"`, sum[:8])
}

func markdown(src string) string {
	src = strings.TrimSpace(src)
	if src == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(src), &buf); err != nil {
		return src
	}
	return buf.String()
}
