// Package grading holds the institution's grading policy: the score bands that
// map a total mark to a letter grade and grade point, and the CGPA thresholds
// used for degree classification. The default policy is the five-point scale;
// institutions with another scale load theirs from YAML.
package grading

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Band maps totals in [Min, next band's Min) to a letter grade.
type Band struct {
	Letter string  `yaml:"letter" json:"letter"`
	Min    float64 `yaml:"min" json:"min"`
	Point  float64 `yaml:"point" json:"point"`
}

// Class is a degree classification awarded for a CGPA at or above Min.
type Class struct {
	Name string  `yaml:"name" json:"name"`
	Min  float64 `yaml:"min" json:"min"`
}

// Scale is an immutable grading policy.
type Scale struct {
	MaxScore      float64 `yaml:"max_score" json:"max_score"`
	Bands         []Band  `yaml:"bands" json:"bands"`
	Classes       []Class `yaml:"classes" json:"classes"`
	FallbackClass string  `yaml:"fallback_class" json:"fallback_class"`
}

// Result is the grade derived from a total score.
type Result struct {
	Letter string
	Point  float64
}

// DefaultScale returns the five-point scale.
func DefaultScale() *Scale {
	return &Scale{
		MaxScore: 100,
		Bands: []Band{
			{Letter: "F", Min: 0, Point: 0.0},
			{Letter: "E", Min: 40, Point: 1.0},
			{Letter: "D", Min: 45, Point: 2.0},
			{Letter: "C", Min: 50, Point: 3.0},
			{Letter: "B", Min: 60, Point: 4.0},
			{Letter: "A", Min: 70, Point: 5.0},
		},
		Classes: []Class{
			{Name: "First Class Honours", Min: 4.50},
			{Name: "Second Class Honours (Upper Division)", Min: 3.50},
			{Name: "Second Class Honours (Lower Division)", Min: 2.40},
			{Name: "Third Class Honours", Min: 1.50},
			{Name: "Pass", Min: 1.00},
		},
		FallbackClass: "Fail",
	}
}

// LoadScaleFile reads a YAML grading policy. An empty path yields the default scale.
func LoadScaleFile(path string) (*Scale, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultScale(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read grading scale: %w", err)
	}
	return ParseScale(raw)
}

// ParseScale decodes and validates a YAML grading policy.
func ParseScale(raw []byte) (*Scale, error) {
	var scale Scale
	if err := yaml.Unmarshal(raw, &scale); err != nil {
		return nil, fmt.Errorf("decode grading scale: %w", err)
	}
	if err := scale.normalize(); err != nil {
		return nil, err
	}
	return &scale, nil
}

func (s *Scale) normalize() error {
	if s.MaxScore <= 0 {
		s.MaxScore = 100
	}
	if len(s.Bands) == 0 {
		return fmt.Errorf("grading scale has no bands")
	}
	sort.SliceStable(s.Bands, func(i, j int) bool { return s.Bands[i].Min < s.Bands[j].Min })
	if s.Bands[0].Min != 0 {
		return fmt.Errorf("lowest band must start at 0, got %v", s.Bands[0].Min)
	}
	seen := make(map[string]bool, len(s.Bands))
	for i, band := range s.Bands {
		band.Letter = strings.ToUpper(strings.TrimSpace(band.Letter))
		if band.Letter == "" {
			return fmt.Errorf("band %d has no letter", i)
		}
		if seen[band.Letter] {
			return fmt.Errorf("duplicate band letter %s", band.Letter)
		}
		seen[band.Letter] = true
		if i > 0 && band.Min == s.Bands[i-1].Min {
			return fmt.Errorf("bands %s and %s overlap", s.Bands[i-1].Letter, band.Letter)
		}
		if band.Min > s.MaxScore {
			return fmt.Errorf("band %s starts above max score", band.Letter)
		}
		s.Bands[i] = band
	}
	sort.SliceStable(s.Classes, func(i, j int) bool { return s.Classes[i].Min > s.Classes[j].Min })
	if s.FallbackClass == "" {
		s.FallbackClass = "Fail"
	}
	return nil
}

// Grade maps a total score to its band. Totals are expected in [0, MaxScore].
func (s *Scale) Grade(total float64) Result {
	band := s.Bands[0]
	for _, candidate := range s.Bands[1:] {
		if total < candidate.Min {
			break
		}
		band = candidate
	}
	return Result{Letter: band.Letter, Point: band.Point}
}

// Classify returns the degree classification for a CGPA, evaluated top-down on
// inclusive lower bounds.
func (s *Scale) Classify(cgpa float64) string {
	for _, class := range s.Classes {
		if cgpa >= class.Min {
			return class.Name
		}
	}
	return s.FallbackClass
}

// Letters lists every letter grade in the scale from lowest to highest.
func (s *Scale) Letters() []string {
	letters := make([]string, len(s.Bands))
	for i, band := range s.Bands {
		letters[i] = band.Letter
	}
	return letters
}
