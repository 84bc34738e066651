// Package parser turns free-form target lists into validated TargetSpecs.
package parser

import (
	"fmt"
	"regexp"
	"strings"

	"findingchart/internal/model"
)

const (
	DefaultMinFieldSize = 2.0
	DefaultMaxFieldSize = 60.0

	minOutputEpoch = 1900.0 // exclusive
	maxOutputEpoch = 2100.0
)

var sexagesimal = regexp.MustCompile(`^[+-]?\d+:\d+:\d+(\.\d+)?$`)

// Options are the settings shared by every line of one submission.
type Options struct {
	Format       model.CoordFormat
	ProperMotion model.ProperMotionUnit
	FieldSize    string
	OutputEpoch  string
	Survey       string
	Annotate     bool

	// Surveys, when not empty, restricts Survey to the listed names.
	Surveys      []string
	MinFieldSize float64
	MaxFieldSize float64
}

// OptionsFromForm converts raw form values. An empty format means
// sexagesimal-colon and an empty unit means arcsec/year.
func OptionsFromForm(f model.FormOptions) (Options, error) {
	opts := Options{
		Format:       model.FormatSexagesimalColon,
		ProperMotion: model.UnitArcsec,
		FieldSize:    strings.TrimSpace(f.Size),
		OutputEpoch:  strings.TrimSpace(f.OutputEpoch),
		Survey:       strings.TrimSpace(f.Survey),
		Annotate:     f.Annotated(),
	}
	if f.Format != "" {
		format, ok := model.ParseCoordFormat(f.Format)
		if !ok {
			return Options{}, &FieldError{Field: "format", Value: f.Format,
				Message: fmt.Sprintf("Unknown coordinate format %q", f.Format)}
		}
		opts.Format = format
	}
	if f.ProperMotion != "" {
		unit, ok := model.ParseProperMotionUnit(f.ProperMotion)
		if !ok {
			return Options{}, &FieldError{Field: "propermotion", Value: f.ProperMotion,
				Message: fmt.Sprintf("Unknown proper motion unit %q", f.ProperMotion)}
		}
		opts.ProperMotion = unit
	}
	return opts, nil
}

func (o Options) sizeRange() (float64, float64) {
	lo, hi := o.MinFieldSize, o.MaxFieldSize
	if lo == 0 && hi == 0 {
		lo, hi = DefaultMinFieldSize, DefaultMaxFieldSize
	}
	return lo, hi
}

func (o Options) validate() (size, outEpoch float64, err error) {
	size, ok := ParseNumber(o.FieldSize)
	if !ok {
		return 0, 0, notANumber("size", o.FieldSize)
	}
	lo, hi := o.sizeRange()
	if size < lo || size > hi {
		return 0, 0, &FieldError{Field: "size", Value: o.FieldSize,
			Message: fmt.Sprintf("Field size must be between %g and %g arcmin", lo, hi)}
	}

	outEpoch, ok = ParseNumber(o.OutputEpoch)
	if !ok {
		return 0, 0, notANumber("outepoch", o.OutputEpoch)
	}
	if outEpoch <= minOutputEpoch || outEpoch > maxOutputEpoch {
		return 0, 0, &FieldError{Field: "outepoch", Value: o.OutputEpoch,
			Message: fmt.Sprintf("Observing epoch must be between %g and %g", minOutputEpoch, maxOutputEpoch)}
	}

	if o.Survey == "" {
		return 0, 0, &FieldError{Field: "survey", Message: "A survey must be selected"}
	}
	if len(o.Surveys) > 0 && !contains(o.Surveys, o.Survey) {
		return 0, 0, &FieldError{Field: "survey", Value: o.Survey,
			Message: fmt.Sprintf("Unknown survey %q", o.Survey)}
	}
	return size, outEpoch, nil
}

// Parse validates the shared options and then every line of text, stopping
// at the first error. Blank lines are skipped.
func Parse(text string, opts Options) ([]model.TargetSpec, error) {
	size, outEpoch, err := opts.validate()
	if err != nil {
		return nil, err
	}

	lines := strings.Split(text, "\n")
	targets := make([]model.TargetSpec, 0, len(lines))
	for i, raw := range lines {
		raw = strings.TrimSuffix(raw, "\r")
		tokens := strings.Fields(raw)
		if len(tokens) == 0 {
			continue
		}

		t, err := parseLine(raw, tokens, i+1, opts.Format)
		if err != nil {
			return nil, err
		}
		if opts.ProperMotion == model.UnitMilliarcsec {
			t.RAPM /= 1000
			t.DecPM /= 1000
		}
		t.Format = opts.Format
		t.OutputEpoch = outEpoch
		t.Survey = opts.Survey
		t.FieldSizeArcmin = size
		t.Annotate = opts.Annotate
		targets = append(targets, t)
	}

	if len(targets) == 0 {
		return nil, ErrNoTargets
	}
	return targets, nil
}

func parseLine(raw string, tokens []string, line int, format model.CoordFormat) (model.TargetSpec, error) {
	t := model.TargetSpec{Name: tokens[0]}

	// number of tokens taken by the coordinates
	coords := 2
	switch format {
	case model.FormatDecimal:
		t.RA, t.Dec = token(tokens, 1), token(tokens, 2)
		if _, ok := ParseNumber(t.RA); !ok {
			return t, &LineError{Line: line, Field: "ra", Value: t.RA, Expected: "decimal degrees"}
		}
		if _, ok := ParseNumber(t.Dec); !ok {
			return t, &LineError{Line: line, Field: "dec", Value: t.Dec, Expected: "decimal degrees"}
		}
	case model.FormatSexagesimalSpace:
		coords = 6
		t.RA = strings.Join([]string{token(tokens, 1), token(tokens, 2), token(tokens, 3)}, ":")
		t.Dec = strings.Join([]string{token(tokens, 4), token(tokens, 5), token(tokens, 6)}, ":")
		if !sexagesimal.MatchString(t.RA) {
			return t, &LineError{Line: line, Field: "ra", Value: t.RA, Expected: "HH MM SS"}
		}
		if !sexagesimal.MatchString(t.Dec) {
			return t, &LineError{Line: line, Field: "dec", Value: t.Dec, Expected: "DD MM SS"}
		}
	default:
		t.RA, t.Dec = token(tokens, 1), token(tokens, 2)
		if !sexagesimal.MatchString(t.RA) {
			return t, &LineError{Line: line, Field: "ra", Value: t.RA, Expected: "HH:MM:SS"}
		}
		if !sexagesimal.MatchString(t.Dec) {
			return t, &LineError{Line: line, Field: "dec", Value: t.Dec, Expected: "DD:MM:SS"}
		}
	}

	fields := []struct {
		name string
		dst  *float64
	}{
		{"rapm", &t.RAPM},
		{"decpm", &t.DecPM},
		{"epoch", &t.Epoch},
	}
	for i, f := range fields {
		value := token(tokens, 1+coords+i)
		v, ok := ParseNumber(value)
		if !ok {
			return t, &LineError{Line: line, Field: f.name, Value: value, Expected: "number"}
		}
		*f.dst = v
	}

	t.Comment = extractComment(raw, tokens, 1+coords+len(fields))
	return t, nil
}

func token(tokens []string, i int) string {
	if i < len(tokens) {
		return tokens[i]
	}
	return ""
}

// extractComment returns raw from the first comment token onwards so the
// comment keeps its original spacing.
func extractComment(raw string, tokens []string, required int) string {
	if len(tokens) <= required {
		return ""
	}
	pos := 0
	for _, tok := range tokens[:required] {
		pos += strings.Index(raw[pos:], tok) + len(tok)
	}
	return raw[pos+strings.Index(raw[pos:], tokens[required]):]
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
