package model

// CoordFormat selects how RA/Dec appear in an input line.
type CoordFormat string

const (
	FormatDecimal          CoordFormat = "decimal"
	FormatSexagesimalColon CoordFormat = "sexagesimal-colon"
	FormatSexagesimalSpace CoordFormat = "sexagesimal-space"
)

// ParseCoordFormat returns the format named by s and whether it is known.
func ParseCoordFormat(s string) (CoordFormat, bool) {
	switch CoordFormat(s) {
	case FormatDecimal, FormatSexagesimalColon, FormatSexagesimalSpace:
		return CoordFormat(s), true
	}
	return "", false
}

// ProperMotionUnit is the unit proper motions are entered in.
type ProperMotionUnit string

const (
	UnitArcsec      ProperMotionUnit = "as"
	UnitMilliarcsec ProperMotionUnit = "mas"
)

// ParseProperMotionUnit returns the unit named by s and whether it is known.
func ParseProperMotionUnit(s string) (ProperMotionUnit, bool) {
	switch ProperMotionUnit(s) {
	case UnitArcsec, UnitMilliarcsec:
		return ProperMotionUnit(s), true
	}
	return "", false
}

// TargetSpec is one validated input line plus the submission-wide settings.
// Proper motions are always in arcsec/year.
type TargetSpec struct {
	Name            string      `json:"name"`
	RA              string      `json:"ra"`
	Dec             string      `json:"dec"`
	Format          CoordFormat `json:"format"`
	RAPM            float64     `json:"rapm"`
	DecPM           float64     `json:"decpm"`
	Epoch           float64     `json:"epoch"`
	OutputEpoch     float64     `json:"outepoch"`
	Comment         string      `json:"comment,omitempty"`
	Survey          string      `json:"survey"`
	FieldSizeArcmin float64     `json:"size"`
	Annotate        bool        `json:"annotate"`
}
