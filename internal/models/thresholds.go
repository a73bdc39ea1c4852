// internal/models/thresholds.go

package models

// Range is an inclusive in-range band; values strictly outside it alert.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// ReferenceRanges holds the fixed vital-sign thresholds. These are service
// configuration, not per-patient settings. Severity band widths relative to
// these bounds are fixed in the evaluator.
type ReferenceRanges struct {
	HeartRate        Range   `json:"heart_rate"`        // bpm
	Temperature      Range   `json:"temperature"`       // °C
	OxygenSaturation float64 `json:"oxygen_saturation"` // minimum %
	Systolic         Range   `json:"systolic"`          // mmHg
	Diastolic        Range   `json:"diastolic"`         // mmHg
	RespiratoryRate  Range   `json:"respiratory_rate"`  // breaths/min, informational only
}

func DefaultReferenceRanges() ReferenceRanges {
	return ReferenceRanges{
		HeartRate:        Range{Min: 60, Max: 100},
		Temperature:      Range{Min: 36.5, Max: 37.5},
		OxygenSaturation: 95,
		Systolic:         Range{Min: 90, Max: 140},
		Diastolic:        Range{Min: 60, Max: 90},
		RespiratoryRate:  Range{Min: 12, Max: 20},
	}
}
