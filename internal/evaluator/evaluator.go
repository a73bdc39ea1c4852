// Package evaluator maps a vital-sign reading to zero or more alert
// candidates. Evaluation is pure: no clock, no I/O, no state between calls.
// Each vital category is evaluated independently, so one reading can produce
// several candidates at once. Boundary values sit inside the reference range
// and never alert.
package evaluator

import (
	"fmt"

	"vitalwatch/internal/models"
)

// Fixed severity band offsets relative to the reference ranges.
const (
	heartRateHighBand = 20 // bpm above max before High
	heartRateLowBand  = 15 // bpm below min before High

	temperatureHighCut = 38.5 // °C
	temperatureLowCut  = 35.0 // °C

	spo2CriticalCut = 90.0 // %
	spo2HighCut     = 93.0 // %

	systolicCriticalCut  = 180.0
	diastolicCriticalCut = 120.0
	systolicHighCut      = 160.0
	diastolicHighCut     = 100.0
	systolicLowHighCut   = 80.0
	diastolicLowHighCut  = 50.0
)

type Evaluator struct {
	ranges models.ReferenceRanges
}

func New(ranges models.ReferenceRanges) *Evaluator {
	return &Evaluator{ranges: ranges}
}

// Evaluate inspects every measurement present on the reading and returns the
// candidates for values outside their reference range. Respiratory rate is
// informational only and never produces a candidate; no evaluation rule
// exists for glucose.
func (e *Evaluator) Evaluate(reading *models.Reading) []models.AlertCandidate {
	var candidates []models.AlertCandidate

	if c := e.checkHeartRate(reading); c != nil {
		candidates = append(candidates, *c)
	}
	if c := e.checkTemperature(reading); c != nil {
		candidates = append(candidates, *c)
	}
	if c := e.checkOxygenSaturation(reading); c != nil {
		candidates = append(candidates, *c)
	}
	if c := e.checkBloodPressure(reading); c != nil {
		candidates = append(candidates, *c)
	}

	return candidates
}

func (e *Evaluator) checkHeartRate(r *models.Reading) *models.AlertCandidate {
	if r.HeartRate == nil {
		return nil
	}
	value := r.HeartRate.Value
	bounds := e.ranges.HeartRate

	switch {
	case value > bounds.Max:
		severity := models.SeverityMedium
		if value > bounds.Max+heartRateHighBand {
			severity = models.SeverityHigh
		}
		return candidate(r, models.AlertHighHeartRate, severity,
			fmt.Sprintf("High heart rate detected: %g bpm", value), bounds.Max, value)
	case value < bounds.Min:
		severity := models.SeverityMedium
		if value < bounds.Min-heartRateLowBand {
			severity = models.SeverityHigh
		}
		return candidate(r, models.AlertLowHeartRate, severity,
			fmt.Sprintf("Low heart rate detected: %g bpm", value), bounds.Min, value)
	}
	return nil
}

func (e *Evaluator) checkTemperature(r *models.Reading) *models.AlertCandidate {
	if r.Temperature == nil {
		return nil
	}
	value := r.Temperature.Value
	bounds := e.ranges.Temperature

	switch {
	case value > bounds.Max:
		severity := models.SeverityMedium
		if value > temperatureHighCut {
			severity = models.SeverityHigh
		}
		return candidate(r, models.AlertHighTemperature, severity,
			fmt.Sprintf("High temperature detected: %g°C", value), bounds.Max, value)
	case value < bounds.Min:
		severity := models.SeverityMedium
		if value < temperatureLowCut {
			severity = models.SeverityHigh
		}
		return candidate(r, models.AlertLowTemperature, severity,
			fmt.Sprintf("Low temperature detected: %g°C", value), bounds.Min, value)
	}
	return nil
}

func (e *Evaluator) checkOxygenSaturation(r *models.Reading) *models.AlertCandidate {
	if r.OxygenSaturation == nil {
		return nil
	}
	value := r.OxygenSaturation.Value
	min := e.ranges.OxygenSaturation
	if value >= min {
		return nil
	}

	severity := models.SeverityMedium
	switch {
	case value < spo2CriticalCut:
		severity = models.SeverityCritical
	case value < spo2HighCut:
		severity = models.SeverityHigh
	}
	return candidate(r, models.AlertLowOxygenSaturation, severity,
		fmt.Sprintf("Low oxygen saturation detected: %g%%", value), min, value)
}

func (e *Evaluator) checkBloodPressure(r *models.Reading) *models.AlertCandidate {
	if r.BloodPressure == nil {
		return nil
	}
	sys := r.BloodPressure.Systolic
	dia := r.BloodPressure.Diastolic
	sysRange := e.ranges.Systolic
	diaRange := e.ranges.Diastolic

	message := func(kind string) string {
		return fmt.Sprintf("%s blood pressure detected: %g/%g mmHg", kind, sys, dia)
	}

	if sys > sysRange.Max || dia > diaRange.Max {
		severity := models.SeverityMedium
		switch {
		case sys > systolicCriticalCut || dia > diastolicCriticalCut:
			severity = models.SeverityCritical
		case sys > systolicHighCut || dia > diastolicHighCut:
			severity = models.SeverityHigh
		}
		// The threshold/actual pair reports the breached component,
		// systolic taking precedence when both are out of range.
		threshold, actual := sysRange.Max, sys
		if sys <= sysRange.Max {
			threshold, actual = diaRange.Max, dia
		}
		return candidate(r, models.AlertHighBloodPressure, severity, message("High"), threshold, actual)
	}

	if sys < sysRange.Min || dia < diaRange.Min {
		severity := models.SeverityMedium
		if sys < systolicLowHighCut || dia < diastolicLowHighCut {
			severity = models.SeverityHigh
		}
		threshold, actual := sysRange.Min, sys
		if sys >= sysRange.Min {
			threshold, actual = diaRange.Min, dia
		}
		return candidate(r, models.AlertLowBloodPressure, severity, message("Low"), threshold, actual)
	}

	return nil
}

func candidate(r *models.Reading, alertType, severity, message string, threshold, actual float64) *models.AlertCandidate {
	c := &models.AlertCandidate{
		PatientID:      r.PatientID,
		AlertType:      alertType,
		Severity:       severity,
		Message:        message,
		DeviceID:       r.DeviceID,
		ThresholdValue: &threshold,
		ActualValue:    &actual,
	}
	if r.ID != "" {
		id := r.ID
		c.ReadingID = &id
	}
	return c
}
