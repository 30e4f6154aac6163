package models

import "time"

// BMI classification labels.
const (
	BMIUnderweight = "Underweight"
	BMINormal      = "Normal"
	BMIOverweight  = "Overweight"
	BMIObese       = "Obese"
)

// ClassifyBMI maps a BMI value to its status label.
func ClassifyBMI(bmi float64) string {
	switch {
	case bmi < 18.5:
		return BMIUnderweight
	case bmi >= 18.5 && bmi < 24.9:
		return BMINormal
	case bmi >= 25 && bmi < 29.9:
		return BMIOverweight
	default:
		return BMIObese
	}
}

// Report is the append-only record of a completed, paid measurement.
type Report struct {
	ID            int64
	SessionID     string
	UserID        int64
	PatientName   string
	ReportDate    time.Time
	Measurement   Measurement
	BMIStatus     string
	Fee           Amount
	TransactionID string
	PaymentType   string
}

// Completion carries everything needed to close a paid session.
type Completion struct {
	SessionID     string
	UserID        int64
	Measurement   Measurement
	Fee           Amount
	TransactionID string
	PaymentMethod string
}

// Receipt is the outcome of a recorded completion: the report and the user
// with the updated balance.
type Receipt struct {
	Report *Report
	User   *User
}
