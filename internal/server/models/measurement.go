package models

import "time"

// Measurement is the payload a kiosk embeds, encrypted, in the message that
// starts a conversation.
type Measurement struct {
	Height    float64 `json:"height"`
	Weight    float64 `json:"weight"`
	BMI       float64 `json:"bmi"`
	MachineID string  `json:"machineId"`
}

// Valid reports whether all four fields are present.
func (m Measurement) Valid() bool {
	return m.Height > 0 && m.Weight > 0 && m.BMI > 0 && m.MachineID != ""
}

// PaymentStatusPaid marks a stored measurement whose report was paid for.
const PaymentStatusPaid = "paid"

// MeasurementRecord is a measurement persisted against a user.
type MeasurementRecord struct {
	ID            int64
	UserID        int64
	Measurement   Measurement
	PaymentStatus string
	CreatedAt     time.Time
}
