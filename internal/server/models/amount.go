package models

import "fmt"

// Amount is money in minor units (paise).
type Amount int64

// String formats the amount with two decimals, e.g. 5000 -> "50.00".
func (a Amount) String() string {
	sign := ""
	v := int64(a)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}
