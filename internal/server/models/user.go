package models

import "time"

// User is a profile registered through the bot. Several profiles may share
// one mobile number; the first one registered has the primary role.
type User struct {
	ID        int64
	DisplayID string
	Address   string
	FullName  string
	Age       int
	Gender    string
	Role      string
	WalletID  string
	Balance   Amount
	CreatedAt time.Time
}
