package conversation

import (
	"encoding/json"

	"github.com/dmitrijs2005/sehatbot/internal/server/models"
)

// Action names returned to the webhook caller.
const (
	ActionSendMessage        = "send_message"
	ActionNeedsUserSelection = "needs_user_selection"
	ActionAskFullName        = "ask_full_name"
	ActionAskGender          = "ask_gender"
	ActionAskAge             = "ask_age"
	ActionNeedsPayment       = "needs_payment"
	ActionPaymentSuccess     = "payment_success_and_display_result"
)

// Inbound is one message received from the gateway.
type Inbound struct {
	Address         string
	Text            string
	MessageType     string
	InteractiveData json.RawMessage
}

// Action is the engine's reply, serialised as-is by the webhook.
type Action struct {
	Action    string       `json:"action"`
	SessionID string       `json:"session_id,omitempty"`
	Users     []UserOption `json:"users,omitempty"`
	Message   string       `json:"message"`
}

// UserOption describes one selectable profile.
type UserOption struct {
	ID        int64  `json:"id"`
	DisplayID string `json:"display_id"`
	Name      string `json:"name"`
	Age       int    `json:"age"`
	Gender    string `json:"gender"`
	Type      string `json:"type"`
}

func sendMessage(msg string) *Action {
	return &Action{Action: ActionSendMessage, Message: msg}
}

func prompt(action, sessionID, msg string) *Action {
	return &Action{Action: action, SessionID: sessionID, Message: msg}
}

func userOptions(users []*models.User) []UserOption {
	out := make([]UserOption, 0, len(users))
	for _, u := range users {
		out = append(out, UserOption{
			ID:        u.ID,
			DisplayID: u.DisplayID,
			Name:      u.FullName,
			Age:       u.Age,
			Gender:    u.Gender,
			Type:      u.Role,
		})
	}
	return out
}
