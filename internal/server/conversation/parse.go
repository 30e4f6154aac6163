package conversation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/sehatbot/internal/common"
	"github.com/dmitrijs2005/sehatbot/internal/server/models"
)

const (
	confirmationPrefix = "payment_confirmed_"
	minNameLength      = 3
	minAge, maxAge     = 1, 120
)

var (
	submissionPattern = regexp.MustCompile(`^sehat_bmi<(.+)>$`)
	selectionPattern  = regexp.MustCompile(`(?i)^select (UID-\d{7})$`)
)

// PayloadDecoder decrypts a sealed blob into v.
type PayloadDecoder interface {
	DecryptEntry(blob string, v any) error
}

// DecodeMeasurement opens a sealed measurement. Undecryptable blobs and
// payloads missing any field yield common.ErrInvalidPayload.
func DecodeMeasurement(dec PayloadDecoder, blob string) (models.Measurement, error) {
	var m models.Measurement
	if err := dec.DecryptEntry(blob, &m); err != nil {
		return models.Measurement{}, fmt.Errorf("%w: %w", common.ErrInvalidPayload, err)
	}
	if !m.Valid() {
		return models.Measurement{}, common.ErrInvalidPayload
	}
	return m, nil
}

// submission returns the sealed blob of a measurement submission.
func submission(text string) (string, bool) {
	m := submissionPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// selection returns the upper-cased display id of a "select UID-..." message.
func selection(text string) (string, bool) {
	m := selectionPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.ToUpper(m[1]), true
}

// confirmation returns the session id of a payment confirmation. The prefix
// is matched case-insensitively.
func confirmation(text string) (string, bool) {
	if len(text) < len(confirmationPrefix) || !strings.EqualFold(text[:len(confirmationPrefix)], confirmationPrefix) {
		return "", false
	}
	return text[len(confirmationPrefix):], true
}

func parseName(text string) (string, bool) {
	name := strings.TrimSpace(text)
	return name, utf8.RuneCountInString(name) >= minNameLength
}

// parseGender accepts male, female or other in any case and returns the
// canonical spelling.
func parseGender(text string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "male":
		return "Male", true
	case "female":
		return "Female", true
	case "other":
		return "Other", true
	}
	return "", false
}

func parseAge(text string) (int, bool) {
	age, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || age < minAge || age > maxAge {
		return 0, false
	}
	return age, true
}

func summary(r *models.Receipt) string {
	u, m := r.User, r.Report.Measurement
	return fmt.Sprintf(msgSummary,
		u.FullName, u.DisplayID, u.Age, u.Gender,
		m.BMI, m.Height, m.Weight, m.MachineID,
		u.Balance, r.Report.ID)
}
