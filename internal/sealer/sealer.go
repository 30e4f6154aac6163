// Package sealer builds test submissions: a measurement encrypted with the
// server key and wrapped as sehat_bmi<...>, the way a kiosk would send it.
package sealer

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/dmitrijs2005/sehatbot/internal/cryptox"
	"github.com/dmitrijs2005/sehatbot/internal/server/models"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// ErrMissingField is returned when a measurement field was not given.
var ErrMissingField = errors.New("height, weight and machine id are required")

// Seal encrypts m with codec and returns the submission text.
func Seal(codec *cryptox.Codec, m models.Measurement) (string, error) {
	blob, err := codec.EncryptEntry(m)
	if err != nil {
		return "", err
	}
	return "sehat_bmi<" + blob + ">", nil
}

// BMI computes weight (kg) over height (cm) squared, rounded to two decimals.
func BMI(heightCm, weightKg float64) float64 {
	h := heightCm / 100
	return math.Round(weightKg/(h*h)*100) / 100
}

// Run parses args, asks for the key on the terminal when neither -k nor
// ENCRYPTION_KEY is set, and prints the sealed submission to w.
func Run(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("sealer", flag.ContinueOnError)
	fs.SetOutput(w)

	key := fs.String("k", os.Getenv("ENCRYPTION_KEY"), "encryption key (64 hex chars or passphrase)")
	salt := fs.String("s", os.Getenv("ENCRYPTION_SALT"), "salt for passphrase keys")
	height := fs.Float64("height", 0, "height in cm")
	weight := fs.Float64("weight", 0, "weight in kg")
	bmi := fs.Float64("bmi", 0, "BMI; computed from height and weight when omitted")
	machine := fs.String("machine", "", "kiosk machine id")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *height <= 0 || *weight <= 0 || strings.TrimSpace(*machine) == "" {
		return ErrMissingField
	}
	if *bmi <= 0 {
		*bmi = BMI(*height, *weight)
	}

	secret := *key
	if secret == "" {
		if _, err := fmt.Fprint(w, "Enter encryption key: "); err != nil {
			return err
		}
		pw, err := readPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(w)
		if err != nil {
			return err
		}
		secret = string(pw)
	}

	k, err := cryptox.ParseKey(secret, *salt)
	if err != nil {
		return err
	}
	codec, err := cryptox.NewCodec(k)
	if err != nil {
		return err
	}

	text, err := Seal(codec, models.Measurement{Height: *height, Weight: *weight, BMI: *bmi, MachineID: *machine})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, text)
	return err
}
