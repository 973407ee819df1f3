package user

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
)

// schoolEmail accepts firstname.lastname addresses on the school domain and
// its subdomains.
var schoolEmail = regexp.MustCompile(`^[a-zA-Z]+\.+[a-zA-Z]+@(?:(?:[a-zA-Z0-9-]+\.)?[a-zA-Z]+\.)?igs-buchholz\.de$`)

type userRequest struct {
	Email            string  `json:"email"`
	PushMessageToken *string `json:"pushMessageToken"`
}

func (r *userRequest) normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

func (r userRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Match(schoolEmail).Error("must be a school email address")),
	)
}

// emailCode accepts a JSON number or a string of digits.
type emailCode int

func (c *emailCode) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		b = []byte(strings.TrimSpace(s))
	}
	n, err := strconv.Atoi(string(b))
	if err != nil {
		return fmt.Errorf("emailCode must be a number: %w", err)
	}
	*c = emailCode(n)
	return nil
}

type loginRequest struct {
	EmailCode *emailCode `json:"emailCode"`
}

func (r loginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.EmailCode, validation.Required, validation.Min(100000), validation.Max(999999)),
	)
}
