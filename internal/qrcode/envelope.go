package qrcode

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gitlab.com/dirk.krummacker/contact-cards/internal/model"
	wire "gitlab.com/dirk.krummacker/contact-cards/pkg/model"
)

// ErrInvalidPayload is returned when a scanned payload is not a contact envelope.
var ErrInvalidPayload = errors.New("invalid contact payload")

// EncodeEnvelope serializes the contact into the JSON envelope carried by a QR code.
func EncodeEnvelope(c model.Contact) ([]byte, error) {
	envelope := wire.Envelope{
		AppIdentifier: wire.AppIdentifier,
		Version:       wire.EnvelopeVersion,
		UserData: &wire.UserData{
			UUID:        c.UUID,
			FirstName:   c.FirstName,
			LastName:    c.LastName,
			BirthDate:   c.BirthDate,
			Phone:       c.Phone,
			PhotoURL:    c.PhotoURL,
			Email:       c.Email,
			Gender:      c.Gender,
			Age:         c.Age,
			Nationality: c.Nationality,
			Street:      c.Street,
			City:        c.City,
			State:       c.State,
			Country:     c.Country,
		},
	}
	return json.Marshal(envelope)
}

// ParseContact turns a scanned payload back into a contact. uuid, firstName and lastName are
// required and must be non-blank strings. Optional strings that are missing, null, blank or
// "null" become empty; an age that is missing or not an integer becomes 0.
func ParseContact(payload string) (model.Contact, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &root); err != nil {
		return model.Contact{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	raw, ok := root["userData"]
	if !ok {
		return model.Contact{}, fmt.Errorf("%w: userData missing", ErrInvalidPayload)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return model.Contact{}, fmt.Errorf("%w: userData is not an object", ErrInvalidPayload)
	}

	var c model.Contact
	var err error
	if c.UUID, err = requiredString(fields, "uuid"); err != nil {
		return model.Contact{}, err
	}
	if c.FirstName, err = requiredString(fields, "firstName"); err != nil {
		return model.Contact{}, err
	}
	if c.LastName, err = requiredString(fields, "lastName"); err != nil {
		return model.Contact{}, err
	}
	c.BirthDate = optionalString(fields, "birthDate")
	c.Phone = optionalString(fields, "phone")
	c.PhotoURL = optionalString(fields, "photoUrl")
	c.Email = optionalString(fields, "email")
	c.Gender = optionalString(fields, "gender")
	c.Age = optionalInt(fields, "age")
	c.Nationality = optionalString(fields, "nationality")
	c.Street = optionalString(fields, "street")
	c.City = optionalString(fields, "city")
	c.State = optionalString(fields, "state")
	c.Country = optionalString(fields, "country")
	return c, nil
}

func requiredString(fields map[string]json.RawMessage, key string) (string, error) {
	raw, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("%w: %s missing", ErrInvalidPayload, key)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%w: %s is not a string", ErrInvalidPayload, key)
	}
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%w: %s is blank", ErrInvalidPayload, key)
	}
	return s, nil
}

func optionalString(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	if strings.TrimSpace(s) == "" || strings.EqualFold(s, "null") {
		return ""
	}
	return s
}

func optionalInt(fields map[string]json.RawMessage, key string) int {
	raw, ok := fields[key]
	if !ok {
		return 0
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0
	}
	if i, err := strconv.Atoi(n.String()); err == nil {
		return i
	}
	return 0
}
