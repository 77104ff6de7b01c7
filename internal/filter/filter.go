// Package filter narrows down and orders a contact listing the way the list view shows it.
package filter

import (
	"math"
	"slices"
	"strings"

	"gitlab.com/dirk.krummacker/contact-cards/internal/model"
)

// Criteria are the view settings of the list. The zero value matches every contact and sorts by
// last name ascending.
type Criteria struct {
	// Query must be contained in "first last", ignoring case.
	Query string
	// Gender must equal the contact's gender, ignoring case. Empty matches any gender.
	Gender string
	// MinAge and MaxAge bound the age, both inclusive. nil means unbounded.
	MinAge *int
	MaxAge *int
	// Descending reverses the sort order.
	Descending bool
}

// Matches reports whether the contact passes all criteria.
func (c Criteria) Matches(contact model.Contact) bool {
	return c.matchesName(contact) && c.matchesGender(contact) && c.matchesAge(contact)
}

func (c Criteria) matchesName(contact model.Contact) bool {
	if c.Query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(contact.FullName()), strings.ToLower(c.Query))
}

func (c Criteria) matchesGender(contact model.Contact) bool {
	return c.Gender == "" || strings.EqualFold(contact.Gender, c.Gender)
}

func (c Criteria) matchesAge(contact model.Contact) bool {
	minAge, maxAge := math.MinInt, math.MaxInt
	if c.MinAge != nil {
		minAge = *c.MinAge
	}
	if c.MaxAge != nil {
		maxAge = *c.MaxAge
	}
	return contact.Age >= minAge && contact.Age <= maxAge
}

// Apply returns the matching contacts sorted by last name. The input is not modified. Contacts
// with equal last names keep their relative order.
func Apply(contacts []model.Contact, c Criteria) []model.Contact {
	result := make([]model.Contact, 0, len(contacts))
	for _, contact := range contacts {
		if c.Matches(contact) {
			result = append(result, contact)
		}
	}
	slices.SortStableFunc(result, func(a, b model.Contact) int {
		if c.Descending {
			return strings.Compare(b.LastName, a.LastName)
		}
		return strings.Compare(a.LastName, b.LastName)
	})
	return result
}
