// Package catalog filters vehicle listings for the browse pages.
package catalog

import (
	"strings"

	"automarket/models"
)

// Search returns the listings whose name or description contains query as
// a case-insensitive substring, keeping the original relative order. An
// empty query matches everything.
func Search(query string, listings []models.Listing) []models.Listing {
	if query == "" {
		return listings
	}
	term := strings.ToLower(query)

	matched := []models.Listing{}
	for _, l := range listings {
		if strings.Contains(strings.ToLower(l.Name), term) ||
			strings.Contains(strings.ToLower(l.Description), term) {
			matched = append(matched, l)
		}
	}
	return matched
}

// OwnedBy returns the listings belonging to one vendor, in input order.
func OwnedBy(vendorID string, listings []models.Listing) []models.Listing {
	owned := []models.Listing{}
	for _, l := range listings {
		if l.VendorID == vendorID {
			owned = append(owned, l)
		}
	}
	return owned
}

// Find locates a listing by id.
func Find(id string, listings []models.Listing) (models.Listing, bool) {
	for _, l := range listings {
		if l.ID == id {
			return l, true
		}
	}
	return models.Listing{}, false
}
