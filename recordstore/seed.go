package recordstore

import "log"

// SeedDemo populates an empty embedded store with a demo vendor and a
// couple of listings so a fresh checkout has something to browse.
func (s *Store) SeedDemo() error {
	accounts, err := s.List("accounts", nil)
	if err != nil {
		return err
	}
	if len(accounts) > 0 {
		return nil
	}

	vendor, err := s.Insert("accounts", map[string]any{
		"name":     "AutoMarket Motors",
		"email":    "vendor@automarket.local",
		"password": "vendor123",
		"role":     "vendor",
	})
	if err != nil {
		return err
	}

	listings := []map[string]any{
		{
			"ownerVendorId": vendor["id"],
			"name":          "Honda Civic 2020",
			"description":   "Single owner, full service history.",
			"mileage":       45000,
			"transmission":  "Automatic",
			"fuelType":      "Flex",
			"price":         89900.0,
			"imageUrl":      "/static/img/placeholder.svg",
		},
		{
			"ownerVendorId": vendor["id"],
			"name":          "Toyota Corolla 2019",
			"description":   "Great condition, new tires.",
			"mileage":       62000,
			"transmission":  "Automatic",
			"fuelType":      "Gasoline",
			"price":         79500.0,
			"imageUrl":      "/static/img/placeholder.svg",
		},
	}
	for _, l := range listings {
		if _, err := s.Insert("listings", l); err != nil {
			return err
		}
	}

	log.Println("Demo data created: vendor@automarket.local / vendor123")
	return nil
}
