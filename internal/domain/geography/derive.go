package geography

import "sort"

// Derive groups rows by country, drops the home country and returns one
// candidate per remaining country ordered by country code.
func Derive(homeCountryID string, rows []Row) []TransferCandidate {
	byCountry := map[string]*TransferCandidate{}
	seenMechanism := map[string]map[string]bool{}
	for _, r := range rows {
		if r.Country.ID == homeCountryID {
			continue
		}
		c, ok := byCountry[r.Country.ID]
		if !ok {
			c = &TransferCandidate{Country: r.Country, Locations: []string{}, Mechanisms: []Mechanism{}}
			byCountry[r.Country.ID] = c
			seenMechanism[r.Country.ID] = map[string]bool{}
		}
		c.Locations = append(c.Locations, r.LocationID)
		if r.Mechanism == nil {
			c.MissingMechanism = true
			continue
		}
		if !seenMechanism[r.Country.ID][r.Mechanism.ID] {
			seenMechanism[r.Country.ID][r.Mechanism.ID] = true
			c.Mechanisms = append(c.Mechanisms, *r.Mechanism)
		}
	}

	out := make([]TransferCandidate, 0, len(byCountry))
	for _, c := range byCountry {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Country.Code < out[j].Country.Code })
	return out
}

// RequiresMechanism reports whether a location in country needs a recorded
// safeguard, given the organization's home country id (empty when unset).
func RequiresMechanism(homeCountryID string, country Country) bool {
	if country.ID == homeCountryID {
		return false
	}
	return country.GDPRStatus == StatusThirdCountry
}
