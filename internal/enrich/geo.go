// Phonographus - Music Listening History Enrichment and Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phonographus

package enrich

import (
	"strings"

	"github.com/tomtom215/phonographus/internal/models"
)

// continentInfo is one continent assignment.
type continentInfo struct {
	Name string
	Code string
}

var countryContinents = map[string]continentInfo{}

func register(name, code string, countries ...string) {
	info := continentInfo{Name: name, Code: code}
	for _, c := range countries {
		countryContinents[c] = info
	}
}

func init() {
	register("Africa", "AF",
		"DZ", "AO", "BJ", "BW", "BF", "BI", "CM", "CV", "CF", "TD", "KM", "CG",
		"CD", "CI", "DJ", "EG", "GQ", "ER", "SZ", "ET", "GA", "GM", "GH", "GN",
		"GW", "KE", "LS", "LR", "LY", "MG", "MW", "ML", "MR", "MU", "YT", "MA",
		"MZ", "NA", "NE", "NG", "RE", "RW", "SH", "ST", "SN", "SC", "SL", "SO",
		"ZA", "SS", "SD", "TZ", "TG", "TN", "UG", "EH", "ZM", "ZW")
	register("Antarctica", "AN", "AQ", "BV", "GS", "HM", "TF")
	register("Asia", "AS",
		"AF", "AM", "AZ", "BH", "BD", "BT", "BN", "KH", "CN", "CY", "GE", "HK",
		"IN", "ID", "IR", "IQ", "IL", "JP", "JO", "KZ", "KW", "KG", "LA", "LB",
		"MO", "MY", "MV", "MN", "MM", "NP", "KP", "OM", "PK", "PS", "PH", "QA",
		"SA", "SG", "KR", "LK", "SY", "TW", "TJ", "TH", "TL", "TR", "TM", "AE",
		"UZ", "VN", "YE", "IO")
	register("Europe", "EU",
		"AL", "AD", "AT", "BY", "BE", "BA", "BG", "HR", "CZ", "DK", "EE", "FO",
		"FI", "FR", "DE", "GI", "GR", "GG", "VA", "HU", "IS", "IE", "IM", "IT",
		"JE", "XK", "LV", "LI", "LT", "LU", "MT", "MD", "MC", "ME", "NL", "MK",
		"NO", "PL", "PT", "RO", "RU", "SM", "RS", "SK", "SI", "ES", "SJ", "SE",
		"CH", "UA", "GB", "AX")
	register("North America", "NA",
		"AI", "AG", "AW", "BS", "BB", "BZ", "BM", "CA", "KY", "CR", "CU", "CW",
		"DM", "DO", "SV", "GL", "GD", "GP", "GT", "HT", "HN", "JM", "MQ", "MX",
		"MS", "NI", "PA", "PR", "BL", "KN", "LC", "MF", "PM", "VC", "SX", "TT",
		"TC", "US", "VG", "VI", "BQ")
	register("Oceania", "OC",
		"AS", "AU", "CK", "FJ", "PF", "GU", "KI", "MH", "FM", "NR", "NC", "NZ",
		"NU", "NF", "MP", "PW", "PG", "PN", "WS", "SB", "TK", "TO", "TV", "UM",
		"VU", "WF")
	register("South America", "SA",
		"AR", "BO", "BR", "CL", "CO", "EC", "FK", "GF", "GY", "PY", "PE", "SR",
		"UY", "VE")
}

// islandCountries maps island area names whose MusicBrainz hierarchy stops
// short of a Country level onto their ISO country code. Kept deliberately
// small: entries are added as real hierarchies surface them.
var islandCountries = map[string]string{
	"Isle of Man":    "IM",
	"Jersey":         "JE",
	"Guernsey":       "GG",
	"Puerto Rico":    "PR",
	"Réunion":        "RE",
	"Guadeloupe":     "GP",
	"Martinique":     "MQ",
	"Faroe Islands":  "FO",
	"Greenland":      "GL",
	"Hong Kong":      "HK",
	"Taiwan":         "TW",
	"Åland Islands":  "AX",
	"Norfolk Island": "NF",
}

// classifyContinent resolves an ISO 3166-1 alpha-2 code to a continent.
func classifyContinent(countryCode string) (continentInfo, bool) {
	info, ok := countryContinents[strings.ToUpper(countryCode)]
	return info, ok
}

// bestPlaceName picks the most specific geocodable place name from a
// hierarchy record, falling back level by level to the area's own name.
func bestPlaceName(rec models.AreaRecord) string {
	for _, name := range []string{
		rec.CityName, rec.MunicipalityName, rec.DistrictName,
		rec.CountyName, rec.IslandName, rec.AreaName,
	} {
		if name != "" {
			return name
		}
	}
	return ""
}

// deriveGeography fills the computed columns of a hierarchy record: the
// country code (via island override when the walk found no Country level),
// continent, and the geocoding params key. Returns false when the record
// still lacks enough information and should be left for a later pass.
func deriveGeography(rec *models.AreaRecord) bool {
	if rec.CountryCode == "" && rec.IslandName != "" {
		if code, ok := islandCountries[rec.IslandName]; ok {
			rec.CountryCode = code
		}
	}
	if rec.CountryCode == "" {
		return false
	}

	if info, ok := classifyContinent(rec.CountryCode); ok {
		rec.Continent = info.Name
		rec.ContinentCode = info.Code
	} else {
		// Unmappable code still counts as processed, otherwise the row would
		// be re-derived on every run.
		rec.Continent = "Unknown"
	}

	place := bestPlaceName(*rec)
	if place == "" {
		return true
	}
	rec.CityName = firstNonEmpty(rec.CityName, place)
	rec.Params = place + "," + rec.CountryCode
	return true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
