package similarity

import (
	"regexp"
	"strings"
)

// RegionScheme identifies which country's postal abbreviation table applies
// to an address.
type RegionScheme int

const (
	SchemeIndia RegionScheme = iota
	SchemeCanada
)

// indianStates maps two-letter state codes to full state names.
var indianStates = map[string]string{
	"AN": "Andaman and Nicobar Islands",
	"AP": "Andhra Pradesh",
	"AR": "Arunachal Pradesh",
	"AS": "Assam",
	"BR": "Bihar",
	"CG": "Chhattisgarh",
	"CH": "Chandigarh",
	"DL": "Delhi",
	"GA": "Goa",
	"GJ": "Gujarat",
	"HP": "Himachal Pradesh",
	"HR": "Haryana",
	"JH": "Jharkhand",
	"JK": "Jammu and Kashmir",
	"KA": "Karnataka",
	"KL": "Kerala",
	"LD": "Lakshadweep",
	"MH": "Maharashtra",
	"ML": "Meghalaya",
	"MN": "Manipur",
	"MP": "Madhya Pradesh",
	"MZ": "Mizoram",
	"NL": "Nagaland",
	"OD": "Odisha",
	"PB": "Punjab",
	"PY": "Puducherry",
	"RJ": "Rajasthan",
	"SK": "Sikkim",
	"TN": "Tamil Nadu",
	"TR": "Tripura",
	"TS": "Telangana",
	"UK": "Uttarakhand",
	"UP": "Uttar Pradesh",
	"WB": "West Bengal",
}

// canadianProvinces maps two-letter province codes to full province names.
var canadianProvinces = map[string]string{
	"AB": "Alberta",
	"BC": "British Columbia",
	"MB": "Manitoba",
	"NB": "New Brunswick",
	"NL": "Newfoundland and Labrador",
	"NS": "Nova Scotia",
	"NT": "Northwest Territories",
	"NU": "Nunavut",
	"ON": "Ontario",
	"PE": "Prince Edward Island",
	"QC": "Quebec",
	"SK": "Saskatchewan",
	"YT": "Yukon",
}

// ambiguousCodes appear in both tables and need the scheme decided from the
// surrounding address text.
var ambiguousCodes = map[string]bool{
	"NL": true,
	"SK": true,
}

// indiaHints are lowercase substrings that mark an address as Indian. The
// list is a best-effort guess covering the national keyword, major cities and
// common address vocabulary; it is not a verified geocoding step.
var indiaHints = []string{
	"india",
	"chennai",
	"mumbai",
	"delhi",
	"kolkata",
	"bengaluru",
	"bangalore",
	"hyderabad",
	"ahmedabad",
	"pune",
	"madurai",
	"coimbatore",
	"tirunelveli",
	"kochi",
	"lucknow",
	"jaipur",
	"nagar",
	"kovil",
	"pettai",
}

// pinCodePattern matches a standalone Indian six-digit PIN code.
var pinCodePattern = regexp.MustCompile(`\b[1-9][0-9]{5}\b`)

// regionCodePattern matches a standalone uppercase two-letter code from
// either abbreviation table. Word-boundary anchoring keeps expansion from
// corrupting substrings of longer words.
var regionCodePattern = buildRegionCodePattern()

func buildRegionCodePattern() *regexp.Regexp {
	codes := make(map[string]bool, len(indianStates)+len(canadianProvinces))
	for code := range indianStates {
		codes[code] = true
	}
	for code := range canadianProvinces {
		codes[code] = true
	}
	alternatives := make([]string, 0, len(codes))
	for code := range codes {
		alternatives = append(alternatives, code)
	}
	return regexp.MustCompile(`\b(` + strings.Join(alternatives, "|") + `)\b`)
}

// ClassifyRegion guesses which abbreviation scheme an address belongs to by
// scanning the whole string for Indian markers: the country name, a known
// city, or a PIN-code-like six-digit token. Anything without a hint is
// treated as Canadian.
func ClassifyRegion(address string) RegionScheme {
	lowered := strings.ToLower(address)
	for _, hint := range indiaHints {
		if strings.Contains(lowered, hint) {
			return SchemeIndia
		}
	}
	if pinCodePattern.MatchString(address) {
		return SchemeIndia
	}
	return SchemeCanada
}

// expandRegionCodes replaces whole-word two-letter region codes with their
// full names. Codes present in both schemes follow the classified scheme;
// all others expand according to the table they belong to.
func expandRegionCodes(address string) string {
	scheme := ClassifyRegion(address)
	return regionCodePattern.ReplaceAllStringFunc(address, func(code string) string {
		if ambiguousCodes[code] {
			if scheme == SchemeIndia {
				return indianStates[code]
			}
			return canadianProvinces[code]
		}
		if full, ok := indianStates[code]; ok {
			return full
		}
		if full, ok := canadianProvinces[code]; ok {
			return full
		}
		return code
	})
}
