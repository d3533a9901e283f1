package types

// NoDateBound is the sentinel the source data uses for "no bound on this
// side" in a validity window.  It is not a parseable date.
const NoDateBound = "0000-00-00"

// ValidityWindow is the date/hour range during which a principal's
// credential is honored.  Dates are "YYYY-MM-DD" strings; NoDateBound on
// either side removes that bound.  HourFrom/HourTo of 0/0 means no hour
// restriction; otherwise hours are checked as [HourFrom, HourTo).
type ValidityWindow struct {
	DateFrom string `json:"date_from"`
	DateTo   string `json:"date_to"`
	HourFrom int    `json:"hour_from"`
	HourTo   int    `json:"hour_to"`
}

// Principal is the authorization subject of an access decision.  APIKey is
// the lowercase hex MD5 of ID — possession of the digest is treated as proof
// of identity.  That is deliberately weak and carried over from the source
// system; existing clients hold keys derived this way.
type Principal struct {
	ID     string         `json:"user_id"`
	Name   string         `json:"name"`
	APIKey string         `json:"api_key"`
	Window ValidityWindow `json:"window"`
	Flag   string         `json:"flag"` // "y" = active, anything else is disabled
}

// Active reports whether the principal's active flag authorizes use at all.
func (p Principal) Active() bool { return p.Flag == "y" }
