package model

import (
	"strings"
	"time"
)

// Status is the canonical market status of a listing.
type Status string

const (
	StatusActive        Status = "active"
	StatusPending       Status = "pending"
	StatusSold          Status = "sold"
	StatusOffMarket     Status = "off_market"
	StatusComingSoon    Status = "coming_soon"
	StatusUnderContract Status = "under_contract"
	StatusUnknown       Status = ""
)

var statusAliases = map[string]Status{
	"active":              StatusActive,
	"forsale":             StatusActive,
	"pending":             StatusPending,
	"sold":                StatusSold,
	"closed":              StatusSold,
	"offmarket":           StatusOffMarket,
	"withdrawn":           StatusOffMarket,
	"expired":             StatusOffMarket,
	"comingsoon":          StatusComingSoon,
	"undercontract":       StatusUnderContract,
	"activeundercontract": StatusUnderContract,
	"contingent":          StatusUnderContract,
}

// ParseStatus maps provider spellings ("Closed", "Active Under Contract",
// "coming_soon", ...) onto the canonical statuses. Unrecognised input yields
// StatusUnknown.
func ParseStatus(raw string) Status {
	k := strings.ToLower(raw)
	k = strings.NewReplacer(" ", "", "_", "", "-", "").Replace(k)
	return statusAliases[k]
}

// DefectFlags records known condition problems reported for a listing.
type DefectFlags struct {
	Mechanical bool `json:"mechanical,omitempty"`
	Electrical bool `json:"electrical,omitempty"`
	Structural bool `json:"structural,omitempty"`
}

// Names returns the set flags in a fixed order.
func (d DefectFlags) Names() []string {
	var out []string
	if d.Mechanical {
		out = append(out, "mechanical")
	}
	if d.Electrical {
		out = append(out, "electrical")
	}
	if d.Structural {
		out = append(out, "structural")
	}
	return out
}

// Any reports whether at least one defect is flagged.
func (d DefectFlags) Any() bool { return d.Mechanical || d.Electrical || d.Structural }

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Listing is an immutable snapshot of a property at ingestion time. Optional
// attributes are pointers; nil means the provider did not report it.
type Listing struct {
	ID         string `json:"id"`
	Provider   string `json:"provider,omitempty"`
	ProviderID string `json:"providerId,omitempty"`
	Address    string `json:"address,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Status     Status `json:"status"`

	ListPriceCents int64      `json:"listPriceCents,omitempty"`
	SalePriceCents int64      `json:"salePriceCents,omitempty"`
	SaleDate       *time.Time `json:"saleDate,omitempty"`
	ListedAt       *time.Time `json:"listedAt,omitempty"`
	UpdatedAt      time.Time  `json:"updatedAt"`

	Beds         *float64 `json:"beds,omitempty"`
	Baths        *float64 `json:"baths,omitempty"`
	Sqft         *int     `json:"sqft,omitempty"`
	LotSqft      *int     `json:"lotSqft,omitempty"`
	YearBuilt    *int     `json:"yearBuilt,omitempty"`
	Garage       bool     `json:"garage,omitempty"`
	Pool         bool     `json:"pool,omitempty"`
	HOAFeeCents  int64    `json:"hoaFeeCents,omitempty"`
	DaysOnMarket *int     `json:"daysOnMarket,omitempty"`
	WalkScore    *int     `json:"walkScore,omitempty"`
	Tags         []string `json:"tags,omitempty"`

	Defects  DefectFlags `json:"defects"`
	Location *Point      `json:"location,omitempty"`
}

// PriceCents returns the sale price when present, otherwise the list price.
func (l Listing) PriceCents() int64 {
	if l.SalePriceCents > 0 {
		return l.SalePriceCents
	}
	return l.ListPriceCents
}

// HasTag reports whether the listing carries the feature tag (case-insensitive).
func (l Listing) HasTag(tag string) bool {
	for _, t := range l.Tags {
		if strings.EqualFold(strings.TrimSpace(t), tag) {
			return true
		}
	}
	return false
}

// PropertyKeys identifies the physical property behind a record so that
// duplicate records from several providers collapse to one. Two records are
// the same property when they share any key: the normalised street address
// or the provider reference. A record with neither is keyed by its id.
func (l Listing) PropertyKeys() []string {
	var keys []string
	if a := normaliseAddress(l.Address); a != "" {
		if l.PostalCode != "" {
			a += "|" + strings.ToLower(strings.TrimSpace(l.PostalCode))
		}
		keys = append(keys, "addr:"+a)
	}
	if l.ProviderID != "" {
		keys = append(keys, "ref:"+strings.ToLower(l.Provider)+"|"+strings.ToLower(strings.TrimSpace(l.ProviderID)))
	}
	if len(keys) == 0 {
		keys = append(keys, "id:"+l.ID)
	}
	return keys
}

// SameProperty reports whether l and o share any property key.
func (l Listing) SameProperty(o Listing) bool {
	for _, a := range l.PropertyKeys() {
		for _, b := range o.PropertyKeys() {
			if a == b {
				return true
			}
		}
	}
	return false
}

// Recency returns the most meaningful "as of" time for ordering records:
// sale date, then listing date, then last update.
func (l Listing) Recency() time.Time {
	if l.SaleDate != nil {
		return *l.SaleDate
	}
	if l.ListedAt != nil {
		return *l.ListedAt
	}
	return l.UpdatedAt
}

func normaliseAddress(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	return strings.Join(fields, " ")
}

// Action is the kind of client signal an interaction records.
type Action string

const (
	ActionLike    Action = "like"
	ActionDislike Action = "dislike"
	ActionSkip    Action = "skip"
	ActionDwell   Action = "dwell"
)

// Interaction is an append-only client signal about a listing.
type Interaction struct {
	ClientID     string    `json:"clientId"`
	ListingID    string    `json:"listingId"`
	Action       Action    `json:"action"`
	DwellSeconds float64   `json:"dwellSeconds,omitempty"`
	At           time.Time `json:"at"`
}
