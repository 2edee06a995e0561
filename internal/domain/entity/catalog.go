package entity

// Domain scopes a status catalog
type Domain string

const (
	DomainResource    Domain = "resource"
	DomainLoan        Domain = "loan"
	DomainMaintenance Domain = "maintenance"
)

// Domains returns every catalog domain
func Domains() []Domain {
	return []Domain{DomainResource, DomainLoan, DomainMaintenance}
}

// IsValid reports whether d is a known domain
func (d Domain) IsValid() bool {
	switch d {
	case DomainResource, DomainLoan, DomainMaintenance:
		return true
	default:
		return false
	}
}

// StatusEntry is one row of a status catalog
type StatusEntry struct {
	Domain      Domain `json:"domain" db:"-"`
	ID          int64  `json:"id" db:"status_id"`
	Name        string `json:"name" db:"status_name"`
	Description string `json:"description" db:"description"`
}
