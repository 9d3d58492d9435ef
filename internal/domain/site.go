package domain

// Site is the single track a job is filed under
type Site string

const (
	SiteProduct     Site = "product"
	SiteConsulting  Site = "consulting"
	SiteEngineering Site = "engineering"
	SiteOther       Site = "other"
)

// CategoryFlags are the per-track signals produced by extraction. More than
// one may be set for the same posting.
type CategoryFlags struct {
	Product     bool
	Consulting  bool
	Engineering bool
	Other       bool
}

// ResolveSite collapses category flags to one Site using the precedence
// product > consulting > engineering > other. No flags resolves to other.
func ResolveSite(f CategoryFlags) Site {
	switch {
	case f.Product:
		return SiteProduct
	case f.Consulting:
		return SiteConsulting
	case f.Engineering:
		return SiteEngineering
	default:
		return SiteOther
	}
}

// ParseSite returns the Site named by s, or false if s is not a known site.
func ParseSite(s string) (Site, bool) {
	switch Site(s) {
	case SiteProduct, SiteConsulting, SiteEngineering, SiteOther:
		return Site(s), true
	}
	return "", false
}
