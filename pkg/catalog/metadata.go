package catalog

import (
	"strings"

	"github.com/aretw0/waypoint/pkg/domain"
)

// Metadata is the frontmatter of a resource document. The same mapstructure
// tags are used for YAML and JSON resource lists.
type Metadata struct {
	ID            string   `json:"id" mapstructure:"id"`
	Name          string   `json:"name" mapstructure:"name"`
	Description   string   `json:"description" mapstructure:"description"`
	Justification string   `json:"justification" mapstructure:"justification"`
	Addresses     []string `json:"addresses" mapstructure:"addresses"`
	Phones        []string `json:"phones" mapstructure:"phones"`
	Emails        []string `json:"emails" mapstructure:"emails"`
	Website       string   `json:"website" mapstructure:"website"`
	ReferralType  string   `json:"referral_type" mapstructure:"referral_type"`
}

// Resource converts metadata into a domain resource. body is used as the
// description when the frontmatter has none.
func (m Metadata) Resource(body string) domain.Resource {
	desc := strings.TrimSpace(m.Description)
	if desc == "" {
		desc = strings.TrimSpace(body)
	}
	return domain.Resource{
		Name:          strings.TrimSpace(m.Name),
		Description:   desc,
		Justification: strings.TrimSpace(m.Justification),
		Addresses:     m.Addresses,
		Phones:        m.Phones,
		Emails:        m.Emails,
		Website:       strings.TrimSpace(m.Website),
		ReferralType:  domain.ReferralType(strings.ToLower(strings.TrimSpace(m.ReferralType))),
	}
}
