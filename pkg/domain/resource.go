package domain

// ReferralType classifies who operates a Resource.
type ReferralType string

const (
	ReferralExternal   ReferralType = "external"
	ReferralGoodwill   ReferralType = "goodwill"
	ReferralGovernment ReferralType = "government"
)

// Resource is a candidate support program the action plan should discuss.
// Only Name and Description matter to the pipeline; the remaining fields are
// display data forwarded to the backend untouched.
type Resource struct {
	Name          string       `json:"name" yaml:"name" mapstructure:"name"`
	Description   string       `json:"description" yaml:"description" mapstructure:"description"`
	Justification string       `json:"justification,omitempty" yaml:"justification,omitempty" mapstructure:"justification"`
	Addresses     []string     `json:"addresses,omitempty" yaml:"addresses,omitempty" mapstructure:"addresses"`
	Phones        []string     `json:"phones,omitempty" yaml:"phones,omitempty" mapstructure:"phones"`
	Emails        []string     `json:"emails,omitempty" yaml:"emails,omitempty" mapstructure:"emails"`
	Website       string       `json:"website,omitempty" yaml:"website,omitempty" mapstructure:"website"`
	ReferralType  ReferralType `json:"referral_type,omitempty" yaml:"referral_type,omitempty" mapstructure:"referral_type"`
}

// ActionPlanRequest is the body sent to the backend action-plan endpoint.
// Resource order is preserved on the wire.
type ActionPlanRequest struct {
	Resources []Resource `json:"resources"`
	UserEmail string     `json:"user_email,omitempty"`
}
