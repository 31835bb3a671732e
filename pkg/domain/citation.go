package domain

// Citation is a reference lifted out of plan content.
type Citation struct {
	// Marker is the marker text without brackets, e.g. "1".
	Marker string `json:"marker"`
	// Label is the definition text found for the marker, if any.
	Label string `json:"label,omitempty"`
	// URL is the first http(s) URL found in Label.
	URL string `json:"url,omitempty"`
	// Position is the byte offset of the marker's first occurrence in the source text.
	Position int `json:"position"`
}
