// Package models defines the intake payload, the status vocabularies and
// their transition table, and the delta notification wire types.
package models

// Authentication is the structured credential set supplied at intake.
// Scheme selects which secret pair applies.
type Authentication struct {
	Scheme       string `json:"scheme"`
	Username     string `json:"username,omitempty"`
	Password     string `json:"password,omitempty"`
	ClientID     string `json:"clientId,omitempty"`
	ClientSecret string `json:"clientSecret,omitempty"`
}

// SubmissionRequest is the validated intake payload.
type SubmissionRequest struct {
	Href              string          `json:"href"`
	SubmittedResource string          `json:"submittedResource"`
	Organization      string          `json:"organization"`
	Vendor            string          `json:"vendor"`
	Key               string          `json:"key"`
	Authentication    *Authentication `json:"authentication,omitempty"`
}
