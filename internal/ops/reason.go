package ops

import "github.com/thisis/placesguard/internal/reasoning"

// ReasonInput contains the tag sets for one suggestion.
type ReasonInput struct {
	PlaceTypes []string
	UserTags   []string
	FriendTags []string
	Nearby     bool
}

// ReasonOutput holds the reason, or nil when none is supported.
type ReasonOutput struct {
	Reason *reasoning.Reason `json:"reason"`
}

// Reason annotates a suggestion.
func Reason(input ReasonInput) *ReasonOutput {
	r, ok := reasoning.ReasonFor(input.PlaceTypes, input.UserTags, input.FriendTags, input.Nearby)
	if !ok {
		return &ReasonOutput{}
	}
	return &ReasonOutput{Reason: &r}
}
