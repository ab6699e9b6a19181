// Package reasoning derives the short "why this was suggested" line for a
// place. It only ever cites tags that literally appear in both inputs.
package reasoning

import "fmt"

// Basis names the signal a reason rests on.
type Basis string

const (
	BasisTags    Basis = "tags"
	BasisFriends Basis = "friends"
	BasisNearby  Basis = "nearby"
)

// minFriendTags is the smallest friend tag set that supports a popularity claim.
const minFriendTags = 3

// Reason is a displayable suggestion reason.
type Reason struct {
	Basis Basis    `json:"basis"`
	Text  string   `json:"text"`
	Tags  []string `json:"tags,omitempty"`
}

// ReasonFor picks the strongest truthful reason. The second return value
// is false when nothing supports a reason, and the caller must then show none.
//
// Priority: two or more shared user tags (the first two in placeTypes
// order), one shared user tag, a friend tag overlap backed by at least
// three distinct friend tags, proximity.
func ReasonFor(placeTypes, userTags, friendTags []string, isNearby bool) (Reason, bool) {
	shared := intersect(placeTypes, userTags)
	switch {
	case len(shared) >= 2:
		return Reason{
			Basis: BasisTags,
			Text:  fmt.Sprintf("Because you like %s and %s", shared[0], shared[1]),
			Tags:  shared[:2:2],
		}, true
	case len(shared) == 1:
		return Reason{
			Basis: BasisTags,
			Text:  fmt.Sprintf("Because you like %s", shared[0]),
			Tags:  shared[:1:1],
		}, true
	}

	if len(distinct(friendTags)) >= minFriendTags && len(intersect(placeTypes, friendTags)) > 0 {
		return Reason{Basis: BasisFriends, Text: "Popular with friends"}, true
	}

	if isNearby {
		return Reason{Basis: BasisNearby, Text: "Nearby"}, true
	}
	return Reason{}, false
}

// intersect returns the distinct elements of a that are in b, in a's order.
func intersect(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	inB := distinct(b)
	seen := make(map[string]struct{}, len(a))
	var out []string
	for _, s := range a {
		if _, ok := inB[s]; !ok {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func distinct(ss []string) map[string]struct{} {
	m := make(map[string]struct{}, len(ss))
	for _, s := range ss {
		m[s] = struct{}{}
	}
	return m
}
