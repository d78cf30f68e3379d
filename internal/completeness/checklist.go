// Package completeness evaluates the weighted listing-attribute checklist
// that produces the completeness sub-score.
package completeness

// Item is one entry in the completeness checklist.
type Item struct {
	// Name identifies the listing attribute (e.g. "gallery").
	Name string
	// Points awarded when the attribute is present.
	Points int
	// OnlineApplicable marks whether the item applies to online-only
	// listings. Items with false are physical-presence attributes.
	OnlineApplicable bool
}

// Checklist is an ordered set of scored attributes. It is injected as a
// policy so alternate catalogs can supply different checklists.
type Checklist []Item

// Attributes maps checklist item names to their presence on a listing.
type Attributes map[string]bool

// DefaultChecklist is the directory platform's standard checklist.
// Address, opening hours, and accommodation are physical-presence items:
// online listings cannot satisfy them, so they are exempted (see Evaluate).
func DefaultChecklist() Checklist {
	return Checklist{
		{Name: "contact_details", Points: 10, OnlineApplicable: true},
		{Name: "description", Points: 10, OnlineApplicable: true},
		{Name: "gallery", Points: 15, OnlineApplicable: true},
		{Name: "courses", Points: 20, OnlineApplicable: true},
		{Name: "teachers", Points: 15, OnlineApplicable: true},
		{Name: "address", Points: 10, OnlineApplicable: false},
		{Name: "opening_hours", Points: 10, OnlineApplicable: false},
		{Name: "accommodation", Points: 10, OnlineApplicable: false},
	}
}

// Evaluate tallies the completeness score for a listing.
//
// Items the listing satisfies contribute their points. For online listings,
// items flagged OnlineApplicable=false are skipped during tallying and then
// force-awarded in full, so an online listing's theoretical maximum is
// unaffected by having no physical address, hours, or accommodation.
func (c Checklist) Evaluate(attrs Attributes, isOnline bool) int {
	var score int
	for _, item := range c {
		if isOnline && !item.OnlineApplicable {
			score += item.Points
			continue
		}
		if attrs[item.Name] {
			score += item.Points
		}
	}
	return score
}

// MaxScore returns the highest score the checklist can award.
func (c Checklist) MaxScore() int {
	var max int
	for _, item := range c {
		max += item.Points
	}
	return max
}

// Points returns the point value of the named item, or 0 if absent.
// Content-mutation handlers use this to size their incremental deltas.
func (c Checklist) Points(name string) int {
	for _, item := range c {
		if item.Name == name {
			return item.Points
		}
	}
	return 0
}
