package model

// CampaignSources is everything gathered for one campaign before drafting. Every slice is
// non-nil, possibly empty.
type CampaignSources struct {
	School    School              `json:"school"`
	Campaign  Campaign            `json:"campaign"`
	Events    []CalendarEvent     `json:"events"`
	Lookahead []CalendarEvent     `json:"lookahead"`
	Minutes   []MinutesRecord     `json:"minutes"`
	Content   []ContentItem       `json:"content"`
	Templates []RecurringTemplate `json:"templates"`
	Board     []BoardMember       `json:"board"`
}

// ContentIDs returns the ids of the collected content items in order.
func (s *CampaignSources) ContentIDs() []int {
	ids := make([]int, 0, len(s.Content))
	for _, c := range s.Content {
		ids = append(ids, c.ID)
	}
	return ids
}
