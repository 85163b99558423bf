package helpers

import "fmt"

// CitizenBody returns a valid citizen payload with a unique email
func CitizenBody(name, constituency string) map[string]any {
	return map[string]any{
		"name":         name,
		"email":        fmt.Sprintf("%s@example.org", name),
		"constituency": constituency,
	}
}

// CampaignBody returns a valid campaign payload
func CampaignBody(name string) map[string]any {
	return map[string]any{
		"name":        name,
		"description": "door to door",
		"start_date":  "2024-09-01",
		"end_date":    "2024-11-05",
	}
}

// TeamBody returns a valid campaign team payload
func TeamBody(campaignID int64, name string) map[string]any {
	return map[string]any{
		"campaign_id": campaignID,
		"name":        name,
		"team_size":   4,
	}
}

// VolunteerBody returns a valid volunteer payload
func VolunteerBody(first, last string) map[string]any {
	return map[string]any{
		"first_name": first,
		"last_name":  last,
		"email":      fmt.Sprintf("%s.%s@example.org", first, last),
	}
}
