package model

// Task status values of canvassing sessions
const (
	TaskPending    = "pending"
	TaskInProgress = "in_progress"
	TaskCompleted  = "completed"
	TaskCancelled  = "cancelled"
)

// Volunteer status values
const (
	VolunteerActive    = "active"
	VolunteerInactive  = "inactive"
	VolunteerSuspended = "suspended"
)

// Event status values of event staffers
const (
	EventScheduled  = "scheduled"
	EventInProgress = "in_progress"
	EventCompleted  = "completed"
	EventCancelled  = "cancelled"
)

// Donation status values
const (
	DonationPending   = "pending"
	DonationProcessed = "processed"
	DonationFailed    = "failed"
	DonationRefunded  = "refunded"
)

// Canvassing intentions recorded by canvassers
const (
	IntentionUndecided      = "undecided"
	IntentionFor            = "for"
	IntentionAgainst        = "against"
	IntentionLeaningFor     = "leaning_for"
	IntentionLeaningAgainst = "leaning_against"
)

var (
	// TaskStatuses lists every task status
	TaskStatuses = []string{TaskPending, TaskInProgress, TaskCompleted, TaskCancelled}
	// VolunteerStatuses lists every volunteer status
	VolunteerStatuses = []string{VolunteerActive, VolunteerInactive, VolunteerSuspended}
	// EventStatuses lists every event status
	EventStatuses = []string{EventScheduled, EventInProgress, EventCompleted, EventCancelled}
	// DonationStatuses lists every donation status
	DonationStatuses = []string{DonationPending, DonationProcessed, DonationFailed, DonationRefunded}
	// Intentions lists every canvassing intention
	Intentions = []string{
		IntentionUndecided, IntentionFor, IntentionAgainst, IntentionLeaningFor, IntentionLeaningAgainst,
	}
	// VoteIntentions lists the values a voter's last known intention can take
	VoteIntentions = []string{
		"Undecided", "Strongly Support", "Somewhat Support", "Neutral", "Somewhat Oppose", "Strongly Oppose",
	}
)
