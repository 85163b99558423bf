package model

import (
	"fmt"

	"github.com/civicstack/campaign-server/internal/entity"
)

// Entity names of the campaign catalog
const (
	EntityAddress             = "Address"
	EntityCitizen             = "Citizen"
	EntityCampaign            = "Campaign"
	EntityCampaignTeam        = "CampaignTeam"
	EntityEvent               = "Event"
	EntityCampaignEvent       = "CampaignEvent"
	EntityVolunteer           = "Volunteer"
	EntityCanvassingSession   = "CanvassingSession"
	EntityVolunteerAssignment = "VolunteerAssignment"
	EntityVolunteerCampaign   = "VolunteerCampaign"
	EntityDonation            = "Donation"
	EntityOutreach            = "Outreach"
	EntityContact             = "Contact"
	EntityVoter               = "Voter"
	EntityVotingIntention     = "VotingIntention"
	EntityCanvasser           = "Canvasser"
	EntityEventStaffer        = "EventStaffer"
)

// Definitions returns the campaign entity definitions in build order
func Definitions() []entity.Definition {
	return []entity.Definition{
		{Name: EntityAddress, Build: buildAddress},
		{Name: EntityCitizen, DependsOn: []string{EntityAddress}, Build: buildCitizen},
		{Name: EntityCampaign, Build: buildCampaign},
		{Name: EntityCampaignTeam, DependsOn: []string{EntityCampaign}, Build: buildCampaignTeam},
		{Name: EntityEvent, DependsOn: []string{EntityCampaign}, Build: buildEvent},
		{Name: EntityCampaignEvent, DependsOn: []string{EntityCampaign}, Build: buildCampaignEvent},
		{Name: EntityVolunteer, Build: buildVolunteer},
		{
			Name:      EntityCanvassingSession,
			DependsOn: []string{EntityCampaign, EntityCampaignTeam},
			Build:     buildCanvassingSession,
		},
		{
			Name:      EntityVolunteerAssignment,
			DependsOn: []string{EntityVolunteer, EntityCampaignEvent, EntityCanvassingSession, EntityEvent},
			Build:     buildVolunteerAssignment,
		},
		{
			Name:      EntityVolunteerCampaign,
			DependsOn: []string{EntityVolunteer, EntityCampaign},
			Build:     buildVolunteerCampaign,
		},
		{Name: EntityDonation, DependsOn: []string{EntityCitizen, EntityCampaign}, Build: buildDonation},
		{Name: EntityOutreach, DependsOn: []string{EntityCampaignTeam, EntityCitizen}, Build: buildOutreach},
		{Name: EntityContact, DependsOn: []string{EntityCitizen}, Build: buildContact},
		{Name: EntityVoter, DependsOn: []string{EntityCitizen}, Build: buildVoter},
		{Name: EntityVotingIntention, DependsOn: []string{EntityVoter}, Build: buildVotingIntention},
		{Name: EntityCanvasser, DependsOn: []string{EntityCitizen}, Build: buildCanvasser},
		{Name: EntityEventStaffer, DependsOn: []string{EntityEvent, EntityVolunteer}, Build: buildEventStaffer},
	}
}

// NewCatalog returns a catalog holding the campaign definitions
func NewCatalog() (*entity.Catalog, error) {
	return entity.NewCatalog(Definitions()...)
}

// Resources maps each API route segment to the entity served under it
func Resources() map[string]string {
	return map[string]string{
		"addresses":             EntityAddress,
		"citizens":              EntityCitizen,
		"campaigns":             EntityCampaign,
		"campaign-teams":        EntityCampaignTeam,
		"events":                EntityEvent,
		"campaign-events":       EntityCampaignEvent,
		"volunteers":            EntityVolunteer,
		"canvassing-sessions":   EntityCanvassingSession,
		"volunteer-assignments": EntityVolunteerAssignment,
		"volunteer-campaigns":   EntityVolunteerCampaign,
		"donations":             EntityDonation,
		"outreach":              EntityOutreach,
		"contacts":              EntityContact,
		"voters":                EntityVoter,
		"voting-intentions":     EntityVotingIntention,
		"canvassers":            EntityCanvasser,
		"event-staffers":        EntityEventStaffer,
	}
}

// newTable prepends the primary key and adds a relationship for every
// foreign key column.
func newTable(t Table) *Table {
	cols := make([]Column, 0, len(t.Columns)+1)
	cols = append(cols, Column{Name: PrimaryKey, Kind: Integer, PrimaryKey: true})
	t.Columns = append(cols, t.Columns...)

	var rels []entity.Relationship
	for _, c := range t.Columns {
		if c.References != nil {
			rels = append(rels, entity.Relationship{
				Name:   relationName(c.Name),
				Target: c.References.Entity,
			})
		}
	}
	t.Relations = append(rels, t.Relations...)
	return &t
}

func relationName(column string) string {
	if n := len(column); n > 3 && column[n-3:] == "_id" {
		return column[:n-3]
	}
	return column
}

// references builds a foreign key column pointing at an already built table
func references(built entity.Built, from, column, target string, required bool, onDelete string) (Column, error) {
	e, ok := built.Lookup(target)
	if !ok {
		return Column{}, &entity.MissingDependencyError{Entity: from, MissingDependency: target}
	}
	t, ok := e.(*Table)
	if !ok {
		return Column{}, fmt.Errorf("entity %s is %T, not a table", target, e)
	}
	return Column{
		Name:     column,
		Kind:     Integer,
		Required: required,
		References: &ForeignKey{
			Entity:   target,
			Table:    t.Name,
			Column:   PrimaryKey,
			OnDelete: onDelete,
		},
	}, nil
}

func createdAt() Column {
	return Column{Name: "created_at", Kind: DateTime, Auto: AutoCreate}
}

func updatedAt() Column {
	return Column{Name: "updated_at", Kind: DateTime, Auto: AutoCreateUpdate}
}

func rel(name, target string) entity.Relationship {
	return entity.Relationship{Name: name, Target: target}
}

func buildAddress(entity.Built) (entity.Entity, error) {
	return newTable(Table{
		Entity: EntityAddress,
		Name:   "addresses",
		Route:  "addresses",
		Columns: []Column{
			{Name: "street", Kind: String, Size: 255, Required: true},
			{Name: "city", Kind: String, Size: 100, Required: true},
			{Name: "state", Kind: String, Size: 2, Required: true},
			{Name: "zip_code", Kind: String, Size: 10, Required: true},
			createdAt(),
			updatedAt(),
		},
		Relations: []entity.Relationship{rel("citizens", EntityCitizen)},
		Filters: []Filter{
			{Param: "city", Column: "city", Op: OpEq},
			{Param: "state", Column: "state", Op: OpEq},
			{Param: "zip_code", Column: "zip_code", Op: OpEq},
		},
	}), nil
}

func buildCitizen(built entity.Built) (entity.Entity, error) {
	address, err := references(built, EntityCitizen, "address_id", EntityAddress, false, "SET NULL")
	if err != nil {
		return nil, err
	}
	return newTable(Table{
		Entity: EntityCitizen,
		Name:   "citizens",
		Route:  "citizens",
		Columns: []Column{
			{Name: "name", Kind: String, Size: 100, Required: true},
			{Name: "email", Kind: String, Size: 100, Required: true, Unique: true},
			{Name: "phone", Kind: String, Size: 20},
			address,
			{Name: "constituency", Kind: String, Size: 100, Required: true},
			{Name: "registration_status", Kind: String, Size: 50, Default: "unregistered"},
			createdAt(),
			updatedAt(),
		},
		Relations: []entity.Relationship{
			rel("donations", EntityDonation),
			rel("contacts", EntityContact),
			rel("outreach_contacts", EntityOutreach),
			rel("voter", EntityVoter),
			rel("canvasser_info", EntityCanvasser),
		},
		Filters: []Filter{
			{Param: "name", Column: "name", Op: OpContains},
			{Param: "email", Column: "email", Op: OpEq},
			{Param: "constituency", Column: "constituency", Op: OpEq},
			{Param: "registration_status", Column: "registration_status", Op: OpEq},
		},
	}), nil
}

func buildCampaign(entity.Built) (entity.Entity, error) {
	return newTable(Table{
		Entity: EntityCampaign,
		Name:   "campaigns",
		Route:  "campaigns",
		Columns: []Column{
			{Name: "name", Kind: String, Size: 100, Required: true},
			{Name: "description", Kind: Text},
			{Name: "start_date", Kind: Date, Required: true},
			{Name: "end_date", Kind: Date, Required: true},
			createdAt(),
		},
		Relations: []entity.Relationship{
			rel("teams", EntityCampaignTeam),
			rel("events", EntityCampaignEvent),
			rel("donations", EntityDonation),
			rel("canvassing_sessions", EntityCanvassingSession),
			rel("volunteers", EntityVolunteerCampaign),
		},
		Filters: []Filter{
			{Param: "name", Column: "name", Op: OpContains},
			{Param: "start_after", Column: "start_date", Op: OpGte},
			{Param: "end_before", Column: "end_date", Op: OpLte},
		},
	}), nil
}

func buildCampaignTeam(built entity.Built) (entity.Entity, error) {
	campaign, err := references(built, EntityCampaignTeam, "campaign_id", EntityCampaign, true, "CASCADE")
	if err != nil {
		return nil, err
	}
	return newTable(Table{
		Entity: EntityCampaignTeam,
		Name:   "campaign_teams",
		Route:  "campaign-teams",
		Columns: []Column{
			campaign,
			{Name: "name", Kind: String, Size: 100, Required: true},
			{Name: "description", Kind: Text},
			{Name: "contact_email", Kind: String, Size: 100},
			{Name: "contact_phone", Kind: String, Size: 20},
			{Name: "team_size", Kind: Integer},
			createdAt(),
			updatedAt(),
		},
		Relations: []entity.Relationship{
			rel("canvassing_sessions", EntityCanvassingSession),
			rel("outreach_activities", EntityOutreach),
		},
		Filters: []Filter{
			{Param: "name", Column: "name", Op: OpContains},
		},
	}), nil
}

func eventColumns(campaign Column) []Column {
	return []Column{
		campaign,
		{Name: "name", Kind: String, Size: 100, Required: true},
		{Name: "description", Kind: Text},
		{Name: "date", Kind: DateTime, Required: true},
		{Name: "location", Kind: String, Size: 255, Required: true},
		{Name: "event_type", Kind: String, Size: 50},
		{Name: "capacity", Kind: Integer},
	}
}

var eventFilters = []Filter{
	{Param: "event_type", Column: "event_type", Op: OpEq},
	{Param: "min_date", Column: "date", Op: OpGte},
	{Param: "max_date", Column: "date", Op: OpLte},
	{Param: "location", Column: "location", Op: OpContains},
}

func buildEvent(built entity.Built) (entity.Entity, error) {
	campaign, err := references(built, EntityEvent, "campaign_id", EntityCampaign, true, "CASCADE")
	if err != nil {
		return nil, err
	}
	return newTable(Table{
		Entity:  EntityEvent,
		Name:    "events",
		Route:   "events",
		Columns: eventColumns(campaign),
		Relations: []entity.Relationship{
			rel("staffers", EntityEventStaffer),
			rel("volunteer_assignments", EntityVolunteerAssignment),
		},
		Filters: eventFilters,
	}), nil
}

func buildCampaignEvent(built entity.Built) (entity.Entity, error) {
	campaign, err := references(built, EntityCampaignEvent, "campaign_id", EntityCampaign, true, "CASCADE")
	if err != nil {
		return nil, err
	}
	return newTable(Table{
		Entity:    EntityCampaignEvent,
		Name:      "campaign_events",
		Route:     "campaign-events",
		Columns:   append(eventColumns(campaign), createdAt(), updatedAt()),
		Relations: []entity.Relationship{rel("volunteer_assignments", EntityVolunteerAssignment)},
		Filters:   eventFilters,
	}), nil
}

func buildVolunteer(entity.Built) (entity.Entity, error) {
	return newTable(Table{
		Entity: EntityVolunteer,
		Name:   "volunteers",
		Route:  "volunteers",
		Columns: []Column{
			{Name: "first_name", Kind: String, Size: 100, Required: true},
			{Name: "last_name", Kind: String, Size: 100, Required: true},
			{Name: "email", Kind: String, Size: 100, Required: true, Unique: true},
			{Name: "phone", Kind: String, Size: 20},
			{Name: "address", Kind: String, Size: 255},
			{Name: "city", Kind: String, Size: 100},
			{Name: "state", Kind: String, Size: 2},
			{Name: "zip_code", Kind: String, Size: 10},
			{
				Name: "status", Kind: Enum, Values: VolunteerStatuses,
				Required: true, Default: VolunteerActive,
			},
			createdAt(),
			updatedAt(),
		},
		// campaigns and assignments are defined after volunteers
		Relations: []entity.Relationship{
			rel("campaigns", EntityVolunteerCampaign),
			rel("assignments", EntityVolunteerAssignment),
			rel("event_assignments", EntityEventStaffer),
		},
		StatusColumn: "status",
		Filters: []Filter{
			{Param: "email", Column: "email", Op: OpEq},
			{Param: "last_name", Column: "last_name", Op: OpContains},
			{Param: "city", Column: "city", Op: OpEq},
			{Param: "state", Column: "state", Op: OpEq},
		},
	}), nil
}

func buildCanvassingSession(built entity.Built) (entity.Entity, error) {
	campaign, err := references(built, EntityCanvassingSession, "campaign_id", EntityCampaign, true, "CASCADE")
	if err != nil {
		return nil, err
	}
	team, err := references(built, EntityCanvassingSession, "assigned_staff", EntityCampaignTeam, true, "")
	if err != nil {
		return nil, err
	}
	return newTable(Table{
		Entity: EntityCanvassingSession,
		Name:   "canvassing_sessions",
		Route:  "canvassing-sessions",
		Columns: []Column{
			campaign,
			team,
			{Name: "area_code", Kind: String, Size: 10},
			{Name: "target_completion_date", Kind: DateTime},
			{Name: "task_status", Kind: Enum, Values: TaskStatuses, Required: true, Default: TaskPending},
			{Name: "notes", Kind: Text},
			createdAt(),
			updatedAt(),
		},
		Relations:    []entity.Relationship{rel("volunteer_assignments", EntityVolunteerAssignment)},
		StatusColumn: "task_status",
		Filters: []Filter{
			{Param: "task_status", Column: "task_status", Op: OpEq},
			{Param: "area_code", Column: "area_code", Op: OpEq},
		},
	}), nil
}

func buildVolunteerAssignment(built entity.Built) (entity.Entity, error) {
	var cols []Column
	for _, fk := range []struct {
		column, target string
		required       bool
	}{
		{"volunteer_id", EntityVolunteer, true},
		{"campaign_event_id", EntityCampaignEvent, false},
		{"canvassing_session_id", EntityCanvassingSession, false},
		{"event_id", EntityEvent, false},
	} {
		c, err := references(built, EntityVolunteerAssignment, fk.column, fk.target, fk.required, "")
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	cols = append(cols,
		Column{Name: "task", Kind: String, Size: 255, Required: true},
		Column{Name: "assigned_at", Kind: DateTime, Auto: AutoCreate},
		createdAt(),
		updatedAt(),
	)
	return newTable(Table{
		Entity:  EntityVolunteerAssignment,
		Name:    "volunteer_assignment",
		Route:   "volunteer-assignments",
		Columns: cols,
		Filters: []Filter{
			{Param: "task", Column: "task", Op: OpContains},
		},
	}), nil
}

func buildVolunteerCampaign(built entity.Built) (entity.Entity, error) {
	volunteer, err := references(built, EntityVolunteerCampaign, "volunteer_id", EntityVolunteer, true, "CASCADE")
	if err != nil {
		return nil, err
	}
	campaign, err := references(built, EntityVolunteerCampaign, "campaign_id", EntityCampaign, true, "CASCADE")
	if err != nil {
		return nil, err
	}
	return newTable(Table{
		Entity:         EntityVolunteerCampaign,
		Name:           "volunteer_assignments",
		Route:          "volunteer-campaigns",
		Columns:        []Column{volunteer, campaign},
		UniqueTogether: [][]string{{"volunteer_id", "campaign_id"}},
	}), nil
}

func buildDonation(built entity.Built) (entity.Entity, error) {
	citizen, err := references(built, EntityDonation, "citizen_id", EntityCitizen, true, "")
	if err != nil {
		return nil, err
	}
	campaign, err := references(built, EntityDonation, "campaign_id", EntityCampaign, true, "")
	if err != nil {
		return nil, err
	}
	return newTable(Table{
		Entity: EntityDonation,
		Name:   "donations",
		Route:  "donations",
		Columns: []Column{
			citizen,
			campaign,
			{Name: "amount", Kind: Numeric, Precision: 10, Scale: 2, Required: true},
			{Name: "payment_method", Kind: String, Size: 50},
			{Name: "donation_type", Kind: String, Size: 50},
			{Name: "donation_date", Kind: DateTime, Auto: AutoCreate},
			{Name: "notes", Kind: Text},
			{Name: "status", Kind: Enum, Values: DonationStatuses, Required: true, Default: DonationPending},
			createdAt(),
			updatedAt(),
		},
		StatusColumn: "status",
		Filters: []Filter{
			{Param: "payment_method", Column: "payment_method", Op: OpEq},
			{Param: "min_amount", Column: "amount", Op: OpGte},
			{Param: "max_amount", Column: "amount", Op: OpLte},
			{Param: "date_after", Column: "donation_date", Op: OpGte},
			{Param: "date_before", Column: "donation_date", Op: OpLte},
		},
	}), nil
}

func buildOutreach(built entity.Built) (entity.Entity, error) {
	team, err := references(built, EntityOutreach, "team_id", EntityCampaignTeam, true, "CASCADE")
	if err != nil {
		return nil, err
	}
	citizen, err := references(built, EntityOutreach, "citizen_id", EntityCitizen, true, "CASCADE")
	if err != nil {
		return nil, err
	}
	return newTable(Table{
		Entity: EntityOutreach,
		Name:   "outreach",
		Route:  "outreach",
		Columns: []Column{
			team,
			citizen,
			{Name: "outreach_type", Kind: String, Size: 50, Required: true},
			{Name: "status", Kind: String, Size: 20, Default: "pending"},
			{Name: "contact_date", Kind: DateTime},
			{Name: "response", Kind: String, Size: 50},
			{Name: "follow_up_needed", Kind: Boolean, Default: false},
			{Name: "follow_up_date", Kind: DateTime},
			{Name: "notes", Kind: Text},
			createdAt(),
			updatedAt(),
		},
		UniqueTogether: [][]string{{"team_id", "citizen_id", "contact_date"}},
		StatusColumn:   "status",
		Filters: []Filter{
			{Param: "outreach_type", Column: "outreach_type", Op: OpEq},
			{Param: "follow_up_needed", Column: "follow_up_needed", Op: OpEq},
		},
	}), nil
}

func buildContact(built entity.Built) (entity.Entity, error) {
	citizen, err := references(built, EntityContact, "citizen_id", EntityCitizen, true, "CASCADE")
	if err != nil {
		return nil, err
	}
	return newTable(Table{
		Entity: EntityContact,
		Name:   "contacts",
		Route:  "contacts",
		Columns: []Column{
			citizen,
			{Name: "contact_date", Kind: DateTime, Auto: AutoCreate},
			{Name: "outcome", Kind: String, Size: 255, Required: true},
			{Name: "follow_up_required", Kind: Boolean, Default: false},
			{Name: "contact_method", Kind: String, Size: 50, Required: true},
		},
		Filters: []Filter{
			{Param: "contact_method", Column: "contact_method", Op: OpEq},
			{Param: "follow_up_required", Column: "follow_up_required", Op: OpEq},
			{Param: "date_after", Column: "contact_date", Op: OpGte},
		},
	}), nil
}

func buildVoter(built entity.Built) (entity.Entity, error) {
	citizen, err := references(built, EntityVoter, "citizen_id", EntityCitizen, true, "CASCADE")
	if err != nil {
		return nil, err
	}
	citizen.Unique = true
	return newTable(Table{
		Entity: EntityVoter,
		Name:   "voters",
		Route:  "voters",
		Columns: []Column{
			{Name: "registration_date", Kind: DateTime, Required: true},
			{Name: "last_known_vote_intention", Kind: Enum, Values: VoteIntentions},
			{Name: "last_intention_change_date", Kind: DateTime},
			citizen,
		},
		Relations: []entity.Relationship{rel("voting_intentions", EntityVotingIntention)},
		Tracking: []ChangeTracking{
			{Column: "last_known_vote_intention", ChangedAt: "last_intention_change_date"},
		},
		Filters: []Filter{
			{Param: "vote_intention", Column: "last_known_vote_intention", Op: OpEq},
			{Param: "min_registration_date", Column: "registration_date", Op: OpGte},
			{Param: "max_registration_date", Column: "registration_date", Op: OpLte},
		},
	}), nil
}

func buildVotingIntention(built entity.Built) (entity.Entity, error) {
	voter, err := references(built, EntityVotingIntention, "voter_id", EntityVoter, true, "CASCADE")
	if err != nil {
		return nil, err
	}
	return newTable(Table{
		Entity: EntityVotingIntention,
		Name:   "voting_intentions",
		Route:  "voting-intentions",
		Columns: []Column{
			voter,
			{Name: "change_date", Kind: DateTime, Auto: AutoCreate},
			{Name: "new_intention", Kind: String, Size: 50, Required: true},
		},
		Filters: []Filter{
			{Param: "new_intention", Column: "new_intention", Op: OpEq},
		},
	}), nil
}

func buildCanvasser(built entity.Built) (entity.Entity, error) {
	citizen, err := references(built, EntityCanvasser, "citizen_id", EntityCitizen, true, "CASCADE")
	if err != nil {
		return nil, err
	}
	citizen.Unique = true
	return newTable(Table{
		Entity: EntityCanvasser,
		Name:   "canvassers",
		Route:  "canvassers",
		Columns: []Column{
			citizen,
			{Name: "previous_intention", Kind: Enum, Values: Intentions},
			{Name: "current_intention", Kind: Enum, Values: Intentions},
			{Name: "last_contact_date", Kind: DateTime},
			{Name: "notes", Kind: Text},
			createdAt(),
			updatedAt(),
		},
		Tracking: []ChangeTracking{
			{Column: "current_intention", Previous: "previous_intention"},
		},
		Filters: []Filter{
			{Param: "current_intention", Column: "current_intention", Op: OpEq},
			{Param: "date_after", Column: "last_contact_date", Op: OpGte},
			{Param: "date_before", Column: "last_contact_date", Op: OpLte},
		},
	}), nil
}

func buildEventStaffer(built entity.Built) (entity.Entity, error) {
	event, err := references(built, EntityEventStaffer, "event_id", EntityEvent, true, "CASCADE")
	if err != nil {
		return nil, err
	}
	volunteer, err := references(built, EntityEventStaffer, "volunteer_id", EntityVolunteer, true, "CASCADE")
	if err != nil {
		return nil, err
	}
	return newTable(Table{
		Entity: EntityEventStaffer,
		Name:   "event_staffers",
		Route:  "event-staffers",
		Columns: []Column{
			event,
			volunteer,
			{Name: "role", Kind: String, Size: 50, Required: true},
			{Name: "shift_start", Kind: DateTime, Required: true},
			{Name: "shift_end", Kind: DateTime, Required: true},
			{Name: "status", Kind: Enum, Values: EventStatuses, Required: true, Default: EventScheduled},
			{Name: "notes", Kind: Text},
			createdAt(),
			updatedAt(),
		},
		StatusColumn: "status",
		Filters: []Filter{
			{Param: "role", Column: "role", Op: OpEq},
		},
	}), nil
}
