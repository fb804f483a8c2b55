package postgres

import (
	"database/sql"

	"github.com/eventnexus/autopilot/internal/service/autopilot"
)

// NewRepositories returns every autopilot repository backed by db.
func NewRepositories(db *sql.DB) autopilot.Repositories {
	return autopilot.Repositories{
		Campaigns:     NewCampaignRepo(db),
		Actions:       NewActionRepo(db),
		Opportunities: NewOpportunityRepo(db),
		Rules:         NewRuleRepo(db),
		Snapshots:     NewSnapshotRepo(db),
		Runs:          NewRunRepo(db),
		Tx:            NewTransactor(db),
	}
}
