package main

import (
	"encoding/json"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/eventnexus/autopilot/internal/domain"
)

const timeLayout = "2006-01-02 15:04:05"

func (c *cli) newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(c.out)
	t.SetStyle(table.StyleLight)
	return t
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) printSummary(s domain.RunSummary) error {
	if c.jsonOut {
		return c.printJSON(s)
	}
	t := c.newTable()
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRows([]table.Row{
		{"Run", s.RunID},
		{"Trigger", s.Trigger},
		{"Duration", s.Duration().Round(time.Millisecond)},
		{"Evaluated", s.CampaignsEvaluated},
		{"Paused", s.CampaignsPaused},
		{"Scaled", s.CampaignsScaled},
		{"Posted", s.CampaignsPosted},
		{"Opportunities", s.OpportunitiesDetected},
		{"No data", s.NoData},
		{"No action", s.NoAction},
		{"Skipped", s.Skipped},
		{"Failed", s.Failed},
		{"Timed out", yesNo(s.TimedOut)},
	})
	t.Render()
	if len(s.Failures) > 0 {
		f := c.newTable()
		f.AppendHeader(table.Row{"Campaign", "Stage", "Error"})
		for _, fl := range s.Failures {
			f.AppendRow(table.Row{fl.CampaignID, fl.Stage, fl.Error})
		}
		f.Render()
	}
	return nil
}

func (c *cli) printRuns(runs []domain.RunSummary) error {
	if c.jsonOut {
		return c.printJSON(runs)
	}
	t := c.newTable()
	t.AppendHeader(table.Row{"Run", "Trigger", "Started", "Evaluated", "Paused", "Scaled", "Posted", "Failed", "Timed out"})
	for _, s := range runs {
		t.AppendRow(table.Row{
			s.RunID, s.Trigger, s.StartedAt.Format(timeLayout),
			s.CampaignsEvaluated, s.CampaignsPaused, s.CampaignsScaled, s.CampaignsPosted,
			s.Failed, yesNo(s.TimedOut),
		})
	}
	t.Render()
	return nil
}

func (c *cli) printActions(actions []domain.AutonomousAction) error {
	if c.jsonOut {
		return c.printJSON(actions)
	}
	t := c.newTable()
	t.AppendHeader(table.Row{"ID", "Campaign", "Type", "Status", "Confidence", "Reason", "Created"})
	for _, a := range actions {
		t.AppendRow(table.Row{
			a.ID, a.CampaignID, a.Type, a.Status, a.Confidence, a.Reason, a.CreatedAt.Format(timeLayout),
		})
	}
	t.Render()
	return nil
}

func (c *cli) printOpportunities(opps []domain.Opportunity) error {
	if c.jsonOut {
		return c.printJSON(opps)
	}
	t := c.newTable()
	t.AppendHeader(table.Row{"ID", "Campaign", "Type", "Severity", "Status", "Suggested action"})
	for _, o := range opps {
		t.AppendRow(table.Row{o.ID, o.CampaignID, o.Type, o.Severity, o.Status, o.SuggestedAction})
	}
	t.Render()
	return nil
}

func (c *cli) printRules(rules []domain.AutonomousRule) error {
	if c.jsonOut {
		return c.printJSON(rules)
	}
	t := c.newTable()
	t.AppendHeader(table.Row{"ID", "Name", "Type", "Priority", "Active"})
	for _, r := range rules {
		t.AppendRow(table.Row{r.ID, r.Name, r.Type, r.Priority, yesNo(r.Active)})
	}
	t.Render()
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
