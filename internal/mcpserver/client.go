package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/campaigntrip/convertapi/internal/convert"
	"github.com/campaigntrip/convertapi/internal/resolve"
)

// API is the part of the Convert client the tools call.
type API interface {
	ListExperiences(ctx context.Context, accountID, projectID string, opts convert.ListOptions) (*convert.ExperienceList, error)
	GetExperience(ctx context.Context, accountID, projectID, experienceID string) (json.RawMessage, error)
	GetExperienceStats(ctx context.Context, accountID, projectID, experienceID string) (json.RawMessage, error)
	GetDailyReport(ctx context.Context, accountID, projectID, experienceID string) (json.RawMessage, error)
	GetAggregatedReport(ctx context.Context, accountID, projectID, experienceID string) (json.RawMessage, error)
	ExperienceVariantMaps(ctx context.Context, accountID, projectID string) (*resolve.Maps, error)
}

var _ API = (*convert.Client)(nil)

// Defaults fill in account and project when a tool call omits them.
type Defaults struct {
	AccountID string
	ProjectID string
}

// scope resolves the account and project for a call.
func (d Defaults) scope(accountID, projectID string) (string, string, error) {
	if accountID == "" {
		accountID = d.AccountID
	}
	if projectID == "" {
		projectID = d.ProjectID
	}
	if accountID == "" {
		return "", "", fmt.Errorf("account_id is required (or set CONVERT_ACCOUNT_ID)")
	}
	if projectID == "" {
		return "", "", fmt.Errorf("project_id is required (or set CONVERT_PROJECT_ID)")
	}
	return accountID, projectID, nil
}
