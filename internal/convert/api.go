package convert

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/campaigntrip/convertapi/internal/resolve"
	"github.com/campaigntrip/convertapi/internal/traces"
)

func (c *Client) projectsURL(accountID string) string {
	return fmt.Sprintf("%s/accounts/%s/projects", c.cfg.BaseURL, url.PathEscape(accountID))
}

func (c *Client) experiencesURL(accountID, projectID string) string {
	return fmt.Sprintf("%s/accounts/%s/projects/%s/experiences",
		c.cfg.BaseURL, url.PathEscape(accountID), url.PathEscape(projectID))
}

func (c *Client) experienceURL(accountID, projectID, experienceID string) string {
	return c.experiencesURL(accountID, projectID) + "/" + url.PathEscape(experienceID)
}

// ListProjects returns the "data" member of the account's project listing.
func (c *Client) ListProjects(ctx context.Context, accountID string) (json.RawMessage, error) {
	resp, err := c.call(ctx, "list_projects", Request{
		Method: http.MethodPost,
		URL:    c.projectsURL(accountID),
		Unwrap: true,
	}, traces.AccountID(accountID))
	if err != nil {
		return nil, err
	}
	if resp.Empty() {
		return nil, ErrNoData
	}
	return resp.Data, nil
}

// ListExperiences returns the first page of a project's experiences.
// Further pages are not requested; a warning is logged when they exist.
func (c *Client) ListExperiences(ctx context.Context, accountID, projectID string, opts ListOptions) (*ExperienceList, error) {
	body, err := opts.body()
	if err != nil {
		return nil, err
	}

	resp, err := c.call(ctx, "list_experiences", Request{
		Method: http.MethodPost,
		URL:    c.experiencesURL(accountID, projectID),
		Body:   body,
	}, traces.AccountID(accountID), traces.ProjectID(projectID))
	if err != nil {
		return nil, err
	}
	if resp.Empty() {
		return nil, ErrNoData
	}

	var env struct {
		Data  json.RawMessage `json:"data"`
		Extra struct {
			Pagination Pagination `json:"pagination"`
		} `json:"extra"`
	}
	if err := json.Unmarshal(resp.Data, &env); err != nil || env.Data == nil {
		return nil, fmt.Errorf("%w: experience listing has no data member", ErrUnexpectedResponse)
	}

	list := &ExperienceList{Pagination: env.Extra.Pagination, Raw: env.Data}
	if err := json.Unmarshal(env.Data, &list.Experiences); err != nil {
		return nil, fmt.Errorf("%w: decode experiences: %v", ErrUnexpectedResponse, err)
	}

	if p := list.Pagination; p.PagesCount > 1 {
		c.logger.Warn("experience listing is paginated; only the first page was read",
			"account_id", accountID, "project_id", projectID,
			"pages", p.PagesCount, "items", p.ItemsCount)
	}
	return list, nil
}

// GetExperience returns an experience document with its variations
// expanded. The document is returned as sent, without unwrapping.
func (c *Client) GetExperience(ctx context.Context, accountID, projectID, experienceID string) (json.RawMessage, error) {
	return c.getExperience(ctx, "get_experience", accountID, projectID, experienceID, WithVariations)
}

// GetExperienceStats is GetExperience with statistics included.
func (c *Client) GetExperienceStats(ctx context.Context, accountID, projectID, experienceID string) (json.RawMessage, error) {
	return c.getExperience(ctx, "get_experience_stats", accountID, projectID, experienceID, WithStats)
}

// The API reads the expansion from the body even on GET.
func (c *Client) getExperience(ctx context.Context, op, accountID, projectID, experienceID string, opts ListOptions) (json.RawMessage, error) {
	body, err := opts.body()
	if err != nil {
		return nil, err
	}

	resp, err := c.call(ctx, op, Request{
		Method: http.MethodGet,
		URL:    c.experienceURL(accountID, projectID, experienceID),
		Body:   body,
	}, traces.AccountID(accountID), traces.ProjectID(projectID), traces.ExperienceID(experienceID))
	if err != nil {
		return nil, err
	}
	if resp.Empty() {
		return nil, ErrNoData
	}
	return resp.Data, nil
}

// GetDailyReport returns the "data" member of an experience's daily report.
func (c *Client) GetDailyReport(ctx context.Context, accountID, projectID, experienceID string) (json.RawMessage, error) {
	return c.report(ctx, "get_daily_report", "daily_report", accountID, projectID, experienceID)
}

// GetAggregatedReport returns the "data" member of an experience's
// aggregated report.
func (c *Client) GetAggregatedReport(ctx context.Context, accountID, projectID, experienceID string) (json.RawMessage, error) {
	return c.report(ctx, "get_aggregated_report", "aggregated_report", accountID, projectID, experienceID)
}

func (c *Client) report(ctx context.Context, op, kind, accountID, projectID, experienceID string) (json.RawMessage, error) {
	resp, err := c.call(ctx, op, Request{
		Method: http.MethodPost,
		URL:    c.experienceURL(accountID, projectID, experienceID) + "/" + kind,
		Unwrap: true,
	}, traces.AccountID(accountID), traces.ProjectID(projectID), traces.ExperienceID(experienceID))
	if err != nil {
		return nil, err
	}
	if resp.Empty() {
		return nil, ErrNoData
	}
	return resp.Data, nil
}

// ExperienceVariantMaps builds the id to key lookups for every experience
// on the first page of the project's listing.
func (c *Client) ExperienceVariantMaps(ctx context.Context, accountID, projectID string) (*resolve.Maps, error) {
	list, err := c.ListExperiences(ctx, accountID, projectID, WithVariations)
	if err != nil {
		return nil, fmt.Errorf("list experiences in account/project %s/%s: %w", accountID, projectID, err)
	}

	maps := resolve.NewMaps()
	for _, e := range list.Experiences {
		maps.AddExperience(e.ID.String(), e.Key)
		for _, v := range e.Variations {
			maps.AddVariant(e.ID.String(), v.ID.String(), v.Key)
		}
	}
	return maps, nil
}
