package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/campaigntrip/convertapi/internal/convert"
	"github.com/campaigntrip/convertapi/internal/cookie"
	"github.com/campaigntrip/convertapi/internal/logging"
	"github.com/campaigntrip/convertapi/internal/report"
	"github.com/campaigntrip/convertapi/internal/resolve"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	api      API
	defaults Defaults
	logger   *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(api API, defaults Defaults, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Handlers{api: api, defaults: defaults, logger: logger}
}

// HandleListExperiences lists a project's experiences.
func (h *Handlers) HandleListExperiences(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	accountID, projectID, err := h.defaults.scope(req.GetString("account_id", ""), req.GetString("project_id", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	list, err := h.api.ListExperiences(ctx, accountID, projectID, convert.WithVariations)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list experiences: %v", err)), nil
	}

	return mcp.NewToolResultText(formatExperienceList(list)), nil
}

// HandleGetExperience returns one experience document.
func (h *Handlers) HandleGetExperience(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.experienceJSON(ctx, req, "experience", h.api.GetExperience)
}

// HandleGetDailyReport returns an experience's daily report.
func (h *Handlers) HandleGetDailyReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.experienceJSON(ctx, req, "daily report", h.api.GetDailyReport)
}

// HandleGetAggregatedReport returns an experience's aggregated report.
func (h *Handlers) HandleGetAggregatedReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.experienceJSON(ctx, req, "aggregated report", h.api.GetAggregatedReport)
}

type experienceFetch func(ctx context.Context, accountID, projectID, experienceID string) (json.RawMessage, error)

func (h *Handlers) experienceJSON(ctx context.Context, req mcp.CallToolRequest, what string, fetch experienceFetch) (*mcp.CallToolResult, error) {
	accountID, projectID, experienceID, err := h.experienceArgs(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	raw, err := fetch(ctx, accountID, projectID, experienceID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get %s %s in account/project %s/%s: %v",
			what, experienceID, accountID, projectID, err)), nil
	}

	return mcp.NewToolResultText(formatJSON(raw)), nil
}

// HandleGetExperienceStats summarizes an experience's results.
func (h *Handlers) HandleGetExperienceStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	accountID, projectID, experienceID, err := h.experienceArgs(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	statsRaw, err := h.api.GetExperienceStats(ctx, accountID, projectID, experienceID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get experience %s: %v", experienceID, err)), nil
	}
	dailyRaw, err := h.api.GetDailyReport(ctx, accountID, projectID, experienceID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get experience %s report: %v", experienceID, err)), nil
	}

	stats, err := report.ParseStats(statsRaw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	daily, err := report.ParseDaily(dailyRaw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(strings.Join(report.Summarize(stats, daily).Lines(), "\n")), nil
}

// HandleDecodeCookie decodes a visitor cookie, optionally resolving ids.
func (h *Handlers) HandleDecodeCookie(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw := strings.TrimSpace(req.GetString("cookie", ""))
	if raw == "" {
		return mcp.NewToolResultError("cookie is required"), nil
	}
	key := req.GetString("key", cookie.DefaultField)
	full := req.GetBool("full", false)

	var (
		data cookie.Data
		err  error
	)
	if full {
		data, err = cookie.Decode(raw)
	} else {
		data, err = cookie.DecodeField(raw, key)
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to decode cookie: %v", err)), nil
	}

	var out any = data
	if req.GetBool("resolve", false) {
		accountID, projectID, err := h.defaults.scope(req.GetString("account_id", ""), req.GetString("project_id", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		maps, err := h.api.ExperienceVariantMaps(ctx, accountID, projectID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to resolve ids: %v", err)), nil
		}

		tr := &resolve.Translator{Logger: h.logger, LabelWithID: full}
		if full {
			out, err = tr.TranslateCookie(data, maps)
		} else {
			out, err = tr.TranslateField(data, key, maps)
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to resolve ids: %v", err)), nil
		}
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func (h *Handlers) experienceArgs(req mcp.CallToolRequest) (accountID, projectID, experienceID string, err error) {
	experienceID = req.GetString("experience_id", "")
	if experienceID == "" {
		return "", "", "", fmt.Errorf("experience_id is required")
	}
	accountID, projectID, err = h.defaults.scope(req.GetString("account_id", ""), req.GetString("project_id", ""))
	return accountID, projectID, experienceID, err
}

// --- Formatting helpers ---

func formatExperienceList(list *convert.ExperienceList) string {
	if len(list.Experiences) == 0 {
		return "No experiences found."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d experience(s):\n\n", len(list.Experiences)))
	for i, e := range list.Experiences {
		sb.WriteString(fmt.Sprintf("%d. %s (%s)", i+1, e.Key, e.ID))
		if e.Name != "" {
			sb.WriteString(" - " + e.Name)
		}
		if e.Status != "" {
			sb.WriteString(" [" + e.Status + "]")
		}
		sb.WriteString("\n")
		if len(e.Variations) > 0 {
			vs := make([]string, len(e.Variations))
			for j, v := range e.Variations {
				vs[j] = fmt.Sprintf("%s (%s)", v.Key, v.ID)
			}
			sb.WriteString("   Variations: " + strings.Join(vs, ", ") + "\n")
		}
	}
	if p := list.Pagination; p.PagesCount > 1 {
		sb.WriteString(fmt.Sprintf("\nShowing page 1 of %d (%d experiences in total).\n", p.PagesCount, p.ItemsCount))
	}
	return sb.String()
}

func formatJSON(raw json.RawMessage) string {
	b, err := report.PrettyJSON(raw)
	if err != nil {
		return string(raw)
	}
	return string(b)
}
