package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the Convert MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

func scopeOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("account_id",
			mcp.Description("Convert account id. Defaults to CONVERT_ACCOUNT_ID.")),
		mcp.WithString("project_id",
			mcp.Description("Convert project id. Defaults to CONVERT_PROJECT_ID.")),
	}
}

func experienceTool(name, description string) mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription(description),
		mcp.WithString("experience_id",
			mcp.Required(),
			mcp.Description("Numeric id of the experience (A/B test)")),
	}, scopeOptions()...)
	return mcp.NewTool(name, opts...)
}

var ToolListExperiences = mcp.NewTool("list_experiences",
	append([]mcp.ToolOption{
		mcp.WithDescription(
			"List the experiences (A/B tests) of a Convert project with their ids, keys and variations. " +
				"Only the first page of results is returned."),
	}, scopeOptions()...)...,
)

var ToolGetExperience = experienceTool("get_experience",
	"Get one experience with its variations expanded, as raw JSON.")

var ToolGetExperienceStats = experienceTool("get_experience_stats",
	"Summarize an experience's results: total conversions, traffic split, "+
		"conversions per variation and variations flagged as winners.")

var ToolGetDailyReport = experienceTool("get_daily_report",
	"Get an experience's daily report as raw JSON.")

var ToolGetAggregatedReport = experienceTool("get_aggregated_report",
	"Get an experience's aggregated report as raw JSON.")

var ToolDecodeCookie = mcp.NewTool("decode_cookie",
	append([]mcp.ToolOption{
		mcp.WithDescription(
			"Decode a Convert visitor cookie (_conv_v) into JSON. " +
				"With resolve, experience and variation ids are replaced by their keys."),
		mcp.WithString("cookie",
			mcp.Required(),
			mcp.Description("Raw cookie value, e.g. 'vi:1*sc:3*exp:{100.{v.200-g.{}}}'")),
		mcp.WithString("key",
			mcp.Description("Cookie field to decode (default 'exp'). Ignored when full is set.")),
		mcp.WithBoolean("full",
			mcp.Description("Decode every field of the cookie instead of one")),
		mcp.WithBoolean("resolve",
			mcp.Description("Replace ids with experience and variation keys (needs account and project)")),
	}, scopeOptions()...)...,
)
