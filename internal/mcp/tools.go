package mcp

import "github.com/mark3labs/mcp-go/mcp"

var kindEnum = mcp.Enum("photos", "autocomplete", "details", "nearby")

var budgetStatusToolDef = mcp.NewTool("budget_status",
	mcp.WithDescription("Report today's Places API usage against the daily ceilings. Omit kind to list every resource kind."),
	mcp.WithString("kind", mcp.Description("Resource kind"), kindEnum),
	mcp.WithReadOnlyHintAnnotation(true),
)

var budgetRecordToolDef = mcp.NewTool("budget_record",
	mcp.WithDescription("Record one consumption of a resource kind. Use only after a paid call has actually succeeded."),
	mcp.WithString("kind", mcp.Description("Resource kind"), mcp.Required(), kindEnum),
)

var usageEventsToolDef = mcp.NewTool("usage_events",
	mcp.WithDescription("List usage ledger rows for one day, newest first."),
	mcp.WithString("kind", mcp.Description("Filter by resource kind"), kindEnum),
	mcp.WithString("day", mcp.Description("Day as YYYY-MM-DD (default today)")),
	mcp.WithNumber("limit", mcp.Description("Maximum rows (default 50, max 500)")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var usageExportToolDef = mcp.NewTool("usage_export",
	mcp.WithDescription("Export the usage ledger to a JSONL file under the exports directory."),
	mcp.WithString("path", mcp.Description("Destination .jsonl path (default ~/.placesguard/exports/usage-<day>-<ts>.jsonl)")),
	mcp.WithString("day", mcp.Description("Only export this day (YYYY-MM-DD)")),
)

var killSwitchStatusToolDef = mcp.NewTool("killswitch_status",
	mcp.WithDescription("Read the remote kill switch flags."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var killSwitchActivateToolDef = mcp.NewTool("killswitch_activate",
	mcp.WithDescription("Stop every paid Places API call until the switch is deactivated."),
	mcp.WithString("reason", mcp.Description("Why the switch is being pulled"), mcp.Required()),
	mcp.WithDestructiveHintAnnotation(true),
)

var killSwitchDeactivateToolDef = mcp.NewTool("killswitch_deactivate",
	mcp.WithDescription("Re-enable paid Places API calls."),
)

var visualResolveToolDef = mcp.NewTool("visual_resolve",
	mcp.WithDescription("Resolve the visual for a place card: user photo, category poster or a gated remote photo."),
	mcp.WithString("category", mcp.Description("Place category (restaurant, cafe, bar, park, museum, shop, other)")),
	mcp.WithArray("user_photos", mcp.Description("URLs of photos uploaded by users"), mcp.WithStringItems()),
	mcp.WithString("photo_name", mcp.Description("Provider photo handle, e.g. places/<id>/photos/<ref>")),
	mcp.WithArray("attributions", mcp.Description("Author attributions for photo_name"), mcp.WithStringItems()),
	mcp.WithBoolean("upgrade", mcp.Description("Attempt the remote tier now. Bills one photo on success.")),
)

var reasonForToolDef = mcp.NewTool("reason_for",
	mcp.WithDescription("Explain why a place is suggested, citing only tags that actually overlap."),
	mcp.WithArray("place_types", mcp.Description("Types of the place"), mcp.WithStringItems(), mcp.Required()),
	mcp.WithArray("user_tags", mcp.Description("The user's interest tags"), mcp.WithStringItems()),
	mcp.WithArray("friend_tags", mcp.Description("Interest tags of the user's friends"), mcp.WithStringItems()),
	mcp.WithBoolean("nearby", mcp.Description("Whether the place is near the user")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var nearbyCellToolDef = mcp.NewTool("nearby_cell",
	mcp.WithDescription("Compute the nearby cache cell id for a map viewport."),
	mcp.WithNumber("north", mcp.Required()),
	mcp.WithNumber("south", mcp.Required()),
	mcp.WithNumber("east", mcp.Required()),
	mcp.WithNumber("west", mcp.Required()),
	mcp.WithReadOnlyHintAnnotation(true),
)

var nearbySearchToolDef = mcp.NewTool("nearby_search",
	mcp.WithDescription("Search places in a viewport. Cached cells are free; misses are gated and billed as one nearby call."),
	mcp.WithNumber("north", mcp.Required()),
	mcp.WithNumber("south", mcp.Required()),
	mcp.WithNumber("east", mcp.Required()),
	mcp.WithNumber("west", mcp.Required()),
)
