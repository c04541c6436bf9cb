package capability

// DefaultCatalog returns the built-in capability catalog. Deployments can
// extend it via configuration; IDs listed here are referenced by the starter
// policy set.
func DefaultCatalog() []Capability {
	return []Capability{
		{
			ID:          "file_read",
			Name:        "Read files",
			Description: "Read files within the workspace",
			Category:    CategoryFilesystem,
			Risk:        RiskLow,
		},
		{
			ID:          "file_write",
			Name:        "Write files",
			Description: "Create or modify files within the workspace",
			Category:    CategoryFilesystem,
			Risk:        RiskMedium,
		},
		{
			ID:          "shell_exec",
			Name:        "Execute shell commands",
			Description: "Run arbitrary shell commands in the workspace sandbox",
			Category:    CategoryExecution,
			Risk:        RiskHigh,
		},
		{
			ID:          "mcp_tool_call",
			Name:        "Invoke MCP tools",
			Description: "Call tools exposed by connected MCP servers",
			Category:    CategoryExecution,
			Risk:        RiskMedium,
		},
		{
			ID:          "net_http",
			Name:        "Outbound HTTP",
			Description: "Issue HTTP requests to external hosts",
			Category:    CategoryNetwork,
			Risk:        RiskHigh,
		},
		{
			ID:          "external_link",
			Name:        "Open external links",
			Description: "Open links that leave the workspace",
			Category:    CategoryNetwork,
			Risk:        RiskMedium,
		},
		{
			ID:          "secrets_read",
			Name:        "Read secrets",
			Description: "Access credentials and tokens available to the run",
			Category:    CategoryData,
			Risk:        RiskCritical,
		},
		{
			ID:          "send_message",
			Name:        "Send messages",
			Description: "Send email or chat messages on the user's behalf",
			Category:    CategoryCommunication,
			Risk:        RiskHigh,
		},
	}
}
