package policy

import "time"

// RequestContext carries the concrete details of a requested action so rule
// conditions can be evaluated against them. Fields that do not apply to a
// given action type are left zero.
type RequestContext struct {
	// Capability is the catalog ID of the requested capability (e.g., "shell_exec").
	Capability string `json:"capability"`
	// Resource is the resource name rules match against (e.g., "shell.execute").
	Resource string `json:"resource"`

	// Command is the shell command line for execution requests.
	Command string `json:"command,omitempty"`
	// Path is the filesystem path for file requests.
	Path string `json:"path,omitempty"`
	// Domain is the destination domain for network requests.
	Domain string `json:"domain,omitempty"`
	// URL is the full destination URL for network requests.
	URL string `json:"url,omitempty"`

	// Params carries tool-call arguments and other open key/value context.
	Params map[string]any `json:"params,omitempty"`

	// RequestedAt is when the action was requested.
	RequestedAt time.Time `json:"requested_at"`
}
