// Package capability contains the static catalog of capabilities an agent
// may request, together with their risk classification.
package capability

// RiskLevel classifies how dangerous a capability is when misused.
type RiskLevel string

const (
	// RiskLow covers read-only or otherwise benign operations.
	RiskLow RiskLevel = "low"
	// RiskMedium covers operations with limited blast radius.
	RiskMedium RiskLevel = "medium"
	// RiskHigh covers operations that can modify the workspace or reach the network.
	RiskHigh RiskLevel = "high"
	// RiskCritical covers operations that can destroy data or exfiltrate secrets.
	RiskCritical RiskLevel = "critical"
)

// Valid reports whether r is one of the four defined risk levels.
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	}
	return false
}

// DefaultsToApproval reports whether an unmatched request for a capability
// at this risk level falls back to require_approval rather than allow.
func (r RiskLevel) DefaultsToApproval() bool {
	return r == RiskHigh || r == RiskCritical
}

// Category groups capabilities for presentation purposes.
type Category string

const (
	CategoryFilesystem    Category = "filesystem"
	CategoryExecution     Category = "execution"
	CategoryNetwork       Category = "network"
	CategoryData          Category = "data"
	CategoryCommunication Category = "communication"
)

// Capability is an immutable catalog entry describing an atomic, named
// permission an agent may request.
type Capability struct {
	// ID is the stable identifier referenced by role grants (e.g., "shell_exec").
	ID string `json:"id"`
	// Name is the human-readable name shown in approval prompts.
	Name string `json:"name"`
	// Description explains what the capability permits.
	Description string `json:"description"`
	// Category groups the capability for presentation.
	Category Category `json:"category"`
	// Risk is the four-tier risk classification.
	Risk RiskLevel `json:"risk_level"`
}
