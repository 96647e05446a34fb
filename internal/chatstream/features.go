// ABOUTME: Role-dependent chat features
// ABOUTME: Admins see agent and tool controls; end users get plain conversation

package chatstream

import "github.com/2389/coven-console/internal/session"

// Feature is a capability of the chat surface.
type Feature string

const (
	FeatureConversation Feature = "conversation"
	FeatureHistory      Feature = "history"
	FeatureAgentPicker  Feature = "agent-picker"
	FeatureToolApproval Feature = "tool-approval"
	FeatureThinking     Feature = "thinking"
)

// Features returns the chat features exposed to role, in display order.
func Features(role session.Role) []Feature {
	switch role {
	case session.RoleAdmin:
		return []Feature{FeatureConversation, FeatureHistory, FeatureAgentPicker, FeatureToolApproval, FeatureThinking}
	case session.RoleUser:
		return []Feature{FeatureConversation, FeatureHistory}
	default:
		return nil
	}
}
