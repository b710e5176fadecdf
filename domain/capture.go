package domain

// CaptureRecord is the write-once contact record produced when a visitor
// submits the capture form.
type CaptureRecord struct {
	LeadID              string `json:"lead_id"`
	Name                string `json:"name"`
	Email               string `json:"email"`
	Phone               string `json:"phone,omitempty"`
	ConversationSummary string `json:"conversation_summary"`
	Source              string `json:"source"`
	Status              string `json:"status"`
}

// Fixed tags attached to every lead pushed to the CRM.
const (
	LeadSource = "chat_widget"
	LeadStatus = "new"
)
