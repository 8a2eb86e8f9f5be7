package model

// Profile holds the per-user background information used to personalize
// answers. Identity itself lives in the external auth service; only the
// background fields and consent flag are stored here.
type Profile struct {
	UserID             string `json:"user_id"`
	Email              string `json:"email,omitempty"`
	SoftwareBackground string `json:"software_background,omitempty"`
	HardwareBackground string `json:"hardware_background,omitempty"`
	ConsentGiven       bool   `json:"consent_given"`
	Ctime              int64  `json:"ctime"`
	Mtime              int64  `json:"mtime"`
}

// Interaction is the persisted record of one answered query.
type Interaction struct {
	InteractionID string `json:"interaction_id"`
	SessionID     string `json:"session_id,omitempty"`
	UserID        string `json:"user_id,omitempty"`
	Query         string `json:"query"`
	Answer        string `json:"answer"`
	CitationCount int    `json:"citation_count"`
	Ctime         int64  `json:"ctime"`
}
