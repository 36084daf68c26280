package models

// ChallengeSummary is one entry of the grouped challenge list.
type ChallengeSummary struct {
	ID       int    `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category"`
	Score    int    `json:"score"`
	Solved   bool   `json:"solved"`
}

// ChallengeList groups challenges by category, in the order the portal returned them.
type ChallengeList struct {
	Categories []string                      `json:"categories"`
	ByCategory map[string][]ChallengeSummary `json:"by_category"`
}

// ChallengeDetail is the full view of one challenge, including its current instance.
type ChallengeDetail struct {
	ID       int                `json:"id"`
	Title    string             `json:"title"`
	Category string             `json:"category"`
	Content  string             `json:"content"`
	Hints    []string           `json:"hints"`
	Score    int                `json:"score"`
	Dynamic  bool               `json:"dynamic"`
	Instance *ChallengeInstance `json:"instance,omitempty"`
}

// SubmissionResult is the judged outcome of a flag submission.
type SubmissionResult string

const (
	SubmissionAccepted SubmissionResult = "Accepted"
	SubmissionWrong    SubmissionResult = "Wrong"
	SubmissionUnknown  SubmissionResult = "Unknown"
)
