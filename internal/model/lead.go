package model

import (
	"fmt"
	"strings"
	"time"
)

type PreApproval string

const (
	PreApprovedYes     PreApproval = "yes"
	PreApprovedNo      PreApproval = "no"
	PreApprovedNotSure PreApproval = "not-sure"
)

func ParsePreApproval(s string) (PreApproval, error) {
	switch PreApproval(s) {
	case PreApprovedYes, PreApprovedNo, PreApprovedNotSure:
		return PreApproval(s), nil
	}
	return "", fmt.Errorf("invalid pre-approval %q", s)
}

type Timeline string

const (
	Timeline0to30Days   Timeline = "0-30 days"
	Timeline1to3Months  Timeline = "1-3 months"
	Timeline3to6Months  Timeline = "3-6 months"
	Timeline6PlusMonths Timeline = "6+ months"
)

func ParseTimeline(s string) (Timeline, error) {
	switch Timeline(s) {
	case Timeline0to30Days, Timeline1to3Months, Timeline3to6Months, Timeline6PlusMonths:
		return Timeline(s), nil
	}
	return "", fmt.Errorf("invalid timeline %q", s)
}

type Score string

const (
	ScoreHot  Score = "HOT"
	ScoreWarm Score = "WARM"
	ScoreCold Score = "COLD"
)

func ParseScore(s string) (Score, error) {
	switch Score(strings.ToUpper(s)) {
	case ScoreHot, ScoreWarm, ScoreCold:
		return Score(strings.ToUpper(s)), nil
	}
	return "", fmt.Errorf("invalid score %q", s)
}

type Lead struct {
	ID           string      `json:"id"`
	EventID      string      `json:"eventId"`
	FirstName    string      `json:"firstName"`
	LastName     string      `json:"lastName"`
	Email        string      `json:"email"`
	Phone        string      `json:"phone"`
	PreApproved  PreApproval `json:"preApproved"`
	HasAgent     bool        `json:"hasAgent"`
	Timeline     Timeline    `json:"timeline"`
	InterestedIn string      `json:"interestedIn,omitempty"`
	Notes        string      `json:"notes,omitempty"`
	Score        Score       `json:"score"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

func (l Lead) FullName() string {
	return strings.TrimSpace(l.FirstName + " " + l.LastName)
}

type Event struct {
	ID              string    `json:"id"`
	ShortCode       string    `json:"shortCode"`
	PropertyAddress string    `json:"propertyAddress"`
	PropertyPhotos  []string  `json:"propertyPhotos"`
	Price           int64     `json:"price"`
	Bedrooms        int       `json:"bedrooms"`
	Bathrooms       float64   `json:"bathrooms"`
	SquareFeet      int       `json:"squareFeet"`
	AgentName       string    `json:"agentName"`
	AgentPhoto      string    `json:"agentPhoto,omitempty"`
	AgentBrokerage  string    `json:"agentBrokerage"`
	AgentEmail      string    `json:"agentEmail"`
	AgentPhone      string    `json:"agentPhone"`
	EventDate       time.Time `json:"eventDate"`
	CreatedAt       time.Time `json:"createdAt"`
}
