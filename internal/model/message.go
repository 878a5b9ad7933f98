package model

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
)

type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

type Template string

const (
	TemplateWelcome           Template = "welcome"
	TemplateFollowUp1h        Template = "follow-up-1h"
	TemplateFollowUp24h       Template = "follow-up-24h"
	TemplateSimilarProperties Template = "similar-properties"
	TemplateMarketUpdate      Template = "market-update"
)

var Templates = []Template{
	TemplateWelcome,
	TemplateFollowUp1h,
	TemplateFollowUp24h,
	TemplateSimilarProperties,
	TemplateMarketUpdate,
}

func ParseTemplate(s string) (Template, error) {
	for _, t := range Templates {
		if string(t) == s {
			return t, nil
		}
	}
	return "", &UnknownTemplateError{Template: s}
}

func ParseChannel(s string) (Channel, error) {
	switch Channel(s) {
	case ChannelSMS, ChannelEmail:
		return Channel(s), nil
	}
	return "", fmt.Errorf("unknown channel %q", s)
}

// ScheduledMessage is a queued send. Exactly one of RecipientPhone and
// RecipientEmail is set, matching Channel.
type ScheduledMessage struct {
	ID              string     `json:"id"`
	LeadID          string     `json:"leadId"`
	EventID         string     `json:"eventId"`
	Channel         Channel    `json:"channel"`
	Template        Template   `json:"template"`
	Subject         *string    `json:"subject,omitempty"`
	Content         string     `json:"content"`
	RecipientPhone  *string    `json:"recipientPhone,omitempty"`
	RecipientEmail  *string    `json:"recipientEmail,omitempty"`
	SendAt          time.Time  `json:"sendAt"`
	Status          Status     `json:"status"`
	SentAt          *time.Time `json:"sentAt,omitempty"`
	ErrorMessage    *string    `json:"errorMessage,omitempty"`
	RemoteMessageID *string    `json:"remoteMessageId,omitempty"`
	ClaimedAt       *time.Time `json:"claimedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

func (m ScheduledMessage) Recipient() string {
	switch m.Channel {
	case ChannelSMS:
		if m.RecipientPhone != nil {
			return *m.RecipientPhone
		}
	case ChannelEmail:
		if m.RecipientEmail != nil {
			return *m.RecipientEmail
		}
	}
	return ""
}

type MessageStats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`
	Total      int `json:"total"`
}
