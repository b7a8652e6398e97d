package model

import "time"

// Message is an inbound mail item as surfaced by the provider, reduced to
// the fields the triage and digest operations need.
type Message struct {
	ID         string
	From       string
	Subject    string
	Preview    string
	ReceivedAt time.Time
}

// Event is a calendar entry used for meeting brief generation.
type Event struct {
	ID        string
	Subject   string
	Organizer string
	Attendees []string
	Start     time.Time
	End       time.Time
}

// Classification is the triage verdict for a single message.
type Classification struct {
	Category   string
	NeedsReply bool
	// Folder is the destination folder when the message should be filed;
	// empty means leave it in place.
	Folder string
}
