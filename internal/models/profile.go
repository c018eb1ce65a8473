// internal/models/profile.go
package models

import (
	"sort"
	"time"
)

type Platform string

const (
	PlatformTinder Platform = "tinder"
	PlatformHinge  Platform = "hinge"
)

type Gender string

const (
	GenderMale    Gender = "M"
	GenderFemale  Gender = "F"
	GenderOther   Gender = "Other"
	GenderMore    Gender = "More"
	GenderUnknown Gender = "Unknown"
)

// Preference is the gender a user is interested in.
type Preference string

const (
	PreferenceMale     Preference = "M"
	PreferenceFemale   Preference = "F"
	PreferenceEveryone Preference = "Everyone"
	PreferenceUnknown  Preference = "Unknown"
)

type Sender string

const (
	SenderUser  Sender = "user"
	SenderMatch Sender = "match"
)

// Sentinels for optional vendor fields.
const (
	AgeUnknown   = 0
	OrderUnknown = -1
)

// DateLayout is the layout of UsageDay.Date.
const DateLayout = "2006-01-02"

// RawExport is a decoded vendor export document.
type RawExport = map[string]interface{}

type NormalizedProfile struct {
	ProfileID string        `json:"profileId" validate:"required,len=64,hexadecimal"`
	Platform  Platform      `json:"platform" validate:"required,oneof=tinder hinge"`
	Identity  Identity      `json:"identity"`
	Jobs      []Job         `json:"jobs" validate:"dive"`
	Education Education     `json:"education"`
	Prompts   []Prompt      `json:"prompts"`
	Usage     []UsageDay    `json:"usage" validate:"dive"`
	Matches   []Match       `json:"matches" validate:"dive"`
	Media     []Media       `json:"media"`
	Meta      *DerivedStats `json:"meta,omitempty"`
}

type Identity struct {
	Age          int        `json:"age" validate:"gte=0,lte=130"`
	Gender       Gender     `json:"gender" validate:"oneof=M F Other More Unknown"`
	InterestedIn Preference `json:"interestedIn" validate:"oneof=M F Everyone Unknown"`
	AgeFilterMin int        `json:"ageFilterMin" validate:"gte=0"`
	AgeFilterMax int        `json:"ageFilterMax" validate:"gte=0"`
	City         string     `json:"city"`
	Region       string     `json:"region"`
	Country      string     `json:"country"`
	Bio          string     `json:"bio"`
	Interests    []string   `json:"interests"`
}

// Job keeps a title/company together with their displayed flags; consent clears the whole value.
type Job struct {
	Title            string `json:"title"`
	TitleDisplayed   bool   `json:"titleDisplayed"`
	Company          string `json:"company"`
	CompanyDisplayed bool   `json:"companyDisplayed"`
}

type School struct {
	Name      string `json:"name"`
	Displayed bool   `json:"displayed"`
}

type Education struct {
	Level   string   `json:"level"`
	Schools []School `json:"schools"`
}

type Prompt struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"createdAt"`
}

type UsageDay struct {
	Date             string `json:"date" validate:"required,datetime=2006-01-02"`
	AppOpens         int    `json:"appOpens" validate:"gte=0"`
	SwipeLikes       int    `json:"swipeLikes" validate:"gte=0"`
	SwipePasses      int    `json:"swipePasses" validate:"gte=0"`
	SuperLikes       int    `json:"superLikes" validate:"gte=0"`
	Matches          int    `json:"matches" validate:"gte=0"`
	MessagesSent     int    `json:"messagesSent" validate:"gte=0"`
	MessagesReceived int    `json:"messagesReceived" validate:"gte=0"`
}

// Add sums the counters of other into d. Dates are not compared.
func (d *UsageDay) Add(other UsageDay) {
	d.AppOpens += other.AppOpens
	d.SwipeLikes += other.SwipeLikes
	d.SwipePasses += other.SwipePasses
	d.SuperLikes += other.SuperLikes
	d.Matches += other.Matches
	d.MessagesSent += other.MessagesSent
	d.MessagesReceived += other.MessagesReceived
}

type Match struct {
	MatchID    string    `json:"matchId"`
	OrderIndex int       `json:"orderIndex" validate:"gte=-1"`
	MatchedAt  time.Time `json:"matchedAt"`
	Unmatched  bool      `json:"unmatched"`
	Messages   []Message `json:"messages" validate:"dive"`
}

// FirstMessageAt returns the send time of the earliest message, or the zero time.
func (m Match) FirstMessageAt() time.Time {
	var first time.Time
	for _, msg := range m.Messages {
		if msg.SentAt.IsZero() {
			continue
		}
		if first.IsZero() || msg.SentAt.Before(first) {
			first = msg.SentAt
		}
	}
	return first
}

type Message struct {
	Sender  Sender    `json:"sender" validate:"oneof=user match"`
	SentAt  time.Time `json:"sentAt"`
	Content string    `json:"content"`
	Type    string    `json:"type,omitempty"`
}

type Media struct {
	Type            string `json:"type"`
	URL             string `json:"url"`
	Caption         string `json:"caption,omitempty"`
	FromSocialMedia bool   `json:"fromSocialMedia"`
}

// EmptyCollections replaces nil slices with empty ones so the JSON form always carries [].
func (p *NormalizedProfile) EmptyCollections() {
	if p.Identity.Interests == nil {
		p.Identity.Interests = []string{}
	}
	if p.Jobs == nil {
		p.Jobs = []Job{}
	}
	if p.Education.Schools == nil {
		p.Education.Schools = []School{}
	}
	if p.Prompts == nil {
		p.Prompts = []Prompt{}
	}
	if p.Usage == nil {
		p.Usage = []UsageDay{}
	}
	if p.Matches == nil {
		p.Matches = []Match{}
	}
	for i := range p.Matches {
		if p.Matches[i].Messages == nil {
			p.Matches[i].Messages = []Message{}
		}
	}
	if p.Media == nil {
		p.Media = []Media{}
	}
}

// Clone returns a deep copy of p.
func (p *NormalizedProfile) Clone() *NormalizedProfile {
	if p == nil {
		return nil
	}
	out := *p
	out.Identity.Interests = append([]string(nil), p.Identity.Interests...)
	out.Jobs = append([]Job(nil), p.Jobs...)
	out.Education.Schools = append([]School(nil), p.Education.Schools...)
	out.Prompts = append([]Prompt(nil), p.Prompts...)
	out.Usage = append([]UsageDay(nil), p.Usage...)
	out.Media = append([]Media(nil), p.Media...)
	out.Matches = make([]Match, len(p.Matches))
	for i, m := range p.Matches {
		m.Messages = append([]Message(nil), m.Messages...)
		out.Matches[i] = m
	}
	if p.Meta != nil {
		meta := *p.Meta
		out.Meta = &meta
	}
	out.EmptyCollections()
	return &out
}

// SortUsage orders usage ascending by date.
func SortUsage(usage []UsageDay) {
	sort.SliceStable(usage, func(i, j int) bool { return usage[i].Date < usage[j].Date })
}

// SortMessages orders messages ascending by send time; undated messages keep their relative order at the end.
func SortMessages(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		a, b := msgs[i].SentAt, msgs[j].SentAt
		if a.IsZero() || b.IsZero() {
			return !a.IsZero() && b.IsZero()
		}
		return a.Before(b)
	})
}

type messageKey struct {
	sender  Sender
	sentAt  int64
	content string
}

func keyOf(m Message) messageKey {
	var ts int64
	if !m.SentAt.IsZero() {
		ts = m.SentAt.UnixNano()
	}
	return messageKey{sender: m.Sender, sentAt: ts, content: m.Content}
}

// UnionMessages returns the messages of a and b deduplicated by (sender, sentAt, content), sorted by send time.
func UnionMessages(a, b []Message) []Message {
	seen := make(map[messageKey]struct{}, len(a)+len(b))
	out := make([]Message, 0, len(a)+len(b))
	for _, list := range [][]Message{a, b} {
		for _, m := range list {
			k := keyOf(m)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, m)
		}
	}
	SortMessages(out)
	return out
}
