package transcript

import (
	"encoding/json"
	"time"

	"github.com/dwizi/accessbot/internal/directory"
)

type CardKind string

const (
	CardUser      CardKind = "user"
	CardApp       CardKind = "app"
	CardAnomaly   CardKind = "anomaly"
	CardApproval  CardKind = "approval"
	CardTokenHelp CardKind = "token-help"
)

// Card is a closed union: only the card types in this package implement it.
type Card interface {
	Kind() CardKind
	sealed()
}

type UserCard struct {
	User directory.UserRecord `json:"user"`
}

type AppCard struct {
	App directory.AppRecord `json:"app"`
}

type AnomalyCard struct {
	Anomaly directory.AnomalyRecord `json:"anomaly"`
	Tier    directory.Tier          `json:"tier"`
}

// ApprovalCard is a snapshot of a request at the time the card was produced.
// Later transitions do not change it.
type ApprovalCard struct {
	RequestID   string `json:"request_id"`
	Username    string `json:"username"`
	RequestType string `json:"request_type"`
	RequestedBy string `json:"requested_by"`
	Reason      string `json:"reason"`
	Status      string `json:"status"`
}

type TokenHelpCard struct {
	Username string          `json:"username"`
	Steps    []TokenHelpStep `json:"steps"`
}

type TokenHelpStep struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func (UserCard) Kind() CardKind      { return CardUser }
func (AppCard) Kind() CardKind       { return CardApp }
func (AnomalyCard) Kind() CardKind   { return CardAnomaly }
func (ApprovalCard) Kind() CardKind  { return CardApproval }
func (TokenHelpCard) Kind() CardKind { return CardTokenHelp }

func (UserCard) sealed()      {}
func (AppCard) sealed()       {}
func (AnomalyCard) sealed()   {}
func (ApprovalCard) sealed()  {}
func (TokenHelpCard) sealed() {}

func NewAnomalyCard(record directory.AnomalyRecord) AnomalyCard {
	return AnomalyCard{Anomaly: record, Tier: record.Tier()}
}

func DefaultTokenHelp(username string) TokenHelpCard {
	return TokenHelpCard{
		Username: username,
		Steps: []TokenHelpStep{
			{Title: "Download Token Software", Detail: "Install the authentication app on your device"},
			{Title: "Register Token", Detail: "Scan QR code or enter setup key manually"},
			{Title: "Test Authentication", Detail: "Verify token generates valid codes"},
		},
	}
}

type MessageKind string

const (
	KindText MessageKind = "text"
	KindCard MessageKind = "card"
)

type Sender struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	IsBot       bool   `json:"is_bot"`
}

// Message is immutable once appended.
type Message struct {
	ID        string
	Index     int
	Sender    Sender
	Content   string
	CreatedAt time.Time
	Kind      MessageKind
	Card      Card
}

type wireMessage struct {
	ID        string          `json:"id"`
	Index     int             `json:"index"`
	Sender    Sender          `json:"sender"`
	Content   string          `json:"content"`
	CreatedAt time.Time       `json:"created_at"`
	Kind      MessageKind     `json:"kind"`
	CardKind  CardKind        `json:"card_kind,omitempty"`
	Card      json.RawMessage `json:"card,omitempty"`
}

// MarshalJSON adds the card discriminator renderers switch on.
func (m Message) MarshalJSON() ([]byte, error) {
	wire := wireMessage{
		ID:        m.ID,
		Index:     m.Index,
		Sender:    m.Sender,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
		Kind:      m.Kind,
	}
	if m.Card != nil {
		payload, err := json.Marshal(m.Card)
		if err != nil {
			return nil, err
		}
		wire.CardKind = m.Card.Kind()
		wire.Card = payload
	}
	return json.Marshal(wire)
}
