package activitymodel

import (
	"time"

	"github.com/goccy/go-json"
)

const (
	TypeMessage = "message"
	TypeEvent   = "event"
	TypeTyping  = "typing"

	InputHintAcceptingInput = "acceptingInput"
	InputHintExpectingInput = "expectingInput"
	InputHintIgnoringInput  = "ignoringInput"

	RoleUser = "user"
	RoleBot  = "bot"
)

type ChannelAccount struct {
	Id   string `json:"id"`
	Name string `json:"name,omitempty"`
	Role string `json:"role,omitempty"`
}

type ConversationAccount struct {
	Id string `json:"id"`
}

// Activity is the subset of a Bot Framework activity the bridge works with.
type Activity struct {
	Type         string               `json:"type"`
	Id           string               `json:"id,omitempty"`
	Timestamp    *time.Time           `json:"timestamp,omitempty"`
	ChannelId    string               `json:"channelId,omitempty"`
	From         *ChannelAccount      `json:"from,omitempty"`
	Recipient    *ChannelAccount      `json:"recipient,omitempty"`
	Conversation *ConversationAccount `json:"conversation,omitempty"`
	ReplyToId    string               `json:"replyToId,omitempty"`
	Text         string               `json:"text,omitempty"`
	Speak        string               `json:"speak,omitempty"`
	InputHint    string               `json:"inputHint,omitempty"`
	Locale       string               `json:"locale,omitempty"`
	ChannelData  json.RawMessage      `json:"channelData,omitempty"`

	// SpeechSynthesisAudio is the PCM the service synthesized for Speak.
	// It travels beside the payload, never inside it.
	SpeechSynthesisAudio []byte `json:"-"`
}

// HasSpokenContent reports whether the activity carries anything to be heard.
func (a *Activity) HasSpokenContent() bool {
	if a == nil {
		return false
	}
	return a.Speak != "" || len(a.SpeechSynthesisAudio) > 0
}

func (a *Activity) Marshal() ([]byte, error) {
	return json.Marshal(a)
}

func Unmarshal(data []byte) (*Activity, error) {
	a := new(Activity)
	if err := json.Unmarshal(data, a); err != nil {
		return nil, err
	}
	return a, nil
}
