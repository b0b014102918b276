package agent

import (
	"github.com/datalyst/datalyst/model"
	"github.com/shopspring/decimal"
)

// Thread holds the complete durable state of one conversation: the message
// history sent to the model, the result log shown to the user, and the
// accumulated usage. Threads never share state with each other.
type Thread struct {
	ID       string           `json:"id"`
	Messages []*model.Message `json:"messages"`
	Results  ResultLog        `json:"results"`
	Usage    model.Usage      `json:"usage"`
	Cost     decimal.Decimal  `json:"cost"`
}

func NewThread(id string) *Thread {
	return &Thread{ID: id}
}

func (t *Thread) appendMessage(msg *model.Message) {
	t.Messages = append(t.Messages, msg)
}

func (t *Thread) lastMessage() *model.Message {
	if len(t.Messages) == 0 {
		return nil
	}
	return t.Messages[len(t.Messages)-1]
}

func (t *Thread) hasSystemMessage() bool {
	for _, msg := range t.Messages {
		if msg.Source == model.MessageSourceSystem {
			return true
		}
	}
	return false
}
