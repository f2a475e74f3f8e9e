package message

import (
	"time"

	dommsg "github.com/kailas-cloud/rendezvous/internal/domain/message"
)

// eventDTO is the pub/sub wire form of a push event.
type eventDTO struct {
	Type      string      `json:"type"`
	SessionID string      `json:"session_id"`
	At        int64       `json:"at"`
	Message   *messageDTO `json:"message,omitempty"`
}

type messageDTO struct {
	ID        string `json:"id"`
	SenderID  string `json:"sender_id"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"created_at_us"`
}

func eventToDTO(e dommsg.Event) eventDTO {
	dto := eventDTO{
		Type:      string(e.Type),
		SessionID: e.SessionID,
		At:        e.At.UnixMilli(),
	}
	if e.Message != nil {
		dto.Message = &messageDTO{
			ID:        e.Message.ID,
			SenderID:  e.Message.SenderID,
			Content:   e.Message.Content,
			CreatedAt: e.Message.CreatedAt.UnixMicro(),
		}
	}
	return dto
}

func (d eventDTO) toEvent() dommsg.Event {
	e := dommsg.Event{
		Type:      dommsg.EventType(d.Type),
		SessionID: d.SessionID,
		At:        time.UnixMilli(d.At).UTC(),
	}
	if d.Message != nil {
		e.Message = &dommsg.Message{
			ID:        d.Message.ID,
			SessionID: d.SessionID,
			SenderID:  d.Message.SenderID,
			Content:   d.Message.Content,
			CreatedAt: time.UnixMicro(d.Message.CreatedAt).UTC(),
		}
	}
	return e
}
