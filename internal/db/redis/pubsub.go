package redis

import (
	"context"
	"errors"
	"sync"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/rendezvous/internal/db"
)

// Publish sends payload to every current subscriber of channel.
func (s *Store) Publish(ctx context.Context, channel string, payload []byte) error {
	cmd := s.b().Publish().Channel(channel).Message(string(payload)).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpPublish, Err: err}
	}
	return nil
}

// Subscribe blocks until ctx is done, delivering each channel message to fn.
// ready, when not nil, is called once after the server confirms the subscription;
// messages published before that are not delivered.
// The subscription holds a dedicated connection; fn runs on its reader and must not block.
func (s *Store) Subscribe(ctx context.Context, channel string, ready func(), fn func(payload []byte)) error {
	conn, release := s.client.Dedicate()
	defer release()

	var once sync.Once
	wait := conn.SetPubSubHooks(rueidis.PubSubHooks{
		OnMessage: func(m rueidis.PubSubMessage) {
			fn([]byte(m.Message))
		},
		OnSubscription: func(sub rueidis.PubSubSubscription) {
			if ready != nil && sub.Kind == "subscribe" && sub.Channel == channel {
				once.Do(ready)
			}
		},
	})

	if err := conn.Do(ctx, s.b().Subscribe().Channel(channel).Build()).Error(); err != nil {
		if isCanceled(err) {
			return nil
		}
		return &db.Error{Op: db.OpSubscribe, Err: err}
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-wait:
		if err == nil || isCanceled(err) {
			return nil
		}
		return &db.Error{Op: db.OpSubscribe, Err: err}
	}
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
