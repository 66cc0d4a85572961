package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"ender/domain"
)

const streamBuffer = 16

// Stream relays published notifications to server-sent event clients, one
// stream per topic. It is meant to be added next to the bus publishers.
type Stream struct {
	mu     sync.Mutex
	subs   map[string]map[chan []byte]struct{}
	closed bool
}

func NewStream() *Stream {
	return &Stream{subs: map[string]map[chan []byte]struct{}{}}
}

func (s *Stream) subscribe(topic string) chan []byte {
	ch := make(chan []byte, streamBuffer)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch
	}
	if s.subs[topic] == nil {
		s.subs[topic] = map[chan []byte]struct{}{}
	}
	s.subs[topic][ch] = struct{}{}
	return ch
}

func (s *Stream) unsubscribe(topic string, ch chan []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[topic][ch]; ok {
		delete(s.subs[topic], ch)
		close(ch)
	}
}

func (s *Stream) subscribers(topic string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs[topic])
}

// Publish hands the payload to every client of the topic. Clients that fall
// behind miss messages instead of stalling block processing.
func (s *Stream) Publish(ctx context.Context, n domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs[n.Topic] {
		select {
		case ch <- n.Payload:
		default:
			log.WithFields(log.Fields{"topic": n.Topic, "key": n.Key}).Warn("stream client too slow, message dropped")
		}
	}
	return nil
}

// Close ends every open stream.
func (s *Stream) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for topic, chans := range s.subs {
		for ch := range chans {
			close(ch)
		}
		delete(s.subs, topic)
	}
	s.closed = true
	return nil
}

// RegisterStream exposes s at /v1/stream/:topic.
func RegisterStream(e *echo.Echo, s *Stream) {
	e.GET("/v1/stream/:topic", streamTopic(s))
}

func streamTopic(s *Stream) echo.HandlerFunc {
	return func(c echo.Context) error {
		topic := c.Param("topic")
		c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
		c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
		c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
		c.Response().Header().Set("X-Accel-Buffering", "no")
		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}
		c.Response().WriteHeader(http.StatusOK)
		flusher.Flush()

		ctx := c.Request().Context()
		ch := s.subscribe(topic)
		defer s.unsubscribe(topic, ch)
		for {
			select {
			case <-ctx.Done():
				return nil
			case data, ok := <-ch:
				if !ok {
					return nil
				}
				if err := writeEvent(c.Response(), data); err != nil {
					log.WithError(err).WithField("topic", topic).Debug("stream client gone")
					return nil
				}
				flusher.Flush()
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, data []byte) error {
	if _, err := w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err := w.Write([]byte("\n\n"))
	return err
}
