package publisher

import (
	"github.com/nats-io/nats.go"
)

// NATSPublisher publishes outcomes on a NATS subject. The key becomes the
// last subject token, so subscribers can filter on subject.>.
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
}

// NewNATSPublisher connects to url
func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url, nats.Name("bidsniper"))
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{nc: nc, subject: subject}, nil
}

// Subject returns the subject for key
func (p *NATSPublisher) Subject(key string) string {
	if key == "" {
		return p.subject
	}
	return p.subject + "." + key
}

func (p *NATSPublisher) Publish(key string, message []byte) error {
	return p.nc.Publish(p.Subject(key), message)
}

// TrimStreams has nothing to trim; core NATS keeps no history
func (p *NATSPublisher) TrimStreams() error {
	return nil
}

// Close flushes pending messages and closes the connection
func (p *NATSPublisher) Close() error {
	err := p.nc.Flush()
	p.nc.Close()
	return err
}
