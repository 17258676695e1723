package host

import (
	"encoding/json"
	stderrors "errors"
	"net/url"

	"github.com/vango-dev/urlstore/internal/errors"
	"github.com/vango-dev/urlstore/pkg/location"
)

// MessageType identifies a protocol message.
type MessageType string

const (
	// TypeLocation carries the current location (server to client).
	TypeLocation MessageType = "location"

	// TypeNavigate requests a navigation (client to server).
	TypeNavigate MessageType = "navigate"

	// TypePush pushes a history entry with state (client to server).
	TypePush MessageType = "push"

	// TypeAck confirms a request (server to client).
	TypeAck MessageType = "ack"

	// TypeError rejects a request (server to client).
	TypeError MessageType = "error"
)

// Message is a JSON text frame of the host protocol.
type Message struct {
	Type    MessageType               `json:"type"`
	ID      string                    `json:"id,omitempty"`
	URL     string                    `json:"url,omitempty"`
	State   map[string]any            `json:"state,omitempty"`
	Options *location.NavigateOptions `json:"options,omitempty"`
	Error   string                    `json:"error,omitempty"`
	Code    string                    `json:"code,omitempty"`
}

// LocationMessage encodes loc.
func LocationMessage(loc location.Location) Message {
	return Message{Type: TypeLocation, URL: loc.String(), State: loc.State}
}

// Location decodes a location message.
func (m Message) Location() (location.Location, error) {
	u, err := m.parseURL()
	if err != nil {
		return location.Location{}, err
	}
	return location.Location{URL: u, State: m.State}, nil
}

func (m Message) parseURL() (*url.URL, error) {
	u, err := url.Parse(m.URL)
	if err != nil {
		return nil, errors.New(errors.CodeInvalidURL).WithDetailf("%q", m.URL).Wrap(err)
	}
	return u, nil
}

func (m Message) navigateOptions() location.NavigateOptions {
	if m.Options == nil {
		return location.NavigateOptions{}
	}
	return *m.Options
}

// ParseMessage decodes and validates a frame.
func ParseMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, errors.New(errors.CodeInvalidMessage).Wrap(err)
	}
	switch m.Type {
	case TypeLocation, TypeNavigate, TypePush:
		if m.URL == "" {
			return Message{}, errors.New(errors.CodeInvalidMessage).
				WithDetailf("%s message without url", m.Type)
		}
	case TypeAck, TypeError:
		if m.ID == "" {
			return Message{}, errors.New(errors.CodeInvalidMessage).
				WithDetailf("%s message without id", m.Type)
		}
	case "":
		return Message{}, errors.New(errors.CodeInvalidMessage).WithDetail("missing type")
	default:
		return Message{}, errors.New(errors.CodeUnknownMessage).WithDetailf("%q", m.Type)
	}
	return m, nil
}

func ackMessage(id string) Message {
	return Message{Type: TypeAck, ID: id}
}

// errorMessage reports err to the client. For coded errors the code travels
// separately and the text is the underlying cause.
func errorMessage(id string, err error) Message {
	m := Message{Type: TypeError, ID: id, Error: err.Error()}
	var coded *errors.Error
	if errors.As(err, &coded) {
		m.Code = coded.Code
		switch {
		case coded.Wrapped != nil:
			m.Error = coded.Wrapped.Error()
		case coded.Detail != "":
			m.Error = coded.Detail
		default:
			m.Error = coded.Message
		}
	}
	return m
}

// knownCauses are sentinels restored on the client side of the wire.
var knownCauses = []error{
	location.ErrBlocked,
	location.ErrCrossOrigin,
	location.ErrNoHistory,
	ErrNotConnected,
}

// remoteError rebuilds the error carried by an error message.
func remoteError(m Message) error {
	code := m.Code
	if code == "" {
		code = errors.CodeNavigateFailed
	}
	cause := stderrors.New(m.Error)
	for _, known := range knownCauses {
		if known.Error() == m.Error {
			cause = known
			break
		}
	}
	return errors.New(code).Wrap(cause)
}
