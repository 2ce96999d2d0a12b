package notify

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"

	"github.com/petrijr/sitesync/pkg/api"
)

// ErrEmptyPayload is returned when decoding an empty message.
var ErrEmptyPayload = errors.New("notify: empty payload")

// EncodeEvent serializes ev with encoding/gob for transport over pub/sub.
func EncodeEvent(ev api.ChangeEvent) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(ev); err != nil {
		return nil, fmt.Errorf("notify: encode event: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeEvent is the inverse of EncodeEvent.
func DecodeEvent(data []byte) (api.ChangeEvent, error) {
	var ev api.ChangeEvent
	if len(data) == 0 {
		return ev, ErrEmptyPayload
	}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&ev); err != nil {
		return ev, fmt.Errorf("notify: decode event: %w", err)
	}
	return ev, nil
}
