package server

import (
	"encoding/json"

	apperrors "github.com/veroide/mergehost/internal/errors"
)

// decodePayload re-reads a raw request for its typed payload.
func decodePayload[T any](data []byte) (T, error) {
	var req struct {
		Payload T `json:"payload"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return req.Payload, apperrors.InvalidMessage("malformed payload: " + err.Error())
	}
	return req.Payload, nil
}

// required fails with server.invalid_message naming the first empty field.
// Arguments alternate name, value.
func required(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			return apperrors.InvalidMessage(pairs[i] + " is required")
		}
	}
	return nil
}
