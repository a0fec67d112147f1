package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	errEmptyBody     = errors.New("request body is empty")
	errBodyTooLarge  = errors.New("request body too large")
	errUnknownField  = errors.New("request body contains unknown fields")
	errMalformedBody = errors.New("request body is not valid JSON")
)

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

// decodeRequest unmarshals a typed request struct, rejecting unknown fields
// so the core never sees untyped payloads.
func decodeRequest(r *http.Request, limit int64, target any) error {
	body, err := readLimitedBody(r, limit)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		if strings.Contains(err.Error(), "unknown field") {
			return errUnknownField
		}
		return errMalformedBody
	}
	if dec.More() {
		return errMalformedBody
	}
	return nil
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
