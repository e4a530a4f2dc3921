package api

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNoData is returned when an upstream reports success but carries no rows.
var ErrNoData = errors.New("empty result set")

// StatusError is an error status reported inside an upstream JSON payload.
type StatusError struct {
	Stat string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %q", e.Stat)
}

// DecodeError is a payload that is not the expected JSON document.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

const listedStatOK = "OK"

// DecodeListed extracts data rows from a listed-market payload.
func DecodeListed(body []byte) ([][]string, error) {
	var resp ListedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &DecodeError{Err: err}
	}
	if resp.Stat != listedStatOK {
		return nil, &StatusError{Stat: resp.Stat}
	}
	if len(resp.Data) == 0 {
		return nil, ErrNoData
	}
	return decodeRows(resp.Data), nil
}

// DecodeOTC extracts data rows from the first table of an OTC payload.
func DecodeOTC(body []byte) ([][]string, error) {
	var resp OTCResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &DecodeError{Err: err}
	}
	if len(resp.Tables) == 0 {
		if resp.Stat != "" && resp.Stat != "ok" && resp.Stat != "OK" {
			return nil, &StatusError{Stat: resp.Stat}
		}
		return nil, ErrNoData
	}
	if len(resp.Tables[0].Data) == 0 {
		return nil, ErrNoData
	}
	return decodeRows(resp.Tables[0].Data), nil
}
