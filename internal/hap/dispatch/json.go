package dispatch

import "encoding/json"

// writeCharacteristicRequest is one entry of a PUT /characteristics
// body (spec.md §6).
type writeCharacteristicRequest struct {
	AID      uint64          `json:"aid"`
	IID      uint64          `json:"iid"`
	Value    json.RawMessage `json:"value,omitempty"`
	Ev       *bool           `json:"ev,omitempty"`
	Response *bool           `json:"r,omitempty"`
	AuthData string          `json:"authData,omitempty"`
	Remote   *bool           `json:"remote,omitempty"`
}

type writeRequestBody struct {
	Characteristics []writeCharacteristicRequest `json:"characteristics"`
	PID              *uint64                     `json:"pid,omitempty"`
}

// characteristicResult is one entry of a read or write response.
// Status is a pointer so it can be omitted entirely on an all-success
// read (SPEC_FULL §4's supplemented behavior).
type characteristicResult struct {
	AID    uint64 `json:"aid"`
	IID    uint64 `json:"iid"`
	Status *int   `json:"status,omitempty"`
	Value  any    `json:"value,omitempty"`
	Ev     *bool  `json:"ev,omitempty"`
	Type   string `json:"type,omitempty"`
	Perms  []string `json:"perms,omitempty"`
	Format string `json:"format,omitempty"`
}

type multiStatusBody struct {
	Characteristics []characteristicResult `json:"characteristics"`
}

type prepareRequestBody struct {
	TTL uint64 `json:"ttl"`
	PID uint64 `json:"pid"`
}

type statusOnlyBody struct {
	Status int `json:"status"`
}
