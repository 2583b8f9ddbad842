package protocol

import "encoding/json"

// ElicitAction is the user's decision on an elicitation request
type ElicitAction string

const (
	ElicitAccept  ElicitAction = "accept"
	ElicitDecline ElicitAction = "decline"
	ElicitCancel  ElicitAction = "cancel"
)

// Valid reports whether a is one of the three protocol actions
func (a ElicitAction) Valid() bool {
	switch a {
	case ElicitAccept, ElicitDecline, ElicitCancel:
		return true
	}
	return false
}

// ElicitRequestParams is the payload of elicitation/create. RequestedSchema
// is a flat object schema whose properties are primitives.
type ElicitRequestParams struct {
	Message         string          `json:"message"`
	RequestedSchema json.RawMessage `json:"requestedSchema"`
}

// ElicitResult is the client's reply to elicitation/create
type ElicitResult struct {
	Action  ElicitAction           `json:"action"`
	Content map[string]interface{} `json:"content,omitempty"`
}
