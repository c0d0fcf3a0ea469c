package identity

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"
)

// Event is the webhook envelope. Data is decoded once the type is known.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type EmailAddress struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

// UserData is the account payload of user.created and user.updated.
type UserData struct {
	ID                    string                 `json:"id"`
	EmailAddresses        []EmailAddress         `json:"email_addresses"`
	PrimaryEmailAddressID string                 `json:"primary_email_address_id"`
	FirstName             *string                `json:"first_name"`
	LastName              *string                `json:"last_name"`
	ImageURL              string                 `json:"image_url"`
	PublicMetadata        map[string]interface{} `json:"public_metadata"`
}

// DeletedData is the payload of user.deleted. ID may be absent.
type DeletedData struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

func ParseEvent(body []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return Event{}, fmt.Errorf("decode webhook envelope: %w", err)
	}
	return ev, nil
}

func (e Event) UserData() (UserData, error) {
	var d UserData
	if err := json.Unmarshal(e.Data, &d); err != nil {
		return UserData{}, fmt.Errorf("decode %s data: %w", e.Type, err)
	}
	return d, nil
}

func (e Event) DeletedData() (DeletedData, error) {
	var d DeletedData
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return d, nil
	}
	if err := json.Unmarshal(e.Data, &d); err != nil {
		return DeletedData{}, fmt.Errorf("decode %s data: %w", e.Type, err)
	}
	return d, nil
}

// PrimaryEmail returns the address whose id matches PrimaryEmailAddressID.
func (d UserData) PrimaryEmail() (string, bool) {
	for _, a := range d.EmailAddresses {
		if a.ID == d.PrimaryEmailAddressID && a.EmailAddress != "" {
			return a.EmailAddress, true
		}
	}
	return "", false
}

func (d UserData) DisplayName() string {
	var first, last string
	if d.FirstName != nil {
		first = *d.FirstName
	}
	if d.LastName != nil {
		last = *d.LastName
	}
	return strings.TrimSpace(first + " " + last)
}

// MetadataRole is the role the provider relays back. It is informational only.
func (d UserData) MetadataRole() string {
	role, _ := d.PublicMetadata["role"].(string)
	return role
}
