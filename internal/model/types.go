package model

import (
	"encoding/json"
	"time"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Values for message metadata generated_by.
const (
	GeneratedByMock     = "mock"
	GeneratedByExternal = "external"
)

// Profile is a registered demo account.
type Profile struct {
	ID        string      `json:"id"`
	Name      string      `json:"name,omitempty"`
	Email     string      `json:"email,omitempty"`
	Phone     string      `json:"phone,omitempty"`
	Meta      ProfileMeta `json:"meta"`
	CreatedAt time.Time   `json:"createdAt"`
}

// ProfileMeta carries the recognized profile metadata keys plus an
// extension map for unknown keys, so records written by other clients
// round-trip through storage unchanged.
type ProfileMeta struct {
	Bio              string
	AllowTechInfo    bool
	SensitiveDataAck bool
	Extra            map[string]interface{}
}

// Message is one conversation turn's text attributed to user or assistant.
type Message struct {
	ID       string          `json:"id"`
	UserID   string          `json:"userId"`
	Role     string          `json:"role"`
	Body     string          `json:"message"`
	Metadata MessageMetadata `json:"metadata"`
	TS       time.Time       `json:"ts"`
}

// TechInfo is the best-effort technical-context snapshot captured with
// a user message. All fields may be absent.
type TechInfo struct {
	IP string `json:"ip,omitempty"`
}

// MessageMetadata carries the recognized message metadata keys plus an
// extension map, mirroring ProfileMeta.
type MessageMetadata struct {
	Tech        *TechInfo
	GeneratedBy string
	Extra       map[string]interface{}
}

// ListMessagesRequest captures filters used when listing messages.
type ListMessagesRequest struct {
	UserID string
	Limit  int
}

func (m ProfileMeta) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(m.Extra)+3)
	for k, v := range m.Extra {
		out[k] = v
	}
	if m.Bio != "" {
		out["bio"] = m.Bio
	}
	out["allow_tech_info"] = m.AllowTechInfo
	out["sensitive_data_ack"] = m.SensitiveDataAck
	return json.Marshal(out)
}

func (m *ProfileMeta) UnmarshalJSON(data []byte) error {
	raw := map[string]interface{}{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["bio"].(string); ok {
		m.Bio = v
	}
	if v, ok := raw["allow_tech_info"].(bool); ok {
		m.AllowTechInfo = v
	}
	if v, ok := raw["sensitive_data_ack"].(bool); ok {
		m.SensitiveDataAck = v
	}
	delete(raw, "bio")
	delete(raw, "allow_tech_info")
	delete(raw, "sensitive_data_ack")
	if len(raw) > 0 {
		m.Extra = raw
	}
	return nil
}

func (m MessageMetadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(m.Extra)+2)
	for k, v := range m.Extra {
		out[k] = v
	}
	if m.Tech != nil {
		out["tech"] = m.Tech
	}
	if m.GeneratedBy != "" {
		out["generated_by"] = m.GeneratedBy
	}
	return json.Marshal(out)
}

func (m *MessageMetadata) UnmarshalJSON(data []byte) error {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["tech"]; ok {
		var ti TechInfo
		if err := json.Unmarshal(v, &ti); err != nil {
			return err
		}
		m.Tech = &ti
	}
	if v, ok := raw["generated_by"]; ok {
		if err := json.Unmarshal(v, &m.GeneratedBy); err != nil {
			return err
		}
	}
	delete(raw, "tech")
	delete(raw, "generated_by")
	if len(raw) > 0 {
		m.Extra = make(map[string]interface{}, len(raw))
		for k, v := range raw {
			var val interface{}
			if err := json.Unmarshal(v, &val); err != nil {
				return err
			}
			m.Extra[k] = val
		}
	}
	return nil
}
