package domain

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
)

// FieldID identifies a custom field definition.
type FieldID string

// UnmarshalJSON accepts a JSON number or string.
func (id *FieldID) UnmarshalJSON(data []byte) error {
	s, err := decodeScalar(data)
	if err != nil {
		return err
	}
	*id = FieldID(s)
	return nil
}

// CustomField is a field definition from the included side-object.
type CustomField struct {
	ID   FieldID `json:"id"`
	Name string  `json:"name"`
}

// CustomFieldAssignment attaches a value of one custom field to one task.
type CustomFieldAssignment struct {
	TaskID  TaskID
	FieldID FieldID
	Value   string
}

// UnmarshalJSON reads the source API shape, where values may be strings or numbers.
func (a *CustomFieldAssignment) UnmarshalJSON(data []byte) error {
	var raw struct {
		TaskID  TaskID          `json:"taskId"`
		FieldID FieldID         `json:"customfieldId"`
		Value   json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	value, err := decodeScalar(raw.Value)
	if err != nil {
		return err
	}
	*a = CustomFieldAssignment{TaskID: raw.TaskID, FieldID: raw.FieldID, Value: value}
	return nil
}

// Assignments is an ordered list of custom field assignments.
//
// The source API sends them as an object keyed by assignment id. Decoding orders
// such objects by ascending numeric key, then non-numeric keys lexically, so that
// first-match lookups are reproducible. Arrays keep document order.
type Assignments []CustomFieldAssignment

// UnmarshalJSON accepts an array or an id-keyed object.
func (as *Assignments) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*as = nil
		return nil
	}
	if data[0] == '[' {
		var list []CustomFieldAssignment
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*as = list
		return nil
	}

	var byKey map[string]CustomFieldAssignment
	if err := json.Unmarshal(data, &byKey); err != nil {
		return err
	}
	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return assignmentKeyLess(keys[i], keys[j]) })

	list := make([]CustomFieldAssignment, 0, len(keys))
	for _, k := range keys {
		list = append(list, byKey[k])
	}
	*as = list
	return nil
}

func assignmentKeyLess(a, b string) bool {
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		return na < nb
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return a < b
	}
}

// FieldValue is an assignment with its field name resolved. Name is empty when the
// field id has no entry in the dictionary.
type FieldValue struct {
	FieldID FieldID
	Name    string
	Value   string
}

// Included is the side-object returned next to a task list.
type Included struct {
	CustomFields     map[FieldID]CustomField `json:"customfields"`
	CustomFieldTasks Assignments             `json:"customfieldTasks"`
}

// TaskPage is one task source response.
type TaskPage struct {
	Tasks    []Task   `json:"tasks"`
	Included Included `json:"included"`
}
