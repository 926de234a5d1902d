package enrich

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bugdigest/bug-digest/internal/domain"
)

func testDictionary() map[domain.FieldID]domain.CustomField {
	return map[domain.FieldID]domain.CustomField{
		"1": {ID: "1", Name: "Impact"},
		"2": {ID: "2", Name: "Product Area"},
	}
}

func TestGroupFieldsByTask_When_AssignmentsSpanTasks(t *testing.T) {
	t.Parallel()

	assignments := domain.Assignments{
		{TaskID: "10", FieldID: "1", Value: "Level 2"},
		{TaskID: "20", FieldID: "1", Value: "Level 4"},
		{TaskID: "10", FieldID: "2", Value: "Billing"},
		{TaskID: "30", FieldID: "2", Value: "Reports"},
		{TaskID: "20", FieldID: "2", Value: "API"},
	}

	grouped := GroupFieldsByTask(testDictionary(), assignments)

	require.Len(t, grouped, 3)
	assert.Len(t, grouped["10"], 2)
	assert.Len(t, grouped["20"], 2)
	assert.Len(t, grouped["30"], 1)
	assert.Equal(t, domain.FieldValue{FieldID: "1", Name: "Impact", Value: "Level 2"}, grouped["10"][0])
	assert.Equal(t, domain.FieldValue{FieldID: "2", Name: "Product Area", Value: "Billing"}, grouped["10"][1])
}

func TestGroupFieldsByTask_When_InputsMissing(t *testing.T) {
	t.Parallel()

	assignments := domain.Assignments{{TaskID: "10", FieldID: "1", Value: "Level 2"}}

	assert.Empty(t, GroupFieldsByTask(nil, assignments))
	assert.Empty(t, GroupFieldsByTask(testDictionary(), nil))
	assert.Empty(t, GroupFieldsByTask(map[domain.FieldID]domain.CustomField{}, domain.Assignments{}))
}

func TestGroupFieldsByTask_When_FieldNotInDictionary(t *testing.T) {
	t.Parallel()

	grouped := GroupFieldsByTask(testDictionary(), domain.Assignments{{TaskID: "10", FieldID: "99", Value: "x"}})

	require.Len(t, grouped["10"], 1)
	assert.Empty(t, grouped["10"][0].Name)
	assert.Equal(t, "x", grouped["10"][0].Value)

	_, ok := FieldValueByName(grouped["10"], FieldImpact)
	assert.False(t, ok)
}

func TestFieldValueByName_When_CaseDiffers(t *testing.T) {
	t.Parallel()

	values := []domain.FieldValue{
		{FieldID: "2", Name: "PRODUCT AREA", Value: "Billing"},
		{FieldID: "1", Name: "impact", Value: "Level 1"},
	}

	impact, ok := FieldValueByName(values, FieldImpact)
	assert.True(t, ok)
	assert.Equal(t, "Level 1", impact)

	area, ok := FieldValueByName(values, FieldProductArea)
	assert.True(t, ok)
	assert.Equal(t, "Billing", area)
}

// Duplicate-named fields: the first assignment in ascending assignment-id order wins,
// regardless of the order keys appear in the payload.
func TestGroupFieldsByTask_When_DuplicateNamesFromObjectPayload(t *testing.T) {
	t.Parallel()

	payload := `{
		"customfields": {"1": {"id": 1, "name": "Impact"}, "3": {"id": 3, "name": "impact"}},
		"customfieldTasks": {
			"205": {"taskId": 10, "customfieldId": 3, "value": "Level 4"},
			"17":  {"taskId": 10, "customfieldId": 1, "value": "Level 0"},
			"9":   {"taskId": 11, "customfieldId": 1, "value": 2}
		}
	}`

	var included domain.Included
	require.NoError(t, json.Unmarshal([]byte(payload), &included))

	for i := 0; i < 20; i++ {
		grouped := GroupFieldsByTask(included.CustomFields, included.CustomFieldTasks)
		impact, ok := FieldValueByName(grouped["10"], FieldImpact)
		require.True(t, ok)
		assert.Equal(t, "Level 0", impact)
	}

	grouped := GroupFieldsByTask(included.CustomFields, included.CustomFieldTasks)
	assert.Equal(t, "2", grouped["11"][0].Value)
}

func TestGroupFieldsByTask_When_DuplicateNamesFromArrayPayload(t *testing.T) {
	t.Parallel()

	payload := `{
		"customfields": {"1": {"id": 1, "name": "Impact"}, "3": {"id": 3, "name": "Impact"}},
		"customfieldTasks": [
			{"taskId": 10, "customfieldId": 3, "value": "Level 4"},
			{"taskId": 10, "customfieldId": 1, "value": "Level 0"}
		]
	}`

	var included domain.Included
	require.NoError(t, json.Unmarshal([]byte(payload), &included))

	grouped := GroupFieldsByTask(included.CustomFields, included.CustomFieldTasks)
	impact, ok := FieldValueByName(grouped["10"], FieldImpact)
	require.True(t, ok)
	assert.Equal(t, "Level 4", impact)
}
