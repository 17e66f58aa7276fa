package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidPriority(t *testing.T) {
	assert.True(t, ValidPriority("normal"))
	assert.True(t, ValidPriority("important"))
	assert.True(t, ValidPriority("critical"))
	assert.False(t, ValidPriority(""))
	assert.False(t, ValidPriority("urgent"))
}

func TestValidNotificationType(t *testing.T) {
	for _, typ := range NotificationTypes {
		assert.True(t, ValidNotificationType(typ), typ)
	}
	assert.False(t, ValidNotificationType("carrier-pigeon"))
}

func TestNotificationJSONShape(t *testing.T) {
	userID := uint(7)
	n := Notification{
		ID:       "550e8400-e29b-41d4-a716-446655440000",
		UserID:   &userID,
		Title:    "Assignment due",
		Type:     "deadline",
		Priority: PriorityImportant,
	}

	data, err := json.Marshal(n)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "important", decoded["priority"])
	assert.Equal(t, float64(7), decoded["user_id"])
	assert.Equal(t, false, decoded["is_read"])
}

func TestBroadcastNotificationHasNullUserID(t *testing.T) {
	n := Notification{ID: "id", Title: "Maintenance", Priority: PriorityCritical}

	data, err := json.Marshal(n)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Nil(t, decoded["user_id"])
}

func TestUserTypeJSON(t *testing.T) {
	data, err := json.Marshal(UserTypeAdmin)
	require.NoError(t, err)
	assert.Equal(t, `"admin"`, string(data))

	var ut UserType
	require.NoError(t, json.Unmarshal([]byte(`"member"`), &ut))
	assert.Equal(t, UserTypeMember, ut)

	require.NoError(t, json.Unmarshal([]byte(`2`), &ut))
	assert.Equal(t, UserTypeAdmin, ut)
}
