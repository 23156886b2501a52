package identity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHostID_Equal(t *testing.T) {
	testCases := []struct {
		description string
		left        HostID
		right       HostID
		expect      bool
	}{
		{description: "same name", left: NewHostID("h1"), right: NewHostID("h1"), expect: true},
		{description: "different name", left: NewHostID("h1"), right: NewHostID("h2"), expect: false},
		{description: "bad vs bad", left: BadHostID(), right: BadHostID(), expect: true},
		{description: "bad vs named", left: BadHostID(), right: NewHostID("h1"), expect: false},
		{description: "empty name is bad", left: NewHostID(""), right: BadHostID(), expect: true},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			assert.Equal(t, testCase.expect, testCase.left.Equal(testCase.right))
			assert.Equal(t, testCase.expect, testCase.left == testCase.right)
		})
	}
}

func TestHostID_Text(t *testing.T) {
	data, err := json.Marshal(map[string]HostID{"host": NewHostID("node-1")})
	assert.NoError(t, err)
	assert.Equal(t, `{"host":"node-1"}`, string(data))

	var decoded map[string]HostID
	assert.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, NewHostID("node-1"), decoded["host"])
	assert.Equal(t, "bad-host", BadHostID().String())
}

func TestTaskID(t *testing.T) {
	assert.False(t, BadTaskID().IsValid())
	assert.True(t, CoordinatorTask.IsValid())
	assert.True(t, NewTaskID(2, 7).Equal(TaskID{Slot: 2, Seq: 7}))
	assert.False(t, NewTaskID(2, 7).Equal(NewTaskID(2, 8)))
	assert.False(t, NewTaskID(2, 7).Equal(NewTaskID(3, 7)))
	assert.Equal(t, NewTaskID(2, 7).Hash(), NewTaskID(2, 7).Hash())
	assert.NotEqual(t, NewTaskID(2, 7).Hash(), NewTaskID(7, 2).Hash())
	assert.Equal(t, "2:7", NewTaskID(2, 7).String())
	assert.Equal(t, "bad-task", BadTaskID().String())

	seen := map[TaskID]bool{NewTaskID(1, 1): true}
	assert.True(t, seen[NewTaskID(1, 1)])
	assert.False(t, seen[NewTaskID(1, 2)])
}
