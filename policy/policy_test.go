package policy

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_Check(t *testing.T) {
	testCases := []struct {
		description string
		policy      *Policy
		function    string
		expectErr   bool
	}{
		{description: "nil policy", function: "system/exec.execute"},
		{description: "auto with empty lists", policy: &Policy{Mode: ModeAuto}, function: "printer.print"},
		{description: "blocked", policy: &Policy{BlockList: []string{"System/Exec.Execute"}}, function: "system/exec.execute", expectErr: true},
		{description: "blocked service wildcard", policy: &Policy{BlockList: []string{"system/exec.*"}}, function: "system/exec.execute", expectErr: true},
		{description: "not on allow list", policy: &Policy{AllowList: []string{"printer.print"}}, function: "nop.nop", expectErr: true},
		{description: "on allow list", policy: &Policy{AllowList: []string{"printer.*"}}, function: "printer.print"},
		{description: "deny mode", policy: &Policy{Mode: ModeDeny}, function: "nop.nop", expectErr: true},
		{description: "ask without func", policy: &Policy{Mode: ModeAsk}, function: "nop.nop", expectErr: true},
		{description: "ask approves", policy: &Policy{Mode: ModeAsk, Ask: func(ctx context.Context, function string, args json.RawMessage, p *Policy) bool {
			return function == "nop.nop"
		}}, function: "nop.nop"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			err := testCase.policy.Check(context.Background(), testCase.function, nil)
			if testCase.expectErr {
				assert.ErrorIs(t, err, ErrDenied)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestConfig(t *testing.T) {
	assert.Nil(t, FromConfig(nil))
	config := &Config{Mode: ModeDeny, AllowList: []string{"nop.*"}}
	assert.NoError(t, config.Validate())
	p := FromConfig(config)
	assert.Equal(t, ModeDeny, p.Mode)
	assert.Equal(t, []string{"nop.*"}, p.AllowList)
	assert.Error(t, (&Config{Mode: "sometimes"}).Validate())
}
