package ids

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDConstructors_PrefixAndUniqueness(t *testing.T) {
	tests := []struct {
		name   string
		fn     func() string
		prefix string
	}{
		{"New", New, ""},
		{"NewConnectionID", NewConnectionID, "conn_"},
		{"NewSessionID", NewSessionID, "sess_"},
		{"NewHandID", NewHandID, "hand_"},
		{"NewEventID", NewEventID, "evt_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := tt.fn()
			b := tt.fn()
			assert.NotEqual(t, a, b, "two calls must not collide")
			assert.True(t, strings.HasPrefix(a, tt.prefix))
		})
	}
}
