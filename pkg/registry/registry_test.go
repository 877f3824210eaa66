package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterOnce(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterService(&ServiceInstance{ServiceName: "frd:u", MaxSessions: 8}))

	err := r.RegisterService(&ServiceInstance{ServiceName: "frd:u", MaxSessions: 8})
	assert.ErrorIs(t, err, ErrAlreadyRegistered)

	inst, ok := r.Lookup("frd:u")
	require.True(t, ok)
	assert.Equal(t, 8, inst.MaxSessions)

	_, ok = r.Lookup("frd:x")
	assert.False(t, ok)
}

func TestRegisterRejectsInvalid(t *testing.T) {
	r := New()
	assert.Error(t, r.RegisterService(&ServiceInstance{ServiceName: "frd:n"}))
	assert.Error(t, r.RegisterService(&ServiceInstance{MaxSessions: 1}))
}

func TestSubscribeAndDeregister(t *testing.T) {
	r := New()
	var events []string
	r.Subscribe(func(inst *ServiceInstance, registered bool) {
		if registered {
			events = append(events, "+"+inst.ServiceName)
		} else {
			events = append(events, "-"+inst.ServiceName)
		}
	})

	require.NoError(t, r.RegisterService(&ServiceInstance{ServiceName: "frd:u", MaxSessions: 8}))
	require.NoError(t, r.RegisterService(&ServiceInstance{ServiceName: "frd:a", MaxSessions: 8}))
	assert.Equal(t, []string{"frd:a", "frd:u"}, r.Services())

	assert.ErrorIs(t, r.DeregisterService("frd:n"), ErrNotRegistered)
	r.DeregisterAll()

	assert.Empty(t, r.Services())
	assert.Equal(t, []string{"+frd:u", "+frd:a", "-frd:a", "-frd:u"}, events)
}
