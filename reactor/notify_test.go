package reactor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotifyFlags_String(t *testing.T) {
	for _, tc := range []struct {
		flags NotifyFlags
		want  string
	}{
		{NotifyNone, "None"},
		{NotifyRead, "Read"},
		{NotifyRead | NotifyWrite, "Read|Write"},
		{NotifySocket, "Read|Write|Accept|Close"},
		{NotifyAlways | NotifyTimer, "Timer|Always"},
		{NotifyRead | 1<<20, "Read|0x100000"},
	} {
		assert.Equal(t, tc.want, tc.flags.String())
	}
}

func TestNotifyFlags_Category(t *testing.T) {
	assert.Equal(t, CategorySocket, NotifyRead.Category())
	assert.Equal(t, CategorySocket, (NotifyAccept | NotifyClose).Category())
	assert.Equal(t, CategoryTimer, (NotifyTimer | NotifyRead).Category())
	assert.Equal(t, CategorySignal, NotifySignal.Category())
	assert.Equal(t, CategoryMessage, NotifyMessage.Category())
	assert.Equal(t, CategoryAlways, (NotifyAlways | NotifyTimer).Category())
}

func TestNotifyFlags_interest(t *testing.T) {
	assert.Equal(t, NotifyRead, NotifyAccept.interest())
	assert.Equal(t, NotifyRead, NotifyClose.interest())
	assert.Equal(t, NotifyWrite, NotifyWrite.interest())
	assert.Equal(t, NotifyRead|NotifyWrite, NotifySocket.interest())
	assert.Equal(t, NotifyRead, NotifyTimer.interest())
	assert.Equal(t, NotifyNone, NotifyAlways.interest())
}

func TestCategory_translate(t *testing.T) {
	for _, tc := range []struct {
		name      string
		category  Category
		requested NotifyFlags
		raw       NotifyFlags
		want      NotifyFlags
	}{
		{"read", CategorySocket, NotifyRead, NotifyRead, NotifyRead},
		{"write not requested", CategorySocket, NotifyRead, NotifyWrite, NotifyNone},
		{"both", CategorySocket, NotifyRead | NotifyWrite, NotifyRead | NotifyWrite, NotifyRead | NotifyWrite},
		{"accept", CategorySocket, NotifyAccept, NotifyRead, NotifyAccept},
		{"hangup", CategorySocket, NotifyRead, NotifyClose, NotifyRead | NotifyClose},
		{"hangup write only", CategorySocket, NotifyWrite, NotifyClose, NotifyClose},
		{"timer", CategoryTimer, NotifyTimer, NotifyRead, NotifyTimer},
		{"signal", CategorySignal, NotifySignal, NotifyRead, NotifySignal},
		{"message", CategoryMessage, NotifyMessage, NotifyRead, NotifyMessage},
		{"message closed", CategoryMessage, NotifyMessage, NotifyClose, NotifyMessage | NotifyClose},
		{"always", CategoryAlways, NotifyAlways, NotifyNone, NotifyAlways},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.category.translate(tc.requested, tc.raw))
		})
	}
}

func TestRegistrationID(t *testing.T) {
	id := makeRegistrationID(7, 3)
	assert.Equal(t, uint32(7), id.generation())
	assert.Equal(t, uint32(3), id.slot())
	assert.NotEqual(t, InvalidRegistration, makeRegistrationID(1, 0))
}
