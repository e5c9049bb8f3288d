package log

import "testing"

func TestStringMethods(t *testing.T) {
	cases := []struct {
		got, want string
	}{
		{DirectionIn.String(), "IN"},
		{DirectionOut.String(), "OUT"},
		{Direction(9).String(), "UNKNOWN"},
		{LayerWire.String(), "WIRE"},
		{LayerService.String(), "SERVICE"},
		{Layer(9).String(), "UNKNOWN"},
		{CategoryMessage.String(), "MESSAGE"},
		{CategoryState.String(), "STATE"},
		{CategoryError.String(), "ERROR"},
		{Category(9).String(), "UNKNOWN"},
		{RoleDevice.String(), "DEVICE"},
		{RoleCommissioner.String(), "COMMISSIONER"},
		{Role(9).String(), "UNKNOWN"},
		{StateEntitySession.String(), "SESSION"},
		{StateEntityCommissioning.String(), "COMMISSIONING"},
		{StateEntityStore.String(), "STORE"},
		{StateEntity(9).String(), "UNKNOWN"},
	}
	for _, c := range cases {
		if c.got != c.want {
			t.Errorf("String() = %q, want %q", c.got, c.want)
		}
	}
}
