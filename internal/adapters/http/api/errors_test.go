package api

import (
	"errors"
	"testing"
)

func TestValidationErrorsWrapBadRequest(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"event missing type", eventRequest{PlayerID: "p1"}.validate()},
		{"event with both subjects", eventRequest{Type: "snapshot", PlayerID: "p1", SessionID: "s1"}.validate()},
		{"rule missing name", ruleRequest{Action: "flag"}.validate()},
		{"score missing player", scoreRequest{Score: new(float64)}.validate()},
	}
	for _, tc := range cases {
		if tc.err == nil {
			t.Errorf("%s: expected validation error", tc.name)
			continue
		}
		if !errors.Is(tc.err, ErrBadRequest) {
			t.Errorf("%s: expected ErrBadRequest, got %v", tc.name, tc.err)
		}
	}
}
