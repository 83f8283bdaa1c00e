package calls

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		name string
		from CallStatus
		to   CallStatus
		want bool
	}{
		{"initiated to ringing", CallStatusInitiated, CallStatusRinging, true},
		{"initiated to answered", CallStatusInitiated, CallStatusAnswered, true},
		{"initiated to completed", CallStatusInitiated, CallStatusCompleted, true},
		{"initiated to failed", CallStatusInitiated, CallStatusFailed, true},
		{"ringing to answered", CallStatusRinging, CallStatusAnswered, true},
		{"ringing to no-answer", CallStatusRinging, CallStatusNoAnswer, true},
		{"answered to completed", CallStatusAnswered, CallStatusCompleted, true},

		// Backward moves are silent no-ops.
		{"answered to ringing", CallStatusAnswered, CallStatusRinging, false},
		{"ringing to initiated", CallStatusRinging, CallStatusInitiated, false},
		{"same status", CallStatusRinging, CallStatusRinging, false},

		// no-answer is reachable only from ringing.
		{"initiated to no-answer", CallStatusInitiated, CallStatusNoAnswer, false},
		{"answered to no-answer", CallStatusAnswered, CallStatusNoAnswer, false},

		// Terminal states absorb everything.
		{"completed to failed", CallStatusCompleted, CallStatusFailed, false},
		{"completed to completed", CallStatusCompleted, CallStatusCompleted, false},
		{"failed to answered", CallStatusFailed, CallStatusAnswered, false},
		{"no-answer to answered", CallStatusNoAnswer, CallStatusAnswered, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := canTransition(tc.from, tc.to); got != tc.want {
				t.Fatalf("canTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
			}
		})
	}
}

func TestIsTerminal(t *testing.T) {
	for _, s := range []CallStatus{CallStatusCompleted, CallStatusNoAnswer, CallStatusFailed} {
		if !s.IsTerminal() {
			t.Fatalf("expected %s to be terminal", s)
		}
	}
	for _, s := range []CallStatus{CallStatusInitiated, CallStatusRinging, CallStatusAnswered} {
		if s.IsTerminal() {
			t.Fatalf("expected %s to be non-terminal", s)
		}
	}
}

func TestMapProviderStatus(t *testing.T) {
	cases := []struct {
		in   string
		want CallStatus
	}{
		{"initiated", CallStatusInitiated},
		{"queued", CallStatusInitiated},
		{"ringing", CallStatusRinging},
		{"answered", CallStatusAnswered},
		{"in-progress", CallStatusAnswered},
		{"completed", CallStatusCompleted},
		{"no-answer", CallStatusNoAnswer},
		{"busy", CallStatusFailed},
		{"canceled", CallStatusFailed},
		{"failed", CallStatusFailed},
	}
	for _, tc := range cases {
		got, ok := MapProviderStatus(tc.in)
		if !ok {
			t.Fatalf("expected %q to map", tc.in)
		}
		if got != tc.want {
			t.Fatalf("MapProviderStatus(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}

	if _, ok := MapProviderStatus("totally-bogus"); ok {
		t.Fatalf("expected unknown status to be rejected")
	}
}
