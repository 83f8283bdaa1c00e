package sessions

import "testing"

type fakeConn struct{ id string }

func (f *fakeConn) Send(v any) error { return nil }

func TestRegisterLastWriteWins(t *testing.T) {
	r := NewRegistry()
	first := &fakeConn{id: "first"}
	second := &fakeConn{id: "second"}

	r.Register("user-1", first)
	r.Register("user-1", second)

	got, ok := r.Lookup("user-1")
	if !ok || got != Conn(second) {
		t.Fatalf("expected the newest connection to own the entry")
	}
}

func TestUnregisterOnlyRemovesOwner(t *testing.T) {
	r := NewRegistry()
	first := &fakeConn{id: "first"}
	second := &fakeConn{id: "second"}

	r.Register("user-1", first)
	r.Register("user-1", second)

	// The replaced connection's teardown must not evict its successor.
	r.Unregister("user-1", first)
	if _, ok := r.Lookup("user-1"); !ok {
		t.Fatalf("stale teardown evicted the live connection")
	}

	r.Unregister("user-1", second)
	if _, ok := r.Lookup("user-1"); ok {
		t.Fatalf("expected entry removed")
	}
}

func TestLookupMissIsNormal(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Lookup("nobody"); ok {
		t.Fatalf("expected miss")
	}
}

func TestCallInitiatorBinding(t *testing.T) {
	r := NewRegistry()
	c := &fakeConn{id: "initiator"}

	r.BindCallInitiator("call-1", c)
	got, ok := r.ResolveCallInitiator("call-1")
	if !ok || got != Conn(c) {
		t.Fatalf("expected bound initiator")
	}

	r.ReleaseCallInitiator("call-1")
	if _, ok := r.ResolveCallInitiator("call-1"); ok {
		t.Fatalf("expected binding released")
	}

	// Empty ids are ignored.
	r.BindCallInitiator("", c)
	if _, ok := r.ResolveCallInitiator(""); ok {
		t.Fatalf("empty call id must not bind")
	}
}
