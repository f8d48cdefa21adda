package strtable

import "testing"

func TestInternDedup(t *testing.T) {
	tab := New()

	h1 := tab.Intern("foo")
	h2 := tab.Intern("bar")
	h3 := tab.Intern("foo")

	if h1 != h3 {
		t.Fatalf("expected repeated intern of %q to return the same handle, got %v and %v", "foo", h1, h3)
	}
	if h1 == h2 {
		t.Fatalf("expected distinct strings to get distinct handles")
	}
	if tab.Value(h1) != "foo" {
		t.Fatalf("expected Value(h1) == %q, got %q", "foo", tab.Value(h1))
	}
	if tab.Value(h2) != "bar" {
		t.Fatalf("expected Value(h2) == %q, got %q", "bar", tab.Value(h2))
	}
	if tab.Len() != 2 {
		t.Fatalf("expected 2 distinct strings, got %d", tab.Len())
	}
}

func TestInvalidHandle(t *testing.T) {
	if Invalid != 0 {
		t.Fatalf("expected Invalid handle to be zero")
	}
	tab := New()
	h := tab.Intern("x")
	if h == Invalid {
		t.Fatalf("expected a freshly interned string to not receive the Invalid handle")
	}
}

func TestLookupMissing(t *testing.T) {
	tab := New()
	tab.Intern("present")

	if _, ok := tab.Lookup("absent"); ok {
		t.Fatalf("expected Lookup of an uninterned string to fail")
	}
	h, ok := tab.Lookup("present")
	if !ok {
		t.Fatalf("expected Lookup of an interned string to succeed")
	}
	if tab.Value(h) != "present" {
		t.Fatalf("expected Value(h) == %q, got %q", "present", tab.Value(h))
	}
}

func TestByteSize(t *testing.T) {
	tab := New()
	tab.Intern("abc")
	tab.Intern("de")
	tab.Intern("abc") // dedup, should not add bytes again

	if got, want := tab.ByteSize(), 5; got != want {
		t.Fatalf("expected ByteSize() == %d, got %d", want, got)
	}
}
