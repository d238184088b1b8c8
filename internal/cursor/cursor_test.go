package cursor

import (
	"reflect"
	"testing"
)

func TestClamp(t *testing.T) {
	tests := []struct {
		n, total, want int
	}{
		{5, 10, 5},
		{0, 10, 1},
		{-3, 10, 1},
		{11, 10, 10},
		{1000, 0, 1000},
		{0, 0, 1},
		{1, 1, 1},
	}
	for _, tt := range tests {
		if got := Clamp(tt.n, tt.total); got != tt.want {
			t.Errorf("Clamp(%d, %d) = %d, want %d", tt.n, tt.total, got, tt.want)
		}
	}
}

func TestSetPageNotifiesOnlyOnChange(t *testing.T) {
	c := New(10)
	var changes []Change
	c.OnChange(func(ch Change) { changes = append(changes, ch) })

	c.SetPage(1) // already on 1
	if len(changes) != 0 {
		t.Fatalf("no-op SetPage notified: %v", changes)
	}

	c.SetPage(4)
	c.SetPage(4)
	if len(changes) != 1 {
		t.Fatalf("expected one notification, got %d", len(changes))
	}
	if changes[0] != (Change{Old: 1, New: 4, Source: SourceViewer}) {
		t.Errorf("change = %+v", changes[0])
	}
}

func TestJumpClampsAndMatchesViewerPath(t *testing.T) {
	// Scenario: total 10, current 10, a command asks for 11.
	c := New(10)
	c.Jump(10)

	var notified int
	c.OnChange(func(Change) { notified++ })

	if c.Jump(11) {
		t.Error("Jump(11) at last page should not report a change")
	}
	if c.Page() != 10 || notified != 0 {
		t.Errorf("page = %d, notified = %d; want 10, 0", c.Page(), notified)
	}

	c.Jump(0)
	if c.Page() != 1 || notified != 1 {
		t.Errorf("after Jump(0): page = %d, notified = %d; want 1, 1", c.Page(), notified)
	}
}

func TestSubscribersRunInRegistrationOrder(t *testing.T) {
	c := New(5)
	var order []string
	c.OnChange(func(Change) { order = append(order, "a") })
	unsubB := c.OnChange(func(Change) { order = append(order, "b") })
	c.OnChange(func(Change) { order = append(order, "c") })

	c.Next()
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(order, want) {
		t.Fatalf("order = %v, want %v", order, want)
	}

	unsubB()
	order = nil
	c.Next()
	if want := []string{"a", "c"}; !reflect.DeepEqual(order, want) {
		t.Errorf("after unsubscribe order = %v, want %v", order, want)
	}
}

func TestUnsubscribeDuringNotification(t *testing.T) {
	c := New(5)
	var calls int
	var unsub func()
	unsub = c.OnChange(func(Change) {
		calls++
		unsub()
	})
	c.OnChange(func(Change) { calls++ })

	c.Next()
	c.Next()
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestSetTotalReclamps(t *testing.T) {
	c := New(0)
	c.Jump(40)
	if c.Page() != 40 {
		t.Fatalf("unknown total should only bound below, page = %d", c.Page())
	}

	var got Change
	c.OnChange(func(ch Change) { got = ch })
	c.SetTotal(12)
	if c.Page() != 12 || got.Source != SourceResize {
		t.Errorf("SetTotal: page = %d, change = %+v", c.Page(), got)
	}
	if c.Last(); c.Page() != 12 {
		t.Errorf("Last() page = %d", c.Page())
	}
	if c.First(); c.Page() != 1 {
		t.Errorf("First() page = %d", c.Page())
	}
	if c.Prev() {
		t.Error("Prev() at page 1 should be a no-op")
	}
}
