package vault

import (
	"testing"
)

func TestQuota(t *testing.T) {
	t.Run("sums usage across all tracked roots", func(t *testing.T) {
		main := t.TempDir()
		drops := t.TempDir()
		writeFile(t, main, "a.bin", "12345")
		writeFile(t, drops, "b.bin", "1234567890")

		q := NewQuota(100, main, drops)
		if used := q.Used(); used != 15 {
			t.Errorf("expected 15 bytes used, got %d", used)
		}
		if avail := q.Available(); avail != 85 {
			t.Errorf("expected 85 bytes available, got %d", avail)
		}
	})

	t.Run("usage is recomputed on every call", func(t *testing.T) {
		root := t.TempDir()
		q := NewQuota(100, root)

		if q.Used() != 0 {
			t.Fatalf("expected empty root")
		}
		writeFile(t, root, "new.bin", "123")
		if q.Used() != 3 {
			t.Errorf("expected usage to reflect new file")
		}
	})

	t.Run("would exceed", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "a.bin", "1234567890")

		q := NewQuota(15, root)
		if q.WouldExceed(5) {
			t.Error("5 more bytes fit exactly, should not exceed")
		}
		if !q.WouldExceed(6) {
			t.Error("6 more bytes exceed the cap")
		}
	})

	t.Run("available never goes negative", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "big.bin", "12345678901234567890")

		q := NewQuota(10, root)
		if avail := q.Available(); avail != 0 {
			t.Errorf("expected 0 available, got %d", avail)
		}
	})
}
