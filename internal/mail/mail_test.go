package mail

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "mail.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadRegistry(t *testing.T) {
	p := writeTemp(t, `
templates:
  - id: thanks
    sender: "{{name}}"
    subject: Thank you
    body: "Dear shopkeeper, {{name}} is grateful."
  - id: threat
    subject: Pay up
    body: We know where you work.
`)
	reg, err := LoadRegistry(p)
	if err != nil {
		t.Fatal(err)
	}
	if ids := reg.IDs(); len(ids) != 2 || ids[0] != "thanks" || ids[1] != "threat" {
		t.Fatalf("ids = %v", ids)
	}

	empty, err := LoadRegistry(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil || len(empty.IDs()) != 0 {
		t.Fatalf("missing file should give an empty registry, got %v", err)
	}

	if _, err := LoadRegistry(writeTemp(t, "templates:\n  - subject: no id\n")); err == nil {
		t.Fatal("expected error for template without id")
	}
}

func TestQueueDelivery(t *testing.T) {
	reg := NewRegistry(Template{ID: "thanks", Sender: "{{name}}", Body: "From {{name}}"})
	var q Queue
	q.Schedule("thanks", 2, 1, map[string]string{"name": "Ada"})
	q.Schedule("ghost", 0, 1, nil)
	q.Schedule("thanks", 5, 1, nil)

	got := q.Deliver(1, reg)
	if len(got) != 1 || !got[0].Missing || got[0].TemplateID != "ghost" {
		t.Fatalf("day 1 = %+v", got)
	}
	if got := q.Deliver(2, reg); len(got) != 0 {
		t.Fatalf("day 2 delivered %d", len(got))
	}
	got = q.Deliver(3, reg)
	if len(got) != 1 || got[0].Sender != "Ada" || got[0].Body != "From Ada" {
		t.Fatalf("day 3 = %+v", got)
	}
	if len(q.Pending) != 1 || q.Pending[0].DeliverDay != 6 {
		t.Fatalf("pending = %+v", q.Pending)
	}
	if q.Unread() != 2 {
		t.Fatalf("unread = %d", q.Unread())
	}
}
