package provider

import (
	"context"
	"testing"

	"github.com/asoclub/notify-engine/internal/domain"
)

type stubAdapter struct {
	name string
}

func (s *stubAdapter) Name() string { return s.name }

func (s *stubAdapter) Send(_ context.Context, _ domain.Payload) (*SendReceipt, error) {
	return &SendReceipt{MessageID: s.name + "-msg"}, nil
}

func TestRegistryNextFollowsRegistrationOrder(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	for _, name := range []string{"callmebot", "meta", "twilio"} {
		err := registry.Register(domain.ChannelWhatsApp, Entry{
			Name:       name,
			Adapter:    &stubAdapter{name: name},
			Configured: true,
			Available:  true,
		})
		if err != nil {
			t.Fatalf("Register(%s) error = %v", name, err)
		}
	}

	excluded := map[string]struct{}{}

	first, ok := registry.Next(domain.ChannelWhatsApp, excluded)
	if !ok || first.Name != "callmebot" {
		t.Fatalf("first = %v/%v, want callmebot", first.Name, ok)
	}

	excluded["callmebot"] = struct{}{}
	second, ok := registry.Next(domain.ChannelWhatsApp, excluded)
	if !ok || second.Name != "meta" {
		t.Fatalf("second = %v/%v, want meta", second.Name, ok)
	}

	excluded["meta"] = struct{}{}
	excluded["twilio"] = struct{}{}
	if _, ok := registry.Next(domain.ChannelWhatsApp, excluded); ok {
		t.Fatal("expected exhaustion after excluding all providers")
	}
}

func TestRegistrySkipsUnconfiguredAndUnavailable(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	mustRegister := func(entry Entry) {
		t.Helper()
		if err := registry.Register(domain.ChannelWhatsApp, entry); err != nil {
			t.Fatalf("Register(%s) error = %v", entry.Name, err)
		}
	}

	mustRegister(Entry{Name: "callmebot", Configured: false, Available: true})
	mustRegister(Entry{Name: "meta", Adapter: &stubAdapter{name: "meta"}, Configured: true, Available: false})
	mustRegister(Entry{Name: "twilio", Adapter: &stubAdapter{name: "twilio"}, Configured: true, Available: true})

	entry, ok := registry.Next(domain.ChannelWhatsApp, nil)
	if !ok || entry.Name != "twilio" {
		t.Fatalf("Next() = %v/%v, want twilio", entry.Name, ok)
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	entry := Entry{Name: "meta", Adapter: &stubAdapter{name: "meta"}, Configured: true, Available: true}

	if err := registry.Register(domain.ChannelWhatsApp, entry); err != nil {
		t.Fatalf("first Register error = %v", err)
	}
	if err := registry.Register(domain.ChannelWhatsApp, entry); err == nil {
		t.Fatal("duplicate Register should fail")
	}
	// The same vendor on another channel is fine.
	if err := registry.Register(domain.ChannelSMS, entry); err != nil {
		t.Fatalf("Register on second channel error = %v", err)
	}
}

func TestRegistrySnapshot(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	mustRegister := func(entry Entry) {
		t.Helper()
		if err := registry.Register(domain.ChannelWhatsApp, entry); err != nil {
			t.Fatalf("Register(%s) error = %v", entry.Name, err)
		}
	}

	mustRegister(Entry{Name: "callmebot", Adapter: &stubAdapter{name: "callmebot"}, Configured: true, Available: true, UnitCost: 0, Limitations: "free tier"})
	mustRegister(Entry{Name: "meta", Configured: false, Available: false})

	snapshots := registry.Snapshot(domain.ChannelWhatsApp)
	if len(snapshots) != 2 {
		t.Fatalf("snapshot length = %d, want 2", len(snapshots))
	}
	if snapshots[0].Name != "callmebot" || snapshots[0].Status != "ready" {
		t.Fatalf("snapshot[0] = %+v, want ready callmebot", snapshots[0])
	}
	if snapshots[1].Status != "not_configured" {
		t.Fatalf("snapshot[1].Status = %q, want not_configured", snapshots[1].Status)
	}
}

func TestRegistryFind(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	if err := registry.Register(domain.ChannelSMS, Entry{
		Name: "twilio", Adapter: &stubAdapter{name: "twilio"}, Configured: true, Available: true,
	}); err != nil {
		t.Fatalf("Register error = %v", err)
	}

	if _, ok := registry.Find("TWILIO"); !ok {
		t.Fatal("Find should be case insensitive")
	}
	if _, ok := registry.Find("nexmo"); ok {
		t.Fatal("Find for unknown provider should report false")
	}
}
