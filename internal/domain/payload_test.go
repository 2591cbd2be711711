package domain

import (
	"strings"
	"testing"
)

func TestParseChannelFromString(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		input   string
		want    Channel
		wantErr bool
	}{
		{input: "whatsapp", want: ChannelWhatsApp},
		{input: " SMS ", want: ChannelSMS},
		{input: "Email", want: ChannelEmail},
		{input: "push", want: ChannelPush},
		{input: "in-app", want: ChannelInApp},
		{input: "in_app", want: ChannelInApp},
		{input: "fax", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tc := range testCases {
		got, err := ParseChannelFromString(tc.input)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseChannelFromString(%q) expected error, got %v", tc.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseChannelFromString(%q) error = %v", tc.input, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseChannelFromString(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestChannelIsPhoneBased(t *testing.T) {
	t.Parallel()

	if !ChannelWhatsApp.IsPhoneBased() || !ChannelSMS.IsPhoneBased() {
		t.Error("WHATSAPP and SMS should be phone based")
	}
	if ChannelEmail.IsPhoneBased() || ChannelPush.IsPhoneBased() || ChannelInApp.IsPhoneBased() {
		t.Error("EMAIL, PUSH and IN_APP should not be phone based")
	}
}

func TestPayloadRecipientOverride(t *testing.T) {
	t.Parallel()

	p := Payload{To: "member@example.com", Text: "hello"}
	if got := p.Recipient(); got != "member@example.com" {
		t.Fatalf("Recipient() = %q, want member@example.com", got)
	}

	p.OverrideRecipient = " tester@example.com "
	if got := p.Recipient(); got != "tester@example.com" {
		t.Fatalf("Recipient() with override = %q, want tester@example.com", got)
	}
}

func TestPayloadValidate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		channel Channel
		payload Payload
		wantErr bool
	}{
		{
			name:    "valid whatsapp",
			channel: ChannelWhatsApp,
			payload: Payload{To: "+5491112345678", Text: "hola"},
		},
		{
			name:    "missing recipient",
			channel: ChannelEmail,
			payload: Payload{Text: "hola"},
			wantErr: true,
		},
		{
			name:    "missing content and template",
			channel: ChannelEmail,
			payload: Payload{To: "a@b.c"},
			wantErr: true,
		},
		{
			name:    "template without text is fine",
			channel: ChannelWhatsApp,
			payload: Payload{To: "+5491112345678", TemplateID: "welcome"},
		},
		{
			name:    "sms over limit",
			channel: ChannelSMS,
			payload: Payload{To: "+5491112345678", Text: strings.Repeat("x", MaxSMSContent+1)},
			wantErr: true,
		},
		{
			name:    "invalid channel",
			channel: Channel("CARRIER_PIGEON"),
			payload: Payload{To: "+5491112345678", Text: "hola"},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.payload.Validate(tc.channel)
			if tc.wantErr && err == nil {
				t.Fatal("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
