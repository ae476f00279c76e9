package send

import (
	"errors"
	"testing"
)

func TestClassifyTargetFields(t *testing.T) {
	cases := []struct {
		name string
		req  Request
		want Target
	}{
		{"handle", Request{To: "+15551234567"}, Target{TargetHandle, "+15551234567"}},
		{"chat_guid", Request{ChatGUID: "iMessage;+;chat1"}, Target{TargetChatGUID, "iMessage;+;chat1"}},
		{"chat_id", Request{ChatID: "42"}, Target{TargetChatID, "42"}},
		{"chat_identifier", Request{ChatIdentifier: "chat123456"}, Target{TargetChatIdentifier, "chat123456"}},
	}
	for _, c := range cases {
		got, err := ClassifyTarget(c.req)
		if err != nil {
			t.Errorf("%s: error = %v", c.name, err)
			continue
		}
		if got != c.want {
			t.Errorf("%s: got %+v, want %+v", c.name, got, c.want)
		}
	}
}

func TestClassifyTargetMissing(t *testing.T) {
	_, err := ClassifyTarget(Request{Text: "hi"})
	if !errors.Is(err, ErrMissingTarget) {
		t.Errorf("err = %v, want ErrMissingTarget", err)
	}
}

func TestClassifyTargetAmbiguous(t *testing.T) {
	_, err := ClassifyTarget(Request{To: "+1555", ChatGUID: "g"})
	if !errors.Is(err, ErrAmbiguousTarget) {
		t.Errorf("err = %v, want ErrAmbiguousTarget", err)
	}
}

func TestChatIdentifierReclassification(t *testing.T) {
	cases := []struct {
		value string
		want  TargetKind
	}{
		{"+15551234567", TargetHandle},
		{"user@example.com", TargetHandle},
		{"chat123456", TargetChatIdentifier},
		{"iMessage;-;+15551234567", TargetChatIdentifier},
		{"My Group", TargetChatIdentifier},
	}
	for _, c := range cases {
		got, err := ClassifyTarget(Request{ChatIdentifier: c.value})
		if err != nil {
			t.Errorf("%q: error = %v", c.value, err)
			continue
		}
		if got.Kind != c.want {
			t.Errorf("ClassifyTarget(chat_identifier=%q).Kind = %v, want %v", c.value, got.Kind, c.want)
		}
		if got.Value != c.value {
			t.Errorf("%q: value changed to %q", c.value, got.Value)
		}
	}
}

func TestIsChat(t *testing.T) {
	if (Target{TargetHandle, "+1"}).IsChat() {
		t.Error("handle reported as chat")
	}
	if !(Target{TargetChatGUID, "g"}).IsChat() {
		t.Error("chat guid not reported as chat")
	}
}
