package send

import (
	"errors"
	"regexp"
	"strings"
)

// TargetKind tags how a send request addresses its recipient.
type TargetKind int

const (
	// TargetHandle addresses an individual by phone number or email.
	TargetHandle TargetKind = iota
	// TargetChatGUID addresses a conversation by store-stable GUID.
	TargetChatGUID
	// TargetChatIdentifier addresses a conversation by identifier string.
	TargetChatIdentifier
	// TargetChatID addresses a conversation by the store's numeric row id.
	TargetChatID
)

// Target is a classified send destination.
type Target struct {
	Kind  TargetKind
	Value string
}

// Request is the raw send request as received over the wire. Exactly one
// of To/ChatID/ChatGUID/ChatIdentifier must be set.
type Request struct {
	To             string `json:"to,omitempty"`
	ChatID         string `json:"chat_id,omitempty"`
	ChatGUID       string `json:"chat_guid,omitempty"`
	ChatIdentifier string `json:"chat_identifier,omitempty"`
	Text           string `json:"text,omitempty"`
	File           string `json:"file,omitempty"`
	Service        string `json:"service,omitempty"`
}

var (
	// ErrMissingTarget means no addressing field was supplied.
	ErrMissingTarget = errors.New("missing target: set one of to, chat_id, chat_guid, chat_identifier")
	// ErrAmbiguousTarget means more than one addressing field was supplied.
	ErrAmbiguousTarget = errors.New("ambiguous target: set exactly one of to, chat_id, chat_guid, chat_identifier")
	// ErrEmptyMessage means neither text nor file was supplied.
	ErrEmptyMessage = errors.New("nothing to send: set text and/or file")
)

var phoneLike = regexp.MustCompile(`^\+?[0-9][0-9 ().-]{3,}$`)

// looksLikeHandle reports whether a value is lexically an individual
// address rather than a chat name.
func looksLikeHandle(v string) bool {
	return strings.Contains(v, "@") || phoneLike.MatchString(v)
}

// ClassifyTarget maps a request onto a tagged target. Classification is
// field-driven, with one reclassification rule: a chat_identifier that
// lexically looks like a handle and not like a structured chat id is
// dispatched as a handle (clients routinely put phone numbers there).
func ClassifyTarget(req Request) (Target, error) {
	var targets []Target
	if req.To != "" {
		targets = append(targets, Target{TargetHandle, req.To})
	}
	if req.ChatID != "" {
		targets = append(targets, Target{TargetChatID, req.ChatID})
	}
	if req.ChatGUID != "" {
		targets = append(targets, Target{TargetChatGUID, req.ChatGUID})
	}
	if req.ChatIdentifier != "" {
		targets = append(targets, Target{TargetChatIdentifier, req.ChatIdentifier})
	}
	switch len(targets) {
	case 0:
		return Target{}, ErrMissingTarget
	case 1:
	default:
		return Target{}, ErrAmbiguousTarget
	}

	t := targets[0]
	if t.Kind == TargetChatIdentifier &&
		looksLikeHandle(t.Value) &&
		!strings.Contains(t.Value, ";") &&
		!strings.HasPrefix(t.Value, "chat") {
		t.Kind = TargetHandle
	}
	return t, nil
}

// IsChat reports whether the target names a conversation rather than an
// individual.
func (t Target) IsChat() bool {
	return t.Kind != TargetHandle
}
