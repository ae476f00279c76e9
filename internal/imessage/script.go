// Package imessage drives the native Messages application through its
// scripting surface. Each send attempt is one small imperative script; the
// send dispatcher decides which script shape to try and in what order.
package imessage

import (
	"fmt"
	"strings"
)

// Service is a messaging service selectable on a send.
type Service string

const (
	ServiceIMessage Service = "iMessage"
	ServiceSMS      Service = "SMS"
)

// escape quotes a string for embedding in an AppleScript literal.
func escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

// sendLines emits a text send and/or file send to the given script target
// variable. At least one of text/filePath is non-empty by the time the
// dispatcher gets here.
func sendLines(target, text, filePath string) string {
	var b strings.Builder
	if text != "" {
		fmt.Fprintf(&b, "\tsend \"%s\" to %s\n", escape(text), target)
	}
	if filePath != "" {
		fmt.Fprintf(&b, "\tsend POSIX file \"%s\" to %s\n", escape(filePath), target)
	}
	return b.String()
}

// ConversationSend creates a fresh conversation scoped to one service and
// buddy, then sends into it.
func ConversationSend(service Service, buddy, text, filePath string) string {
	var b strings.Builder
	b.WriteString("tell application \"Messages\"\n")
	fmt.Fprintf(&b, "\tset targetService to 1st account whose service type = %s\n", service)
	fmt.Fprintf(&b, "\tset targetBuddy to participant \"%s\" of targetService\n", escape(buddy))
	b.WriteString("\tset targetChat to make new text chat with properties {participants: {targetBuddy}}\n")
	b.WriteString(sendLines("targetChat", text, filePath))
	b.WriteString("end tell")
	return b.String()
}

// BuddySend addresses the buddy directly on one service, with no explicit
// conversation creation.
func BuddySend(service Service, buddy, text, filePath string) string {
	var b strings.Builder
	b.WriteString("tell application \"Messages\"\n")
	fmt.Fprintf(&b, "\tset targetService to 1st account whose service type = %s\n", service)
	fmt.Fprintf(&b, "\tset targetBuddy to participant \"%s\" of targetService\n", escape(buddy))
	b.WriteString(sendLines("targetBuddy", text, filePath))
	b.WriteString("end tell")
	return b.String()
}

// GenericBuddySend addresses the buddy with no service selection at all.
// Last rung of the ladder: Messages picks whatever service it can.
func GenericBuddySend(buddy, text, filePath string) string {
	target := fmt.Sprintf("buddy \"%s\"", escape(buddy))
	var b strings.Builder
	b.WriteString("tell application \"Messages\"\n")
	b.WriteString(sendLines(target, text, filePath))
	b.WriteString("end tell")
	return b.String()
}

// ChatSend addresses an existing conversation. Structured GUIDs (containing
// ";") address by chat id; bare identifiers address by chat name.
func ChatSend(chatRef, text, filePath string) string {
	var ref string
	if strings.Contains(chatRef, ";") {
		ref = fmt.Sprintf("a reference to chat id \"%s\"", escape(chatRef))
	} else {
		ref = fmt.Sprintf("a reference to chat \"%s\"", escape(chatRef))
	}
	var b strings.Builder
	b.WriteString("tell application \"Messages\"\n")
	fmt.Fprintf(&b, "\tset targetChat to %s\n", ref)
	b.WriteString(sendLines("targetChat", text, filePath))
	b.WriteString("end tell")
	return b.String()
}
