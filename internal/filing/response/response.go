// Package response parses the two independently-arriving regulator response
// artifacts. Parsing never fails hard: malformed input degrades to an unknown
// result carrying a raw snippet, and the caller escalates to human review
// instead of crashing.
package response

import (
	"bytes"
	"encoding/xml"
	"strings"
)

// AckStatus is the batch-level outcome reported by the first artifact.
type AckStatus string

const (
	AckAccepted             AckStatus = "accepted"
	AckRejected             AckStatus = "rejected"
	AckAcceptedWithWarnings AckStatus = "accepted_with_warnings"
	AckUnknown              AckStatus = "unknown"
)

// Item is one normalized error or warning from a response artifact, recorded
// verbatim; nothing in a regulator response is ever auto-corrected.
type Item struct {
	Code     string
	Sequence int
	Message  string
}

// AckResult is the parsed first artifact.
type AckResult struct {
	Status AckStatus
	Errors []Item
	// Raw holds a snippet of the input when parsing failed, for the review
	// queue.
	Raw string
}

// Confirmation pairs an activity sequence with its regulator-issued
// confirmation identifier.
type Confirmation struct {
	Sequence       int
	ConfirmationID string
}

// ConfirmationResult is the parsed second artifact. Parsed is false when the
// bytes were unreadable; the caller must escalate rather than accept.
type ConfirmationResult struct {
	Parsed        bool
	Confirmations []Confirmation
	Errors        []Item
	Raw           string
}

type ackDocument struct {
	XMLName    xml.Name   `xml:"BatchAcknowledgement"`
	StatusCode string     `xml:"StatusCode"`
	Errors     []itemNode `xml:"Error"`
	Warnings   []itemNode `xml:"Warning"`
}

type confirmationDocument struct {
	XMLName       xml.Name           `xml:"ConfirmationFile"`
	Confirmations []confirmationNode `xml:"Confirmation"`
	Errors        []itemNode         `xml:"Error"`
}

type confirmationNode struct {
	Sequence       int    `xml:"seq,attr"`
	ConfirmationID string `xml:"id,attr"`
}

type itemNode struct {
	Code     string `xml:"code,attr"`
	Sequence int    `xml:"seq,attr"`
	Message  string `xml:",chardata"`
}

// ParseAck parses the first response artifact. It never returns an error: an
// unreadable artifact yields AckUnknown with the raw snippet preserved.
func ParseAck(raw []byte) AckResult {
	var doc ackDocument
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return AckResult{Status: AckUnknown, Raw: snippet(raw)}
	}

	result := AckResult{
		Errors: append(normalizeItems(doc.Errors), normalizeItems(doc.Warnings)...),
	}
	switch strings.ToUpper(strings.TrimSpace(doc.StatusCode)) {
	case "A", "ACCEPTED":
		result.Status = AckAccepted
	case "R", "REJECTED":
		result.Status = AckRejected
	case "W", "ACCEPTED_WITH_WARNINGS":
		result.Status = AckAcceptedWithWarnings
	default:
		result.Status = AckUnknown
		result.Raw = snippet(raw)
	}
	return result
}

// ParseConfirmation parses the second response artifact. It never returns an
// error; Parsed reports whether the bytes were readable.
func ParseConfirmation(raw []byte) ConfirmationResult {
	var doc confirmationDocument
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return ConfirmationResult{Parsed: false, Raw: snippet(raw)}
	}

	result := ConfirmationResult{
		Parsed: true,
		Errors: normalizeItems(doc.Errors),
	}
	for _, c := range doc.Confirmations {
		if strings.TrimSpace(c.ConfirmationID) == "" {
			continue
		}
		result.Confirmations = append(result.Confirmations, Confirmation{
			Sequence:       c.Sequence,
			ConfirmationID: strings.TrimSpace(c.ConfirmationID),
		})
	}
	return result
}

func normalizeItems(nodes []itemNode) []Item {
	var items []Item
	for _, node := range nodes {
		items = append(items, Item{
			Code:     strings.TrimSpace(node.Code),
			Sequence: node.Sequence,
			Message:  strings.TrimSpace(node.Message),
		})
	}
	return items
}

const snippetLimit = 256

// snippet preserves the head of an unparseable artifact for review.
func snippet(raw []byte) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > snippetLimit {
		trimmed = trimmed[:snippetLimit]
	}
	return string(trimmed)
}
