// Package twiml renders the call-control documents returned to the telephony
// transport. Only the verbs this gateway emits are modeled.
package twiml

import (
	"bytes"
	"encoding/xml"
	"net/http"
)

// Verb is a single call-control directive inside a Response document.
type Verb interface {
	verb()
}

// Play instructs the transport to play an audio asset by URL.
type Play struct {
	XMLName xml.Name `xml:"Play"`
	URL     string   `xml:",chardata"`
}

// Say instructs the transport to speak text with its built-in voice.
type Say struct {
	XMLName  xml.Name `xml:"Say"`
	Language string   `xml:"language,attr,omitempty"`
	Voice    string   `xml:"voice,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

// Record asks the transport to record the caller and post the result back.
type Record struct {
	XMLName                 xml.Name `xml:"Record"`
	Action                  string   `xml:"action,attr,omitempty"`
	Method                  string   `xml:"method,attr,omitempty"`
	MaxLength               int      `xml:"maxLength,attr,omitempty"`
	Timeout                 int      `xml:"timeout,attr,omitempty"`
	FinishOnKey             string   `xml:"finishOnKey,attr,omitempty"`
	PlayBeep                string   `xml:"playBeep,attr,omitempty"`
	Transcribe              string   `xml:"transcribe,attr,omitempty"`
	RecordingStatusCallback string   `xml:"recordingStatusCallback,attr,omitempty"`
}

// Redirect transfers control of the call to another webhook URL.
type Redirect struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr,omitempty"`
	URL     string   `xml:",chardata"`
}

// Hangup terminates the call.
type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// Pause waits silently for the given number of seconds.
type Pause struct {
	XMLName xml.Name `xml:"Pause"`
	Length  int      `xml:"length,attr,omitempty"`
}

func (Play) verb()     {}
func (Say) verb()      {}
func (Record) verb()   {}
func (Redirect) verb() {}
func (Hangup) verb()   {}
func (Pause) verb()    {}

// Response is an ordered sequence of verbs.
type Response struct {
	Verbs []Verb
}

// Add appends verbs preserving order.
func (r *Response) Add(verbs ...Verb) *Response {
	r.Verbs = append(r.Verbs, verbs...)
	return r
}

// Render serializes the document. Verb order is significant to the
// transport, so each verb is marshaled individually inside the envelope.
func (r *Response) Render() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString("<Response>")
	for _, v := range r.Verbs {
		b, err := xml.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteString("</Response>")
	return buf.Bytes(), nil
}

// Write renders the document to an HTTP response. A render failure degrades
// to a minimal spoken error document rather than a protocol error.
func Write(w http.ResponseWriter, r *Response) {
	body, err := r.Render()
	if err != nil {
		body = []byte(xml.Header + "<Response><Say>A server error occurred.</Say><Hangup/></Response>")
	}
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
