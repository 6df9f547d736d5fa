package twiml

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRenderPreservesVerbOrder(t *testing.T) {
	resp := (&Response{}).Add(
		Play{URL: "https://example.com/hold.mp3"},
		Redirect{Method: "POST", URL: "/wait-for-response?call_id=CA1"},
	)

	body, err := resp.Render()
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	doc := string(body)

	playIdx := strings.Index(doc, "<Play>")
	redirectIdx := strings.Index(doc, "<Redirect")
	if playIdx == -1 || redirectIdx == -1 {
		t.Fatalf("missing verbs in document: %s", doc)
	}
	if playIdx > redirectIdx {
		t.Fatalf("verb order not preserved: %s", doc)
	}
	if !strings.Contains(doc, `method="POST"`) {
		t.Fatalf("redirect method attribute missing: %s", doc)
	}
}

func TestRenderRecordAttributes(t *testing.T) {
	resp := (&Response{}).Add(Record{
		Action:                  "/recording",
		Method:                  "POST",
		MaxLength:               30,
		Timeout:                 3,
		FinishOnKey:             "#",
		PlayBeep:                "true",
		Transcribe:              "false",
		RecordingStatusCallback: "/recording-status",
	})

	body, err := resp.Render()
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	doc := string(body)

	for _, want := range []string{
		`action="/recording"`,
		`maxLength="30"`,
		`timeout="3"`,
		`finishOnKey="#"`,
		`playBeep="true"`,
		`recordingStatusCallback="/recording-status"`,
	} {
		if !strings.Contains(doc, want) {
			t.Fatalf("missing %s in %s", want, doc)
		}
	}
}

func TestRenderEscapesText(t *testing.T) {
	resp := (&Response{}).Add(Say{Language: "fr-FR", Text: `table for 2 <tonight> & "late"`})
	body, err := resp.Render()
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	doc := string(body)
	if strings.Contains(doc, "<tonight>") {
		t.Fatalf("chardata not escaped: %s", doc)
	}
	if !strings.Contains(doc, `language="fr-FR"`) {
		t.Fatalf("say language attribute missing: %s", doc)
	}
}

func TestWriteSetsXMLContentType(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, (&Response{}).Add(Hangup{}))

	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "text/xml") {
		t.Fatalf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "<Hangup") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}
