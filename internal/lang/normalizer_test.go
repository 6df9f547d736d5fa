package lang

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type scriptedTranslator struct {
	detectLang string
	detectErr  error
	translated string
	translErr  error
}

func (s scriptedTranslator) Detect(context.Context, string) (string, error) {
	return s.detectLang, s.detectErr
}

func (s scriptedTranslator) Translate(context.Context, string, string, string) (string, error) {
	return s.translated, s.translErr
}

func TestToPivotPassThroughForPivotInput(t *testing.T) {
	n := NewNormalizer(scriptedTranslator{detectLang: "en", translated: "should not be used"})
	text, lang := n.ToPivot(context.Background(), "a table for two please")
	if text != "a table for two please" {
		t.Fatalf("text = %q, want unchanged input", text)
	}
	if lang != "en" {
		t.Fatalf("lang = %q, want en", lang)
	}
}

func TestToPivotTranslates(t *testing.T) {
	n := NewNormalizer(scriptedTranslator{detectLang: "fr", translated: "a table for two"})
	text, lang := n.ToPivot(context.Background(), "une table pour deux")
	if text != "a table for two" {
		t.Fatalf("text = %q", text)
	}
	if lang != "fr" {
		t.Fatalf("lang = %q, want fr", lang)
	}
}

func TestToPivotDegradesOnDetectFailure(t *testing.T) {
	n := NewNormalizer(scriptedTranslator{detectErr: errors.New("down")})
	text, lang := n.ToPivot(context.Background(), "hello there")
	if text != "hello there" || lang != Pivot {
		t.Fatalf("got (%q, %q), want original text and pivot fallback", text, lang)
	}
}

func TestToPivotDegradesOnTranslateFailure(t *testing.T) {
	n := NewNormalizer(scriptedTranslator{detectLang: "fr", translErr: errors.New("down")})
	text, lang := n.ToPivot(context.Background(), "une table pour deux")
	if text != "une table pour deux" {
		t.Fatalf("text = %q, want original preserved", text)
	}
	if lang != "fr" {
		t.Fatalf("lang tag = %q, must still be honored", lang)
	}
}

func TestFromPivotNoOpForPivotTarget(t *testing.T) {
	n := NewNormalizer(scriptedTranslator{translated: "should not be used"})
	if got := n.FromPivot(context.Background(), "your table is booked", "en"); got != "your table is booked" {
		t.Fatalf("got %q", got)
	}
}

func TestFromPivotDegradesOnFailure(t *testing.T) {
	n := NewNormalizer(scriptedTranslator{translErr: errors.New("down")})
	if got := n.FromPivot(context.Background(), "your table is booked", "fr"); got != "your table is booked" {
		t.Fatalf("got %q, want pivot text on failure", got)
	}
}

func TestDetectHeuristic(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"merci, au revoir, je voudrais une table", "fr"},
		{"hola, quiero una mesa por favor, gracias", "es"},
		{"hello, I would like a table for two please", "en"},
		{"", "en"},
		{"xyzzy plugh", "en"},
	}
	for _, tc := range cases {
		if got := DetectHeuristic(tc.text); got != tc.want {
			t.Fatalf("DetectHeuristic(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}

func TestGoogleTranslatorParsesPayload(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "" {
			http.Error(w, "missing q", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`[[["Hello, ","Bonjour, ",null,null],["a table for two","une table pour deux",null,null]],null,"fr"]`))
	}))
	defer ts.Close()

	tr := NewGoogleTranslatorWithEndpoint(ts.URL)
	text, err := tr.Translate(context.Background(), "Bonjour, une table pour deux", "fr", "en")
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if text != "Hello, a table for two" {
		t.Fatalf("text = %q", text)
	}

	lang, err := tr.Detect(context.Background(), "Bonjour, une table pour deux")
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if lang != "fr" {
		t.Fatalf("lang = %q, want fr", lang)
	}
}

func TestNewTranslatorModes(t *testing.T) {
	if _, err := NewTranslator("mock"); err != nil {
		t.Fatalf("mock mode error = %v", err)
	}
	if _, err := NewTranslator("auto"); err != nil {
		t.Fatalf("auto mode error = %v", err)
	}
	if _, err := NewTranslator("klingon"); err == nil {
		t.Fatalf("unknown mode accepted")
	}
}
