package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	pkgerrors "github.com/angelmondragon/fastmart-backend/pkg/errors"
)

type addBody struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required"`
}

func TestDecodeJSONBodyRejectsShapeErrors(t *testing.T) {
	cases := map[string]string{
		"malformed":     `{"product_id":`,
		"unknown field": `{"product_id":1,"quantity":1,"extra":true}`,
		"wrong type":    `{"product_id":"one","quantity":1}`,
		"missing field": `{"quantity":1}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/cart", strings.NewReader(body))
			var dest addBody
			err := DecodeJSONBody(req, &dest)
			if !pkgerrors.HasCode(err, pkgerrors.CodeSchema) {
				t.Fatalf("expected schema error, got %v", err)
			}
		})
	}
}

func TestDecodeJSONBodyReportsFieldNames(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/cart", strings.NewReader(`{"product_id":0,"quantity":2}`))
	var dest addBody
	err := DecodeJSONBody(req, &dest)
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected typed error, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok || details["product_id"] == "" {
		t.Fatalf("expected product_id detail, got %#v", typed.Details())
	}
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/products?skip=5&limit=abc", nil)

	skip, err := ParseQueryInt(req, "skip", 0, 0, 1000)
	if err != nil || skip != 5 {
		t.Fatalf("expected skip 5, got %d (%v)", skip, err)
	}
	if _, err := ParseQueryInt(req, "limit", 10, 1, 100); !pkgerrors.HasCode(err, pkgerrors.CodeSchema) {
		t.Fatalf("expected schema error for non-numeric limit, got %v", err)
	}
	if v, err := ParseQueryInt(req, "missing", 7, 0, 10); err != nil || v != 7 {
		t.Fatalf("expected default 7, got %d (%v)", v, err)
	}
}

func TestParsePathID(t *testing.T) {
	for raw, ok := range map[string]bool{"42": true, "0": false, "-3": false, "x": false} {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", raw)
		req := httptest.NewRequest(http.MethodGet, "/products/"+raw, nil)
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

		_, err := ParsePathID(req, "id")
		if ok && err != nil {
			t.Errorf("%q: unexpected error %v", raw, err)
		}
		if !ok && !pkgerrors.HasCode(err, pkgerrors.CodeSchema) {
			t.Errorf("%q: expected schema error, got %v", raw, err)
		}
	}
}

func TestSanitizeStringCapsByRunes(t *testing.T) {
	got := SanitizeString(strings.Repeat("商", 200), 128)
	if !utf8.ValidString(got) {
		t.Fatalf("expected valid UTF-8, got %q", got)
	}
	if n := utf8.RuneCountInString(got); n != 128 {
		t.Fatalf("expected 128 runes, got %d", n)
	}

	short := strings.Repeat("商", 43)
	if got := SanitizeString(short, 128); got != short {
		t.Fatalf("expected 43-rune query untouched, got %q", got)
	}
}

func TestSanitizeStringCleansInput(t *testing.T) {
	cases := map[string]string{
		"  手机壳  ":          "手机壳",
		"wid\x00get":        "widget",
		"bad\xff\xfebytes": "badbytes",
		"tab\tinside":       "tabinside",
		"":                  "",
	}
	for in, want := range cases {
		if got := SanitizeString(in, 0); got != want {
			t.Fatalf("SanitizeString(%q) = %q, want %q", in, got, want)
		}
	}
}
