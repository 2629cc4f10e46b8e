package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"overlayd/internal/autospin"
	"overlayd/internal/queue"
	"overlayd/pkg/types"
)

func TestResults_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"bad option", queue.ErrBadOption("option x has no application/controller"), http.StatusBadRequest},
		{"not found", queue.ErrNotFound("skyrim-console"), http.StatusNotFound},
		{"http error", mockHTTPError{msg: "no profile", code: http.StatusServiceUnavailable}, http.StatusServiceUnavailable},
		{"wrapped http error", fmt.Errorf("submit: %w", mockHTTPError{msg: "gone", code: http.StatusGone}), http.StatusGone},
		{"generic", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := postJSON(t, NewMux(&mockService{err: c.err}), "/results", `{"name":"Whiterun"}`)
			if w.Code != c.want {
				t.Fatalf("expected %d, got %d", c.want, w.Code)
			}
			var body types.ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("json: %v", err)
			}
			if body.Code != c.want || body.Error == "" {
				t.Fatalf("unexpected error body: %+v", body)
			}
		})
	}
}

func TestSpin_NothingEnabledMaps409(t *testing.T) {
	w := postJSON(t, NewMux(&mockService{err: autospin.ErrNoOptions}), "/spin", "")
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}
