package apierr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/yungbote/graphrag-core/internal/rag/ragerr"
)

func TestFromError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{ragerr.Invalid("op", "bad"), http.StatusBadRequest, "invalid_argument"},
		{ragerr.NotFoundf("op", "task %s", "x"), http.StatusNotFound, "not_found"},
		{ragerr.Transient("op", errors.New("timeout")), http.StatusBadGateway, "dependency_unavailable"},
		{errors.New("boom"), http.StatusInternalServerError, "internal"},
		{New(http.StatusConflict, "conflict", nil), http.StatusConflict, "conflict"},
	}
	for _, tc := range cases {
		got := FromError(tc.err)
		if got.Status != tc.status || got.Code != tc.code {
			t.Fatalf("%v: status=%d code=%s", tc.err, got.Status, got.Code)
		}
	}
	if FromError(nil) != nil {
		t.Fatalf("nil error mapped")
	}
}
