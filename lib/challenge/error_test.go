package challenge

import (
	"errors"
	"net/http"
	"testing"
)

func TestErrorTranslated(t *testing.T) {
	data := map[string]any{"Hash": "abc..."}
	base := NewError("verify", "invalid proof of work", ErrFailed)
	tr := base.Translated("pow_failed", data)

	if base.MessageID != "" || base.Data != nil {
		t.Errorf("Translated changed the receiver: %+v", base)
	}

	data["Hash"] = "changed"
	if tr.Data["Hash"] != "abc..." {
		t.Errorf("Translated kept a reference to the caller's map: %v", tr.Data)
	}

	if tr.MessageID != "pow_failed" || tr.PublicReason != base.PublicReason {
		t.Errorf("wrong translated error: %+v", tr)
	}

	if !errors.Is(tr, ErrFailed) {
		t.Error("translated error does not unwrap to its private reason")
	}

	if tr.StatusCode != http.StatusBadRequest {
		t.Errorf("wanted 400, got %d", tr.StatusCode)
	}
}
