package model

import (
	"encoding/json"
	"errors"
	"testing"

	"xdao.co/didauth/autherr"
)

func TestSnapshot_LoginResponse_JSONShape(t *testing.T) {
	resp := LoginResponse{User: User{DID: "did:key:z6MkA", Name: "alice"}}
	b, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	const want = `{"user":{"did":"did:key:z6MkA","name":"alice"}}`
	if string(b) != want {
		t.Fatalf("unexpected JSON:\n got: %s\nwant: %s", b, want)
	}
}

func TestSnapshot_RegisterRequest_JSONShape(t *testing.T) {
	var req RegisterRequest
	body := `{"name":"alice","did":"did:key:z6MkA","message":"m","sign":"a-b"}`
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	want := RegisterRequest{Name: "alice", DID: "did:key:z6MkA", Message: "m", Sign: "a-b"}
	if req != want {
		t.Fatalf("got %+v want %+v", req, want)
	}
}

func TestSnapshot_VerifyResult_JSONShape(t *testing.T) {
	b, err := json.Marshal(VerifyResult{Valid: true})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(b) != `{"valid":true}` {
		t.Fatalf("unexpected JSON: %s", b)
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil) != nil {
		t.Fatalf("nil error must map to nil")
	}

	e := FromError(autherr.New(autherr.KindKeyMismatch, "DIDAUTH-VERIFY-301", "signature key does not match DID"))
	if e.Code != ErrRejected || e.Kind != autherr.KindKeyMismatch || e.Rule != "DIDAUTH-VERIFY-301" {
		t.Fatalf("unexpected projection: %+v", e)
	}

	e = FromError(autherr.New(autherr.KindInvalidArgument, "DIDAUTH-AUTH-001", "did is required"))
	if e.Code != ErrInvalidRequest {
		t.Fatalf("unexpected projection: %+v", e)
	}

	e = FromError(errors.New("pq: connection refused to 10.0.0.1"))
	if e.Code != ErrInternal || e.Message != "internal error" {
		t.Fatalf("internal detail leaked: %+v", e)
	}

	e = FromError(autherr.Wrap(autherr.KindInternal, "DIDAUTH-AUTH-901", "registry lookup failed: secret", errors.New("x")))
	if e.Message != "internal error" {
		t.Fatalf("internal detail leaked: %+v", e)
	}
}
