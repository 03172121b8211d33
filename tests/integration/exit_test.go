//go:build integration

package integration

import (
	"bytes"
	"io"
	"net/http"
	"testing"
)

// checkoutOne scans a single product and pays, returning the checkout result.
func checkoutOne(t *testing.T, barcode string) checkoutResponse {
	t.Helper()
	session := newSession(t)
	scanItems(t, session, addItemRequest{Barcode: barcode})
	return checkoutSession(t, session, checkoutRequest{})
}

func TestVerifyExit_Approved(t *testing.T) {
	out := checkoutOne(t, "8901030865278")

	resp := doPost(t, "/api/exit/verify", verifyRequest{Pass: out.QRPayload})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	v := decodeJSON[verifyResponse](t, resp)
	if v.Result != "APPROVED" {
		t.Fatalf("result: got %q, want APPROVED", v.Result)
	}
	if v.Transaction == nil {
		t.Fatal("approved verification returned no transaction")
	}
	if v.Transaction.ID != out.Transaction.ID {
		t.Errorf("transaction ID: got %q, want %q", v.Transaction.ID, out.Transaction.ID)
	}
	if v.Transaction.ExitStatus != "EXITED" {
		t.Errorf("exit_status: got %q, want EXITED", v.Transaction.ExitStatus)
	}
	if v.Transaction.Total != out.Transaction.Total {
		t.Errorf("total: got %q, want %q", v.Transaction.Total, out.Transaction.Total)
	}
}

func TestVerifyExit_SecondScanRejected(t *testing.T) {
	out := checkoutOne(t, "8901725133481")

	resp := doPost(t, "/api/exit/verify", verifyRequest{Pass: out.QRPayload})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first verification: expected 200, got %d", resp.StatusCode)
	}

	resp = doPost(t, "/api/exit/verify", verifyRequest{Pass: out.QRPayload})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second verification: expected 409, got %d", resp.StatusCode)
	}

	v := decodeJSON[verifyResponse](t, resp)
	if v.Result != "ALREADY_USED" {
		t.Errorf("result: got %q, want ALREADY_USED", v.Result)
	}
	if v.ExitedAt == "" {
		t.Error("exited_at missing from ALREADY_USED response")
	}
}

func TestVerifyExit_BareCode(t *testing.T) {
	// Door staff can type the printed exit code instead of scanning the QR.
	out := checkoutOne(t, "8901058851298")

	resp := doPost(t, "/api/exit/verify", verifyRequest{Pass: out.Transaction.ExitCode})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	v := decodeJSON[verifyResponse](t, resp)
	if v.Result != "APPROVED" {
		t.Errorf("result: got %q, want APPROVED", v.Result)
	}
}

func TestVerifyExit_UnknownCode(t *testing.T) {
	resp := doPost(t, "/api/exit/verify", verifyRequest{Pass: "EXIT-00000000000000-deadbeef"})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	v := decodeJSON[verifyResponse](t, resp)
	if v.Result != "NOT_FOUND" {
		t.Errorf("result: got %q, want NOT_FOUND", v.Result)
	}
}

func TestVerifyExit_Garbage(t *testing.T) {
	resp := doPost(t, "/api/exit/verify", verifyRequest{Pass: "not a pass at all"})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestExitPassImage(t *testing.T) {
	out := checkoutOne(t, "8901491101837")

	resp := doGet(t, "/api/exit-pass/"+out.Transaction.ExitCode+".png")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type: got %q, want image/png", ct)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read image: %v", err)
	}
	if !bytes.HasPrefix(body, []byte("\x89PNG")) {
		t.Error("body is not a PNG image")
	}
}

func TestExitPassImage_NotFound(t *testing.T) {
	resp := doGet(t, "/api/exit-pass/EXIT-00000000000000-deadbeef.png")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
