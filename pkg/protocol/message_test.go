package protocol

import (
	"errors"
	"testing"
)

func TestParse_Validated(t *testing.T) {
	text := `a["{\"op\":\"ortc-validated\",\"up\":{\"room1\":\"w\",\"chat:*\":\"r\"},\"set\":1800}"]`
	m, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.Operation != OpValidated {
		t.Fatalf("expected validated, got %v", m.Operation)
	}
	perms, err := m.Permissions()
	if err != nil {
		t.Fatalf("Permissions: %v", err)
	}
	if len(perms) != 2 || perms["room1"] != "w" || perms["chat:*"] != "r" {
		t.Fatalf("unexpected permissions %v", perms)
	}
	if got := m.SessionExpirationTime(); got != 1800 {
		t.Fatalf("unexpected session expiration %d", got)
	}
}

func TestParse_ValidatedNullPermissions(t *testing.T) {
	m, err := Parse(`a["{\"op\":\"ortc-validated\",\"up\":null,\"set\":0}"]`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	perms, err := m.Permissions()
	if err != nil {
		t.Fatalf("Permissions: %v", err)
	}
	if len(perms) != 0 {
		t.Fatalf("expected empty permissions, got %v", perms)
	}
}

func TestParse_SubscribedUnsubscribed(t *testing.T) {
	cases := map[string]Operation{
		`a["{\"op\":\"ortc-subscribed\",\"ch\":\"room1\"}"]`:   OpSubscribed,
		`a["{\"op\":\"ortc-unsubscribed\",\"ch\":\"room1\"}"]`: OpUnsubscribed,
	}
	for text, op := range cases {
		m, err := Parse(text)
		if err != nil {
			t.Fatalf("Parse(%s): %v", text, err)
		}
		if m.Operation != op {
			t.Fatalf("Parse(%s): got %v want %v", text, m.Operation, op)
		}
		ch, err := m.ChannelName()
		if err != nil || ch != "room1" {
			t.Fatalf("ChannelName: %q %v", ch, err)
		}
	}
}

func TestParse_UnknownOperationTag(t *testing.T) {
	m, err := Parse(`a["{\"op\":\"ortc-something\",\"x\":1}"]`)
	if err != nil {
		t.Fatalf("unknown tags must not fail parsing: %v", err)
	}
	if m.Operation != OpUnknown {
		t.Fatalf("expected OpUnknown, got %v", m.Operation)
	}
}

func TestParse_Received(t *testing.T) {
	m, err := Parse(`a["{\"ch\":\"room1\",\"m\":\"abcd1234_1-1_hello\"}"]`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.Operation != OpReceived || m.Channel != "room1" {
		t.Fatalf("unexpected message %+v", m)
	}
	if m.ID != "abcd1234" || m.Part != 1 || m.Total != 1 || m.Payload != "hello" {
		t.Fatalf("unexpected multipart fields %+v", m)
	}
	if !m.Complete() {
		t.Fatalf("1/1 delivery must be complete")
	}
}

func TestParse_ReceivedMultipartAndFilter(t *testing.T) {
	m, err := Parse(`a["{\"ch\":\"room1\",\"f\":true,\"m\":\"abcd1234_2-3_middle\"}"]`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !m.Filtered || m.Part != 2 || m.Total != 3 || m.Payload != "middle" || m.Channel != "room1" {
		t.Fatalf("unexpected message %+v", m)
	}
	if m.Complete() {
		t.Fatalf("part 2/3 must not be complete")
	}
}

func TestParse_ReceivedWithoutPrefix(t *testing.T) {
	m, err := Parse(`a["{\"ch\":\"room1\",\"m\":\"plain text\"}"]`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.ID != "" || m.Part != -1 || m.Total != -1 || m.Payload != "plain text" || !m.Complete() {
		t.Fatalf("unexpected message %+v", m)
	}
}

func TestParse_ReceivedBadNumbersFallBack(t *testing.T) {
	m, err := Parse(`a["{\"ch\":\"room1\",\"m\":\"id_x-y_content\"}"]`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.ID != "" || m.Part != -1 || m.Payload != "id_x-y_content" {
		t.Fatalf("malformed part numbers must yield a plain message, got %+v", m)
	}
}

func TestParse_ReceivedEscapedContent(t *testing.T) {
	// content `say "hi"\n` escaped once by the sender and once more by the envelope
	m, err := Parse(`a["{\"ch\":\"room1\",\"m\":\"id000001_1-1_say \\\"hi\\\"\\n\"}"]`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := m.Text(); got != "say \"hi\"\n" {
		t.Fatalf("unexpected unescaped text %q", got)
	}
}

func TestParse_Close(t *testing.T) {
	m, err := Parse(`c[3000,"Go away!"]`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.Operation != OpClose {
		t.Fatalf("expected close, got %v", m.Operation)
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, text := range []string{"", "garbage", `a["not an object"]`, `c[30,"short"]`} {
		if _, err := Parse(text); !errors.Is(err, ErrInvalidMessage) {
			t.Fatalf("Parse(%q): expected ErrInvalidMessage, got %v", text, err)
		}
	}
}

func TestServerError(t *testing.T) {
	m, err := Parse(`a["{\"op\":\"ortc-error\",\"ex\":{\"op\":\"subscribe\",\"ch\":\"room1\",\"ex\":\"Access denied\"}}"]`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.Operation != OpError {
		t.Fatalf("expected error op, got %v", m.Operation)
	}
	se, err := m.ServerError()
	if err != nil {
		t.Fatalf("ServerError: %v", err)
	}
	if se.Operation != ErrOpSubscribe || se.Channel != "room1" || se.Message != "Access denied" {
		t.Fatalf("unexpected server error %+v", se)
	}
	if se.Fatal() {
		t.Fatalf("subscribe errors are not fatal")
	}
}

func TestServerError_FatalAndUnknown(t *testing.T) {
	cases := map[string]struct {
		op    ErrorOperation
		fatal bool
	}{
		"validate":            {ErrOpValidate, true},
		"send_maxsize":        {ErrOpSendMaxSize, true},
		"subscribe_maxsize":   {ErrOpSubscribeMaxSize, true},
		"unsubscribe_maxsize": {ErrOpUnsubscribeMaxSize, true},
		"ex":                  {ErrOpUnexpected, false},
		"mystery":             {ErrOpUnknown, false},
	}
	for tag, want := range cases {
		m := &Message{Operation: OpError, Payload: `\"ex\":{\"op\":\"` + tag + `\",\"ex\":\"boom\"}`}
		se, err := m.ServerError()
		if err != nil {
			t.Fatalf("%s: %v", tag, err)
		}
		if se.Operation != want.op || se.Fatal() != want.fatal || se.Tag != tag {
			t.Fatalf("%s: unexpected %+v", tag, se)
		}
	}
}
