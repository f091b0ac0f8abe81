package ws

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"floeworld/internal/protocol"
	"floeworld/internal/sim/tuning"
	"floeworld/internal/sim/world"
)

func startTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	w, err := world.New(world.Config{Seed: 1}, tuning.Defaults())
	if err != nil {
		t.Fatal(err)
	}
	rt := world.NewRuntime(w, world.RuntimeConfig{TickRateHz: 100, PushEveryTicks: 1})
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = rt.Run(ctx) }()
	t.Cleanup(cancel)

	mux := http.NewServeMux()
	NewServer(rt, log.New(io.Discard)).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode
}

func postJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Post(url, "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode
}

func TestHTTP_StateAndStep(t *testing.T) {
	srv := startTestServer(t)

	var st protocol.WorldState
	if code := getJSON(t, srv.URL+"/state", &st); code != http.StatusOK {
		t.Fatalf("GET /state status = %d", code)
	}
	if st.Tick != 0 {
		t.Fatalf("initial tick = %d", st.Tick)
	}
	p, s, f := st.Counts()
	if p == 0 || s == 0 || f == 0 {
		t.Fatalf("empty initial population: %d/%d/%d", p, s, f)
	}

	if code := postJSON(t, srv.URL+"/step?n=5", &st); code != http.StatusOK {
		t.Fatalf("POST /step status = %d", code)
	}
	if st.Tick != 5 {
		t.Fatalf("tick after step = %d, want 5", st.Tick)
	}
}

func TestHTTP_StepValidation(t *testing.T) {
	srv := startTestServer(t)

	var em protocol.ErrorMsg
	if code := postJSON(t, srv.URL+"/step?n=0", &em); code != http.StatusBadRequest {
		t.Fatalf("n=0 status = %d", code)
	}
	if em.Code != protocol.ErrBadRequest {
		t.Fatalf("n=0 code = %s", em.Code)
	}
	if code := postJSON(t, srv.URL+"/step?n=101", &em); code != http.StatusBadRequest {
		t.Fatalf("n=101 status = %d", code)
	}
	if code := postJSON(t, srv.URL+"/step?n=abc", &em); code != http.StatusBadRequest {
		t.Fatalf("n=abc status = %d", code)
	}

	// GET is not allowed for control endpoints.
	resp, err := http.Get(srv.URL + "/step?n=1")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET /step status = %d", resp.StatusCode)
	}
}

func TestHTTP_AnimalLookup(t *testing.T) {
	srv := startTestServer(t)

	var st protocol.WorldState
	getJSON(t, srv.URL+"/state", &st)
	if len(st.Penguins) == 0 {
		t.Fatal("no penguins to look up")
	}
	id := st.Penguins[0].ID

	var a protocol.AnimalState
	if code := getJSON(t, srv.URL+"/animal?id="+id, &a); code != http.StatusOK {
		t.Fatalf("lookup status = %d", code)
	}
	if a.ID != id {
		t.Fatalf("lookup returned %s, want %s", a.ID, id)
	}

	var em protocol.ErrorMsg
	if code := getJSON(t, srv.URL+"/animal?id=P999999", &em); code != http.StatusNotFound {
		t.Fatalf("missing animal status = %d", code)
	}
	if em.Code != protocol.ErrNotFound {
		t.Fatalf("missing animal code = %s", em.Code)
	}
}

func TestHTTP_ResetAndHealthz(t *testing.T) {
	srv := startTestServer(t)

	var st protocol.WorldState
	postJSON(t, srv.URL+"/step?n=10", &st)
	if st.Tick != 10 {
		t.Fatalf("tick = %d", st.Tick)
	}
	if code := postJSON(t, srv.URL+"/reset", &st); code != http.StatusOK {
		t.Fatalf("reset status = %d", code)
	}
	if st.Tick != 0 {
		t.Fatalf("tick after reset = %d", st.Tick)
	}

	var health map[string]string
	if code := getJSON(t, srv.URL+"/healthz", &health); code != http.StatusOK {
		t.Fatalf("healthz status = %d", code)
	}
	if health["status"] != "ok" {
		t.Fatalf("healthz = %v", health)
	}
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWS_StepReturnsState(t *testing.T) {
	srv := startTestServer(t)
	conn := dialWS(t, srv)

	if err := conn.WriteJSON(protocol.StepMsg{Type: protocol.TypeStep, ProtocolVersion: protocol.Version, N: 3}); err != nil {
		t.Fatal(err)
	}
	var sm protocol.StateMsg
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&sm); err != nil {
		t.Fatal(err)
	}
	if sm.Type != protocol.TypeState || sm.State.Tick != 3 {
		t.Fatalf("reply = %s tick %d, want STATE tick 3", sm.Type, sm.State.Tick)
	}
}

func TestWS_BadMessageYieldsError(t *testing.T) {
	srv := startTestServer(t)
	conn := dialWS(t, srv)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"NONSENSE"}`)); err != nil {
		t.Fatal(err)
	}
	var em protocol.ErrorMsg
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&em); err != nil {
		t.Fatal(err)
	}
	if em.Type != protocol.TypeError || em.Code != protocol.ErrProtoBadRequest {
		t.Fatalf("reply = %+v, want E_PROTO_BAD_REQUEST", em)
	}
}

func TestWS_StartPushesState(t *testing.T) {
	srv := startTestServer(t)
	conn := dialWS(t, srv)

	if err := conn.WriteJSON(protocol.BaseMessage{Type: protocol.TypeStart, ProtocolVersion: protocol.Version}); err != nil {
		t.Fatal(err)
	}

	// Expect an ACK for START and pushed STATE frames as the loop ticks.
	// Push frames may overtake the ACK, so scan a handful of messages.
	sawAck := false
	sawState := false
	for i := 0; i < 20 && !(sawAck && sawState); i++ {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatal(err)
		}
		base, err := protocol.DecodeBase(raw)
		if err != nil {
			t.Fatal(err)
		}
		switch base.Type {
		case protocol.TypeAck:
			var ack protocol.AckMsg
			if err := json.Unmarshal(raw, &ack); err != nil {
				t.Fatal(err)
			}
			if ack.Op != protocol.TypeStart {
				t.Fatalf("ack op = %s", ack.Op)
			}
			sawAck = true
		case protocol.TypeState:
			var sm protocol.StateMsg
			if err := json.Unmarshal(raw, &sm); err != nil {
				t.Fatal(err)
			}
			if sm.State.Tick > 0 {
				sawState = true
			}
		default:
			t.Fatalf("unexpected frame type %s", base.Type)
		}
	}
	if !sawAck || !sawState {
		t.Fatalf("sawAck=%v sawState=%v", sawAck, sawState)
	}
}
