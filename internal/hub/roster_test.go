package hub

import (
	"encoding/json"
	"reflect"
	"testing"
)

func decodePeers(t *testing.T, env Envelope) []string {
	t.Helper()
	var peers []string
	if err := json.Unmarshal(env.Payload, &peers); err != nil {
		t.Fatalf("decode all_users_in_call: %v", err)
	}
	return peers
}

func TestCallJoinSequence(t *testing.T) {
	h := newTestHub()

	var conns []*testConn
	ids := []string{"C1", "C2", "C3", "C4"}
	for _, id := range ids {
		s, conn := addSession(h, id)
		conns = append(conns, conn)
		h.HandleJoinVoice(s, "alpha")
	}

	want := [][]string{{}, {"C1"}, {"C1", "C2"}, {"C1", "C2", "C3"}}
	for i, conn := range conns {
		envs := conn.ofType(EventAllUsersInCall)
		if len(envs) != 1 {
			t.Fatalf("%s: expected 1 peer-list reply, got %d", ids[i], len(envs))
		}
		got := decodePeers(t, envs[0])
		if len(got) != len(want[i]) || (len(got) > 0 && !reflect.DeepEqual(got, want[i])) {
			t.Fatalf("%s: expected peers %v, got %v", ids[i], want[i], got)
		}
		if conn.count(EventCallConfig) != 1 {
			t.Fatalf("%s: expected a call_config reply", ids[i])
		}
	}

	// A fifth joiner is rejected and the roster is untouched.
	s5, c5 := addSession(h, "C5")
	h.HandleJoinVoice(s5, "alpha")
	if c5.count(EventRoomFull) != 1 {
		t.Fatal("fifth joiner did not receive room_full")
	}
	if c5.count(EventAllUsersInCall) != 0 {
		t.Fatal("rejected joiner must not receive a peer list")
	}
	if got := h.CallRoster("alpha"); !reflect.DeepEqual(got, ids) {
		t.Fatalf("roster changed after rejection: %v", got)
	}
}

func TestCallConfigCarriesICEServers(t *testing.T) {
	h := newTestHub()
	s, conn := addSession(h, "C1")
	h.HandleJoinVoice(s, "alpha")

	envs := conn.ofType(EventCallConfig)
	if len(envs) != 1 {
		t.Fatalf("expected one call_config, got %d", len(envs))
	}
	var cfg CallConfigPayload
	if err := json.Unmarshal(envs[0].Payload, &cfg); err != nil {
		t.Fatalf("decode call_config: %v", err)
	}
	if len(cfg.ICEServers) != 1 || len(cfg.ICEServers[0].URLs) != 1 {
		t.Fatalf("unexpected ICE servers: %+v", cfg.ICEServers)
	}
	if cfg.ICEServers[0].URLs[0] != "stun:stun.example.org:3478" {
		t.Fatalf("unexpected STUN url: %q", cfg.ICEServers[0].URLs[0])
	}
}

func TestDuplicateJoinRepliesPeerList(t *testing.T) {
	h := newTestHub()
	s1, _ := addSession(h, "C1")
	s2, c2 := addSession(h, "C2")
	h.HandleJoinVoice(s1, "beta")
	h.HandleJoinVoice(s2, "beta")
	h.HandleJoinVoice(s2, "beta")

	envs := c2.ofType(EventAllUsersInCall)
	if len(envs) != 2 {
		t.Fatalf("duplicate join should re-reply, got %d replies", len(envs))
	}
	if got := decodePeers(t, envs[1]); !reflect.DeepEqual(got, []string{"C1"}) {
		t.Fatalf("unexpected peer list on re-join: %v", got)
	}
	if got := h.CallRoster("beta"); !reflect.DeepEqual(got, []string{"C1", "C2"}) {
		t.Fatalf("duplicate join must not grow the roster: %v", got)
	}
}

func TestLeaveVoiceNotifiesRosterOnly(t *testing.T) {
	h := newTestHub()
	s1, _ := addSession(h, "C1")
	s2, c2 := addSession(h, "C2")
	bystander, bystanderConn := addSession(h, "C3")

	// The bystander shares the chat room but is not in the call.
	joinRoom(h, s1, "gamma", "ann", "")
	joinRoom(h, s2, "gamma", "ben", "")
	joinRoom(h, bystander, "gamma", "cat", "")
	h.HandleJoinVoice(s1, "gamma")
	h.HandleJoinVoice(s2, "gamma")

	h.HandleLeaveVoice(s1)

	envs := c2.ofType(EventUserLeftCall)
	if len(envs) != 1 {
		t.Fatalf("roster member expected one user_left_call, got %d", len(envs))
	}
	var left string
	if err := json.Unmarshal(envs[0].Payload, &left); err != nil {
		t.Fatalf("decode user_left_call: %v", err)
	}
	if left != "C1" {
		t.Fatalf("expected departed id C1, got %q", left)
	}
	if bystanderConn.count(EventUserLeftCall) != 0 {
		t.Fatal("chat-only member must not receive user_left_call")
	}
	if got := h.CallRoster("gamma"); !reflect.DeepEqual(got, []string{"C2"}) {
		t.Fatalf("unexpected roster after leave: %v", got)
	}
}

func TestLeaveVoiceNoOpWhenNotInCall(t *testing.T) {
	h := newTestHub()
	s1, _ := addSession(h, "C1")
	s2, c2 := addSession(h, "C2")
	h.HandleJoinVoice(s2, "delta")

	h.HandleLeaveVoice(s1)

	if c2.count(EventUserLeftCall) != 0 {
		t.Fatal("leave by a non-member must not notify anyone")
	}
}

func TestJoinVoiceSwitchesCalls(t *testing.T) {
	h := newTestHub()
	mover, moverConn := addSession(h, "C1")
	stayer, stayerConn := addSession(h, "C2")
	h.HandleJoinVoice(stayer, "old")
	h.HandleJoinVoice(mover, "old")

	h.HandleJoinVoice(mover, "new")

	if stayerConn.count(EventUserLeftCall) != 1 {
		t.Fatal("old call was not told the mover left")
	}
	if got := h.CallRoster("old"); !reflect.DeepEqual(got, []string{"C2"}) {
		t.Fatalf("mover still in old roster: %v", got)
	}
	if got := h.CallRoster("new"); !reflect.DeepEqual(got, []string{"C1"}) {
		t.Fatalf("unexpected new roster: %v", got)
	}
	if got := decodePeers(t, moverConn.ofType(EventAllUsersInCall)[1]); len(got) != 0 {
		t.Fatalf("mover should start alone in the new call, got peers %v", got)
	}
}

func TestSignalRelay(t *testing.T) {
	h := newTestHub()
	caller, callerConn := addSession(h, "caller")
	callee, calleeConn := addSession(h, "callee")
	h.HandleJoinVoice(caller, "eps")
	h.HandleJoinVoice(callee, "eps")

	offer := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	h.HandleSendingSignal(caller, SendingSignalPayload{
		UserToSignal: "callee",
		CallerID:     "caller",
		Signal:       offer,
	})

	envs := calleeConn.ofType(EventUserJoinedCall)
	if len(envs) != 1 {
		t.Fatalf("expected one user_joined_call, got %d", len(envs))
	}
	var joined UserJoinedCallPayload
	if err := json.Unmarshal(envs[0].Payload, &joined); err != nil {
		t.Fatalf("decode user_joined_call: %v", err)
	}
	if joined.CallerID != "caller" || string(joined.Signal) != string(offer) {
		t.Fatalf("offer relayed wrong: %+v", joined)
	}

	answer := json.RawMessage(`{"type":"answer","sdp":"v=0"}`)
	h.HandleReturningSignal(callee, ReturningSignalPayload{
		Signal:   answer,
		CallerID: "caller",
	})

	envs = callerConn.ofType(EventReturnedSignal)
	if len(envs) != 1 {
		t.Fatalf("expected one returned signal, got %d", len(envs))
	}
	var ret ReturnedSignalPayload
	if err := json.Unmarshal(envs[0].Payload, &ret); err != nil {
		t.Fatalf("decode returned signal: %v", err)
	}
	if ret.ID != "callee" || string(ret.Signal) != string(answer) {
		t.Fatalf("answer relayed wrong: %+v", ret)
	}
}

func TestSignalToUnknownTargetDropped(t *testing.T) {
	h := newTestHub()
	caller, callerConn := addSession(h, "caller")
	h.HandleJoinVoice(caller, "eps")

	h.HandleSendingSignal(caller, SendingSignalPayload{
		UserToSignal: "gone",
		CallerID:     "caller",
		Signal:       json.RawMessage(`{}`),
	})
	h.HandleReturningSignal(caller, ReturningSignalPayload{
		Signal:   json.RawMessage(`{}`),
		CallerID: "gone",
	})

	if n := len(callerConn.all()) - callerConn.count(EventAllUsersInCall) - callerConn.count(EventCallConfig); n != 0 {
		t.Fatalf("expected no relay events, got %d extra", n)
	}
}
