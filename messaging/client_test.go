// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/concord-chat/concord/lib/ref"
)

func testSession(t *testing.T, handler http.Handler) *DirectSession {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{HomeserverURL: server.URL})
	if err != nil {
		t.Fatal(err)
	}
	userID, err := ref.ParseUserID("@mod:concord.chat")
	if err != nil {
		t.Fatal(err)
	}
	return client.SessionFromToken(userID, "test-token")
}

func TestSendStateEventPathAndAuth(t *testing.T) {
	var gotPath, gotAuth, gotMethod string
	session := testSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotAuth = r.Header.Get("Authorization")
		gotMethod = r.Method
		json.NewEncoder(w).Encode(SendEventResponse{EventID: "$abc"})
	}))

	roomID, _ := ref.ParseRoomID("!space:concord.chat")
	eventID, err := session.SendStateEvent(context.Background(), roomID, "m.concord.role", "moderators", map[string]any{"name": "Mods"})
	if err != nil {
		t.Fatal(err)
	}
	if eventID != "$abc" {
		t.Errorf("event ID = %q, want %q", eventID, "$abc")
	}
	if gotMethod != http.MethodPut {
		t.Errorf("method = %q, want PUT", gotMethod)
	}
	want := "/_matrix/client/v3/rooms/%21space:concord.chat/state/m.concord.role/moderators"
	if gotPath != want {
		t.Errorf("path = %q, want %q", gotPath, want)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("auth header = %q", gotAuth)
	}
}

func TestBanRequestBody(t *testing.T) {
	var got BanRequest
	session := testSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding ban body: %v", err)
		}
		w.Write([]byte("{}"))
	}))

	roomID, _ := ref.ParseRoomID("!space:concord.chat")
	target, _ := ref.ParseUserID("@spammer:concord.chat")
	if err := session.BanUser(context.Background(), roomID, target, "spam"); err != nil {
		t.Fatal(err)
	}
	if got.UserID != target {
		t.Errorf("user_id = %q, want %q", got.UserID, target)
	}
	if got.Reason != "spam" {
		t.Errorf("reason = %q, want %q", got.Reason, "spam")
	}
}

func TestMatrixErrorMapping(t *testing.T) {
	session := testSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"errcode":"M_FORBIDDEN","error":"not allowed"}`))
	}))

	roomID, _ := ref.ParseRoomID("!space:concord.chat")
	target, _ := ref.ParseUserID("@spammer:concord.chat")
	err := session.KickUser(context.Background(), roomID, target, "")
	if err == nil {
		t.Fatal("kick against forbidden endpoint succeeded")
	}

	var matrixErr *MatrixError
	if !errors.As(err, &matrixErr) {
		t.Fatalf("error %v is not a *MatrixError", err)
	}
	if matrixErr.Code != ErrCodeForbidden {
		t.Errorf("errcode = %q, want %q", matrixErr.Code, ErrCodeForbidden)
	}
	if matrixErr.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", matrixErr.StatusCode, http.StatusForbidden)
	}
	if !IsMatrixError(err, ErrCodeForbidden) {
		t.Error("IsMatrixError(err, M_FORBIDDEN) = false")
	}
}

func TestGetRoomMembersFlattens(t *testing.T) {
	session := testSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(RoomMembersResponse{Chunk: []MemberEvent{
			{StateKey: "@alice:concord.chat", Content: MemberContent{Membership: "join", DisplayName: "Alice"}},
			{StateKey: "@banned:concord.chat", Content: MemberContent{Membership: "ban"}},
		}})
	}))

	roomID, _ := ref.ParseRoomID("!general:concord.chat")
	members, err := session.GetRoomMembers(context.Background(), roomID)
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 2 {
		t.Fatalf("len(members) = %d, want 2", len(members))
	}
	if members[0].UserID != "@alice:concord.chat" || members[0].Membership != "join" {
		t.Errorf("unexpected first member: %+v", members[0])
	}
	if members[1].Membership != "ban" {
		t.Errorf("unexpected second member: %+v", members[1])
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(ClientConfig{}); err == nil {
		t.Error("NewClient with empty URL succeeded")
	}
}
