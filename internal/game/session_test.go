package game

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"redblue/internal/presence"
)

// testPlayer is one simulated game connection: a hub client with no
// underlying socket, an inbox standing in for the read pump, and the
// session goroutine driving them.
type testPlayer struct {
	name   string
	token  string
	client *presence.Client
	inbox  chan presence.ClientMessage
	done   chan struct{}
}

func connectPlayer(t *testing.T, reg *Registry, room *Room, name string) *testPlayer {
	t.Helper()
	client := presence.NewClient(name, nil)
	client.Send = make(chan []byte, 256)
	if err := room.Hub.Register(client); err != nil {
		t.Fatal(err)
	}
	p := &testPlayer{
		name:   name,
		token:  room.Tracker.Token(name),
		client: client,
		inbox:  make(chan presence.ClientMessage, 16),
		done:   make(chan struct{}),
	}
	go func() {
		defer close(p.done)
		NewSession(reg, room, client, p.inbox).Run(context.Background())
	}()
	return p
}

// startMatch joins both names and spins up their sessions.
func startMatch(t *testing.T, reg *Registry, room *Room, names ...string) []*testPlayer {
	t.Helper()
	for _, name := range names {
		if err := room.Join(name); err != nil {
			t.Fatal(err)
		}
	}
	players := make([]*testPlayer, 0, len(names))
	for _, name := range names {
		players = append(players, connectPlayer(t, reg, room, name))
	}
	return players
}

func (p *testPlayer) send(event, content string) {
	p.inbox <- presence.ClientMessage{Event: event, Content: content}
}

// expect drains the player's send channel until a frame with the wanted
// event arrives, skipping everything in between.
func (p *testPlayer) expect(t *testing.T, event string) presence.ServerMessage {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case data, ok := <-p.client.Send:
			if !ok {
				t.Fatalf("%s: send channel closed while waiting for %q", p.name, event)
			}
			var msg presence.ServerMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				t.Fatalf("%s: undecodable frame %q: %v", p.name, data, err)
			}
			if msg.Event == event {
				return msg
			}
		case <-deadline:
			t.Fatalf("%s: timed out waiting for %q", p.name, event)
		}
	}
}

func (p *testPlayer) waitDone(t *testing.T) {
	t.Helper()
	select {
	case <-p.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("%s: session did not exit", p.name)
	}
}

// playRound scripts one complete round for both players and returns the
// cumulative scores reported with the round result.
func playRound(t *testing.T, players []*testPlayer, round int, choices [2]string) []int {
	t.Helper()
	for _, p := range players {
		msg := p.expect(t, EvRoundStart)
		if msg.Round != round {
			t.Fatalf("%s: round_start for round %d, want %d", p.name, msg.Round, round)
		}
	}
	players[0].send(EvChoice, choices[0])
	players[1].send(EvChoice, choices[1])
	var scores []int
	for _, p := range players {
		msg := p.expect(t, EvRoundOver)
		if msg.Round != round {
			t.Fatalf("%s: round_over for round %d, want %d", p.name, msg.Round, round)
		}
		scores = msg.Scores
	}
	return scores
}

func TestSession_FullMatch(t *testing.T) {
	reg, store := newTestRegistry(t, time.Minute, nil)
	room, err := reg.CreateRoom()
	if err != nil {
		t.Fatal(err)
	}
	players := startMatch(t, reg, room, "Alice", "Bob")
	alice, bob := players[0], players[1]

	// Alice plays blue every round, Bob red: +6/-6 per round, doubled
	// on rounds 9 and 10.
	for r := 1; r <= 10; r++ {
		scores := playRound(t, players, r, [2]string{"1", "0"})
		want := 6 * r
		if r >= 9 {
			want = 48 + 12*(r-8)
		}
		if scores[0] != want || scores[1] != -want {
			t.Fatalf("round %d scores = %v, want [%d %d]", r, scores, want, -want)
		}
	}

	over := alice.expect(t, EvGameOver)
	if over.Winner != "Alice" {
		t.Errorf("winner = %q, want Alice", over.Winner)
	}
	if over.Scores[0] != 72 || over.Scores[1] != -72 {
		t.Errorf("final scores = %v, want [72 -72]", over.Scores)
	}
	bob.expect(t, EvGameOver)

	alice.waitDone(t)
	bob.waitDone(t)

	if reg.Get(room.Code) != nil {
		t.Error("finished room should leave the registry")
	}
	if _, err := store.GetByCode(room.Code); !errors.Is(err, ErrNotFound) {
		t.Errorf("finished match record should be deleted, got %v", err)
	}
}

func TestSession_TieDeclaresNoWinner(t *testing.T) {
	reg, _ := newTestRegistry(t, time.Minute, nil)
	room, _ := reg.CreateRoom()
	players := startMatch(t, reg, room, "Alice", "Bob")

	for r := 1; r <= 10; r++ {
		playRound(t, players, r, [2]string{"0", "0"})
	}

	over := players[0].expect(t, EvGameOver)
	if over.Winner != "" {
		t.Errorf("tie should declare no winner, got %q", over.Winner)
	}
	if over.Scores[0] != over.Scores[1] {
		t.Errorf("symmetric play should tie, got %v", over.Scores)
	}
	players[0].waitDone(t)
	players[1].waitDone(t)
}

func TestSession_InvalidChoiceReprompts(t *testing.T) {
	reg, _ := newTestRegistry(t, time.Minute, nil)
	room, _ := reg.CreateRoom()
	players := startMatch(t, reg, room, "Alice", "Bob")
	alice, bob := players[0], players[1]

	alice.expect(t, EvRoundStart)
	bob.expect(t, EvRoundStart)

	alice.send(EvChoice, "7")
	alice.expect(t, EvIncorrectFormat)
	alice.send(EvChoice, "red")
	alice.expect(t, EvIncorrectFormat)
	alice.send("no_such_event", "")
	alice.expect(t, EvMalformedRequest)

	// The session survives the garbage and the round still completes.
	alice.send(EvChoice, "0")
	bob.send(EvChoice, "0")
	alice.expect(t, EvRoundOver)
	bob.expect(t, EvRoundOver)

	bob.send(EvForfeit, "")
	alice.expect(t, EvGameOver)
	alice.waitDone(t)
	bob.waitDone(t)
}

func TestSession_ForfeitAppliesPenalty(t *testing.T) {
	reg, store := newTestRegistry(t, time.Minute, nil)
	room, _ := reg.CreateRoom()
	players := startMatch(t, reg, room, "Alice", "Bob")
	alice, bob := players[0], players[1]

	playRound(t, players, 1, [2]string{"1", "0"}) // Alice 6, Bob -6

	alice.expect(t, EvRoundStart)
	bob.expect(t, EvRoundStart)
	alice.send(EvForfeit, "")

	notice := bob.expect(t, EvForfeitNotice)
	if notice.From != "Alice" {
		t.Errorf("forfeit notice from %q, want Alice", notice.From)
	}

	// Alice gives up at round 2 holding 6: 6 - 6*8 - 24 + 12 = -54.
	// Bob holds -6 and collects: -6 + 6*8 - 12 = 30.
	over := bob.expect(t, EvGameOver)
	if over.Scores[0] != -54 || over.Scores[1] != 30 {
		t.Errorf("final scores = %v, want [-54 30]", over.Scores)
	}
	if over.Winner != "Bob" {
		t.Errorf("winner = %q, want Bob", over.Winner)
	}

	alice.waitDone(t)
	bob.waitDone(t)
	if _, err := store.GetByCode(room.Code); !errors.Is(err, ErrNotFound) {
		t.Error("forfeited match record should be deleted")
	}
}

func TestSession_ReconnectWithinWindow(t *testing.T) {
	reg, _ := newTestRegistry(t, 500*time.Millisecond, nil)
	room, _ := reg.CreateRoom()
	players := startMatch(t, reg, room, "Alice", "Bob")
	alice, bob := players[0], players[1]

	alice.expect(t, EvRoundStart)
	bob.expect(t, EvRoundStart)

	// Bob's transport dies mid-round.
	close(bob.inbox)
	bob.waitDone(t)
	left := alice.expect(t, EvPlayerLeft)
	if left.From != "Bob" {
		t.Errorf("player_left from %q, want Bob", left.From)
	}

	// Bob comes back inside the grace window with his token.
	if err := room.Rejoin("Bob", bob.token, reg.Window()); err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	bob2 := connectPlayer(t, reg, room, "Bob")
	bob2.expect(t, EvRoundStart)

	// Outlive the original window: the monitor must have stood down.
	time.Sleep(700 * time.Millisecond)
	if reg.Get(room.Code) != room {
		t.Fatal("room should survive past the window after a reconnect")
	}
	if room.State() != StateOngoing {
		t.Fatalf("state = %q, want %q", room.State(), StateOngoing)
	}

	// The interrupted round still completes.
	alice.send(EvChoice, "1")
	bob2.send(EvChoice, "0")
	alice.expect(t, EvRoundOver)
	bob2.expect(t, EvRoundOver)

	bob2.send(EvForfeit, "")
	alice.expect(t, EvGameOver)
	alice.waitDone(t)
	bob2.waitDone(t)
}

func TestSession_StaleDropAfterReconnect(t *testing.T) {
	reg, _ := newTestRegistry(t, 300*time.Millisecond, nil)
	room, _ := reg.CreateRoom()
	players := startMatch(t, reg, room, "Alice", "Bob")
	alice, bob := players[0], players[1]

	alice.expect(t, EvRoundStart)
	bob.expect(t, EvRoundStart)

	// Bob reconnects before the server notices his old transport died
	// (half-open connection): the rejoin succeeds and the hub entry is
	// replaced while the first session is still running.
	if err := room.Rejoin("Bob", bob.token, reg.Window()); err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	bob2 := connectPlayer(t, reg, room, "Bob")
	bob2.expect(t, EvRoundStart)

	// Now the dead transport surfaces. The stale session must not mark
	// the live replacement offline or start a grace watcher.
	close(bob.inbox)
	bob.waitDone(t)

	if !room.Online("Bob") {
		t.Fatal("live replacement should stay online after the stale drop")
	}
	if _, ok := room.Tracker.DisconnectedAt("Bob"); ok {
		t.Fatal("stale drop should not stamp a disconnect")
	}

	// Outlive the grace window: nothing may force-finish the game.
	time.Sleep(500 * time.Millisecond)
	if reg.Get(room.Code) != room {
		t.Fatal("room was torn down while both players were live")
	}
	if room.State() != StateOngoing {
		t.Fatalf("state = %q, want %q", room.State(), StateOngoing)
	}

	// The interrupted round still completes on the new connection.
	alice.send(EvChoice, "1")
	bob2.send(EvChoice, "0")
	alice.expect(t, EvRoundOver)
	bob2.expect(t, EvRoundOver)

	bob2.send(EvForfeit, "")
	alice.expect(t, EvGameOver)
	alice.waitDone(t)
	bob2.waitDone(t)
}

func TestSession_DisconnectWindowExpires(t *testing.T) {
	reg, store := newTestRegistry(t, 200*time.Millisecond, nil)
	room, _ := reg.CreateRoom()
	players := startMatch(t, reg, room, "Alice", "Bob")
	alice, bob := players[0], players[1]

	alice.expect(t, EvRoundStart)
	bob.expect(t, EvRoundStart)

	close(bob.inbox)
	bob.waitDone(t)
	alice.expect(t, EvPlayerLeft)

	alice.expect(t, EvTimeout)
	final := alice.expect(t, EvTimeoutScore)
	if len(final.Players) != 2 {
		t.Errorf("timeout score should list both players, got %v", final.Players)
	}
	alice.waitDone(t)

	// The live room goes away, the record survives as finished.
	waitFor(t, func() bool { return reg.Get(room.Code) == nil })
	rec, err := store.GetByCode(room.Code)
	if err != nil {
		t.Fatalf("timed-out match record should survive: %v", err)
	}
	if rec.State != StateFinished {
		t.Errorf("record state = %q, want %q", rec.State, StateFinished)
	}
}

func TestSession_ChatDeclineResumesPlay(t *testing.T) {
	reg, _ := newTestRegistry(t, time.Minute, []int{2})
	room, _ := reg.CreateRoom()
	players := startMatch(t, reg, room, "Alice", "Bob")
	alice, bob := players[0], players[1]

	playRound(t, players, 1, [2]string{"0", "0"})

	offer := alice.expect(t, EvChatPossibility)
	if offer.Round != 2 {
		t.Errorf("chat offer on round %d, want 2", offer.Round)
	}
	bob.expect(t, EvChatPossibility)

	alice.send(EvChatAccept, "")
	bob.expect(t, EvChatAccepted)
	bob.send(EvChatDecline, "")
	alice.expect(t, EvChatDeclined)

	// Play resumes without a chat.
	alice.expect(t, EvRoundStart)
	bob.expect(t, EvRoundStart)

	bob.send(EvForfeit, "")
	alice.expect(t, EvGameOver)
	alice.waitDone(t)
	bob.waitDone(t)
}

func TestSession_ChatAcceptOpensSideChannel(t *testing.T) {
	reg, _ := newTestRegistry(t, time.Minute, []int{2})
	room, _ := reg.CreateRoom()
	players := startMatch(t, reg, room, "Alice", "Bob")
	alice, bob := players[0], players[1]

	playRound(t, players, 1, [2]string{"0", "0"})

	alice.expect(t, EvChatPossibility)
	bob.expect(t, EvChatPossibility)
	alice.send(EvChatAccept, "")
	bob.send(EvChatAccept, "")
	alice.expect(t, EvChatStart)
	bob.expect(t, EvChatStart)
	alice.expect(t, EvHold)
	bob.expect(t, EvHold)

	// Only match identities pass the chat gate.
	if err := room.ChatAdmits("Carol"); err == nil {
		t.Error("a third identity should be rejected from the chat")
	}

	chatAlice := startChat(t, room, "Alice")
	chatAlice.expect(t, EvChatWaitingJoin)
	chatBob := startChat(t, room, "Bob")
	chatAlice.expect(t, EvChatOpen)
	chatBob.expect(t, EvChatOpen)

	// And the chat hub itself is capped at the two players.
	if err := room.ChatHub.Register(presence.NewClient("Carol", nil)); err == nil {
		t.Error("chat hub should refuse a third member")
	}

	chatAlice.send(EvChatMessage, "hello")
	got := chatBob.expect(t, EvChatMessage)
	if got.From != "Alice" || got.Content != "hello" {
		t.Errorf("chat frame = %+v, want hello from Alice", got)
	}

	chatAlice.send(EvChatMessage, "")
	chatAlice.expect(t, EvIncorrectFormat)

	// Stopping the chat releases both held game sessions.
	chatBob.send(EvChatStop, "")
	chatAlice.expect(t, EvChatEnded)
	alice.expect(t, EvRoundStart)
	bob.expect(t, EvRoundStart)
	close(chatAlice.inbox)
	close(chatBob.inbox)

	bob.send(EvForfeit, "")
	alice.expect(t, EvGameOver)
	alice.waitDone(t)
	bob.waitDone(t)
}

func TestSession_ChatNotOfferedTwice(t *testing.T) {
	reg, _ := newTestRegistry(t, time.Minute, []int{2})
	room, _ := reg.CreateRoom()
	players := startMatch(t, reg, room, "Alice", "Bob")
	alice, bob := players[0], players[1]

	playRound(t, players, 1, [2]string{"0", "0"})

	alice.expect(t, EvChatPossibility)
	bob.expect(t, EvChatPossibility)
	alice.send(EvChatDecline, "")
	bob.expect(t, EvChatDeclined)
	bob.send(EvChatDecline, "")
	alice.expect(t, EvChatDeclined)

	// Round 2 plays out normally and the offer must not come back even
	// though the round counter still sits on a chat round beforehand.
	playRound(t, players, 2, [2]string{"0", "0"})
	msg := alice.expect(t, EvRoundStart)
	if msg.Round != 3 {
		t.Fatalf("round %d after decline, want 3", msg.Round)
	}
	bob.expect(t, EvRoundStart)

	bob.send(EvForfeit, "")
	alice.expect(t, EvGameOver)
	alice.waitDone(t)
	bob.waitDone(t)
}

// startChat registers a chat-side connection for name and runs its
// session, mirroring what the chat endpoint does after its gates.
func startChat(t *testing.T, room *Room, name string) *testPlayer {
	t.Helper()
	if err := room.ChatAdmits(name); err != nil {
		t.Fatalf("%s not admitted to chat: %v", name, err)
	}
	client := presence.NewClient(name, nil)
	client.Send = make(chan []byte, 64)
	if err := room.ChatHub.Register(client); err != nil {
		t.Fatal(err)
	}
	p := &testPlayer{
		name:   name,
		client: client,
		inbox:  make(chan presence.ClientMessage, 16),
		done:   make(chan struct{}),
	}
	go func() {
		defer close(p.done)
		NewChatSession(room, client, p.inbox).Run(context.Background())
	}()
	return p
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

// Guards against the first joiner racing past an empty room.
func TestSession_FirstJoinerWaits(t *testing.T) {
	reg, _ := newTestRegistry(t, time.Minute, nil)
	room, _ := reg.CreateRoom()

	if err := room.Join("Alice"); err != nil {
		t.Fatal(err)
	}
	alice := connectPlayer(t, reg, room, "Alice")
	alice.expect(t, EvJoinWaiting)

	if err := room.Join("Bob"); err != nil {
		t.Fatal(err)
	}
	bob := connectPlayer(t, reg, room, "Bob")

	// Both sessions land in round one once the room fills.
	msg := alice.expect(t, EvRoundStart)
	if msg.Round != 1 {
		t.Fatalf("round = %d, want 1", msg.Round)
	}
	bob.expect(t, EvRoundStart)

	bob.send(EvForfeit, "")
	alice.expect(t, EvGameOver)
	alice.waitDone(t)
	bob.waitDone(t)
}
