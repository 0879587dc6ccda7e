package game

import (
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"redblue/internal/presence"
	"redblue/internal/scoring"
)

type State string

const (
	StateCreated  State = "created"
	StateOngoing  State = "ongoing"
	StateFinished State = "finished"
)

// Consent is a player's answer to a chat offer.
type Consent int

const (
	ConsentUnset Consent = iota
	ConsentAccepted
	ConsentDeclined
)

// Room is the live coordination record of one match. The durable fields
// (players, scores, histories, round, state) are mirrored to the store on
// every change; the rest is runtime-only. All mutation goes through the
// room mutex, and every change signals the notify channel so waiting
// sessions wake up instead of polling.
type Room struct {
	Code      string
	ID        string
	CreatedAt time.Time

	Hub     *presence.Hub
	ChatHub *presence.Hub
	Tracker *presence.Tracker

	store      MatchStore
	chatRounds map[int]bool

	mu     sync.Mutex
	notify chan struct{}

	players [2]string
	scores  [2]int
	choices [2][]int
	round   int
	state   State

	done    [2]bool
	online  [2]bool
	consent [2]Consent

	chatReady         bool
	chatFinished      bool
	chatResolvedRound int
	chatAccepted      bool

	terminated bool
}

func newRoom(code, id string, store MatchStore, chatRounds []int) *Room {
	rounds := make(map[int]bool, len(chatRounds))
	for _, r := range chatRounds {
		rounds[r] = true
	}
	return &Room{
		Code:       code,
		ID:         id,
		CreatedAt:  time.Now(),
		Hub:        presence.NewHub(0),
		ChatHub:    presence.NewHub(2),
		Tracker:    presence.NewTracker(),
		store:      store,
		chatRounds: rounds,
		notify:     make(chan struct{}),
		round:      1,
		state:      StateCreated,
	}
}

// changedLocked wakes every waiter. Callers hold r.mu.
func (r *Room) changedLocked() {
	close(r.notify)
	r.notify = make(chan struct{})
}

// Changed returns a channel that closes on the next room state change.
func (r *Room) Changed() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.notify
}

func (r *Room) recordLocked() MatchRecord {
	return MatchRecord{
		ID:       r.ID,
		Code:     r.Code,
		Player1:  r.players[0],
		Player2:  r.players[1],
		Score1:   r.scores[0],
		Score2:   r.scores[1],
		Choices1: historyString(r.choices[0]),
		Choices2: historyString(r.choices[1]),
		Round:    r.round,
		State:    r.state,
	}
}

func historyString(choices []int) string {
	var b strings.Builder
	for _, c := range choices {
		b.WriteString(strconv.Itoa(c))
	}
	return b.String()
}

// Record returns the current durable snapshot.
func (r *Room) Record() MatchRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recordLocked()
}

func (r *Room) persistLocked() {
	if err := r.store.Save(r.recordLocked()); err != nil {
		log.Printf("[Room %s] persist: %v\n", r.Code, err)
	}
}

func (r *Room) slotLocked(name string) (int, bool) {
	for i, p := range r.players {
		if p != "" && p == name {
			return i, true
		}
	}
	return 0, false
}

// Join takes a slot for a fresh player. The room must still be joinable;
// a third distinct name is rejected.
func (r *Room) Join(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateFinished {
		return ErrWrongState
	}
	if i, ok := r.slotLocked(name); ok {
		// Same name coming back (e.g. page reload before the game
		// started): reuse the slot.
		r.online[i] = true
		r.changedLocked()
		return nil
	}
	for i := range r.players {
		if r.players[i] == "" {
			r.players[i] = name
			r.online[i] = true
			r.persistLocked()
			r.changedLocked()
			return nil
		}
	}
	return ErrRoomFull
}

// Rejoin validates a reconnection attempt: the token must match exactly
// and the grace window since the last disconnect must not have elapsed.
func (r *Room) Rejoin(name, token string, window time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateOngoing {
		return ErrWrongState
	}
	i, ok := r.slotLocked(name)
	if !ok || !r.Tracker.Validate(name, token) {
		return ErrInvalidToken
	}
	if r.Tracker.Expired(name, window, time.Now()) {
		return ErrExpiredToken
	}
	r.online[i] = true
	r.Tracker.ClearStamp(name)
	r.changedLocked()
	return nil
}

// Activate flips created → ongoing once both slots are taken. Reports
// whether this call performed the transition.
func (r *Room) Activate() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateCreated || r.players[0] == "" || r.players[1] == "" {
		return false
	}
	r.state = StateOngoing
	r.persistLocked()
	r.changedLocked()
	return true
}

func (r *Room) BothJoined() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.players[0] != "" && r.players[1] != ""
}

func (r *Room) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Room) Round() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.round
}

func (r *Room) Players() [2]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.players
}

func (r *Room) Scores() [2]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scores
}

// Done reports whether name already submitted a choice this round.
func (r *Room) Done(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.slotLocked(name)
	return ok && r.done[i]
}

// SubmitChoice records one player's validated choice. The last-arriving
// writer applies the scoring delta, advances the round, resets the done
// flags and persists — all under the room mutex, so same-tick arrivals
// cannot lose updates. Reports whether this call advanced the round.
func (r *Room) SubmitChoice(name string, choice int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.slotLocked(name)
	if !ok || r.state != StateOngoing || r.done[i] {
		return false
	}
	r.choices[i] = append(r.choices[i], choice)
	r.done[i] = true

	if !(r.done[0] && r.done[1]) {
		r.persistLocked()
		r.changedLocked()
		return false
	}

	c1 := r.choices[0][len(r.choices[0])-1]
	c2 := r.choices[1][len(r.choices[1])-1]
	d1, d2 := scoring.Score(c1, c2, scoring.IsBonusRound(r.round))
	r.scores[0] += d1
	r.scores[1] += d2
	r.round++
	r.done[0], r.done[1] = false, false
	if r.round > scoring.MaxRounds {
		r.state = StateFinished
	}
	r.persistLocked()
	r.changedLocked()
	return true
}

// RoundResult returns the cumulative scores and the choices of round n.
// ok is false until both choices for that round are in.
func (r *Room) RoundResult(n int) (scores [2]int, choices [2]int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n < 1 || len(r.choices[0]) < n || len(r.choices[1]) < n {
		return scores, choices, false
	}
	return r.scores, [2]int{r.choices[0][n-1], r.choices[1][n-1]}, true
}

// Forfeit closes out the match against name. Reports false when the
// match already finished.
func (r *Room) Forfeit(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateFinished {
		return false
	}
	i, ok := r.slotLocked(name)
	if !ok {
		return false
	}
	j := 1 - i
	abandoned, remaining := scoring.ForfeitScore(r.scores[i], r.scores[j], r.round)
	r.scores[i] = abandoned
	r.scores[j] = remaining
	r.state = StateFinished
	r.persistLocked()
	r.changedLocked()
	return true
}

// SetOffline marks name offline and stamps its grace window. When both
// players are gone the match finishes on the spot. Reports whether both
// sides are now offline.
func (r *Room) SetOffline(name string) (bothOffline bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.slotLocked(name)
	if !ok {
		return false
	}
	r.online[i] = false
	r.Tracker.StampDisconnect(name, time.Now())
	bothOffline = !r.online[0] && !r.online[1] && r.players[0] != "" && r.players[1] != ""
	if bothOffline && r.state == StateOngoing {
		r.state = StateFinished
		r.persistLocked()
	}
	r.changedLocked()
	return bothOffline
}

// ExactlyOneOnline reports whether precisely one player is connected.
func (r *Room) ExactlyOneOnline() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.online[0] != r.online[1]
}

// Online reports whether name is currently connected.
func (r *Room) Online(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.slotLocked(name)
	return ok && r.online[i]
}

// Winner names the player with the strictly higher score. A tie declares
// no winner.
func (r *Room) Winner() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.scores[0] > r.scores[1]:
		return r.players[0]
	case r.scores[1] > r.scores[0]:
		return r.players[1]
	default:
		return ""
	}
}

// MarkTerminated claims the one-shot teardown latch. Exactly one caller
// across all sessions and the disconnect monitor gets true.
func (r *Room) MarkTerminated() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.terminated {
		return false
	}
	r.terminated = true
	if r.state != StateFinished {
		r.state = StateFinished
		r.persistLocked()
	}
	r.changedLocked()
	return true
}

func (r *Room) Terminated() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.terminated
}

// ChatEligible reports whether round n should run the chat offer.
func (r *Room) ChatEligible(n int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chatRounds[n] && !r.chatFinished && r.chatResolvedRound < n
}

// SetConsent records name's answer to the chat offer of round n. When
// this answer completes the pair the offer resolves: both accepts open
// the chat, any decline clears the flags back to unset. The resolving
// caller (and only it) gets resolver == true so broadcasts happen once.
func (r *Room) SetConsent(name string, accepted bool, n int) (resolved, bothAccepted, resolver bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.slotLocked(name)
	if !ok {
		return false, false, false
	}
	if accepted {
		r.consent[i] = ConsentAccepted
	} else {
		r.consent[i] = ConsentDeclined
	}
	if r.consent[0] == ConsentUnset || r.consent[1] == ConsentUnset {
		r.changedLocked()
		return false, false, false
	}
	bothAccepted = r.consent[0] == ConsentAccepted && r.consent[1] == ConsentAccepted
	r.chatResolvedRound = n
	r.chatAccepted = bothAccepted
	if bothAccepted {
		r.chatReady = true
	} else {
		r.consent[0], r.consent[1] = ConsentUnset, ConsentUnset
	}
	r.changedLocked()
	return true, bothAccepted, true
}

// ChatResolution reports whether the chat offer of round n has resolved
// and with what outcome.
func (r *Room) ChatResolution(n int) (resolved, accepted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chatResolvedRound >= n, r.chatAccepted
}

func (r *Room) ChatReady() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chatReady
}

func (r *Room) ChatFinished() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chatFinished
}

// FinishChat ends the chat session. Reports whether this call flipped
// the flag (teardown broadcasts must happen once).
func (r *Room) FinishChat() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.chatFinished {
		return false
	}
	r.chatFinished = true
	r.changedLocked()
	return true
}

// ChatAdmits checks the chat endpoint gates for name: ongoing match,
// registered identity, no explicit decline on record, chat not over.
func (r *Room) ChatAdmits(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateOngoing {
		return ErrWrongState
	}
	if _, ok := r.slotLocked(name); !ok {
		return ErrNotFound
	}
	if r.consent[0] == ConsentDeclined || r.consent[1] == ConsentDeclined {
		return ErrWrongState
	}
	if r.chatFinished {
		return ErrWrongState
	}
	return nil
}

// Reset restores the room to its pristine created state. Debug use only.
func (r *Room) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.players = [2]string{}
	r.scores = [2]int{}
	r.choices = [2][]int{}
	r.round = 1
	r.state = StateCreated
	r.done = [2]bool{}
	r.online = [2]bool{}
	r.consent = [2]Consent{}
	r.chatReady = false
	r.chatFinished = false
	r.chatResolvedRound = 0
	r.chatAccepted = false
	r.terminated = false
	r.Tracker.Reset()
	r.persistLocked()
	r.changedLocked()
}
