package game

// MatchRecord is the durable view of one match, keyed by the shareable
// room code and by a stable internal id. Empty player names mean the
// slot was never taken. Choice histories are strings of '0'/'1' digits,
// one per completed submission, in round order.
type MatchRecord struct {
	ID       string
	Code     string
	Player1  string
	Player2  string
	Score1   int
	Score2   int
	Choices1 string
	Choices2 string
	Round    int
	State    State
}

// MatchStore is the persistence collaborator the core needs: a plain
// record store with point reads, filtered scans and whole-record saves.
type MatchStore interface {
	Create(rec MatchRecord) error
	GetByCode(code string) (MatchRecord, error)
	GetByID(id string) (MatchRecord, error)
	Save(rec MatchRecord) error
	// List returns one page of records plus the total record and page
	// counts for the given filters. Empty filters match everything.
	List(state State, code string, pageSize, pageNumber int) ([]MatchRecord, int, int, error)
	Delete(code string) error
}
