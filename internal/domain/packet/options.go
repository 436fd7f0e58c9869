package packet

const (
	// DefaultRecentLimit is the number of packets listed by Recent.
	DefaultRecentLimit = 10
	// DefaultSearchLimit caps admin search results.
	DefaultSearchLimit = 20
)

// SearchOptions filters packets by owner.
// OwnerID and Username are combined with AND; Username is a case-insensitive substring.
type SearchOptions struct {
	OwnerID  int64
	Username string
	Limit    int
}
