package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Gen hands out monotonic ULIDs: ids made within the same millisecond
// still sort in creation order.
type Gen struct {
	mu   sync.Mutex
	mono io.Reader
	now  func() time.Time
}

// NewGen returns a generator whose entropy is drawn from seed.
func NewGen(seed int64) *Gen {
	return &Gen{
		mono: ulid.Monotonic(rand.New(rand.NewSource(seed)), 0),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

var std = NewGen(cryptoSeed())

func cryptoSeed() int64 {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return seed
}

func (g *Gen) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(g.now()), g.mono)
	if err != nil {
		// only on entropy exhaustion within one millisecond
		panic(err)
	}
	return id.String()
}

// New returns a ULID from the process-wide generator. Subscriptions and
// journal runs are keyed by these.
func New() string {
	return std.New()
}

// Time returns the creation time encoded in id.
func Time(id string) (time.Time, error) {
	u, err := ulid.Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(u.Time()), nil
}
