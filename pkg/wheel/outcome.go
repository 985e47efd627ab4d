package wheel

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"math"
	"math/rand"
	"strconv"

	"github.com/cbodonnell/roulette/pkg/table"
	"github.com/google/uuid"
)

// Outcome is a winning number chosen before the ball is launched.
type Outcome struct {
	Number int    `json:"number"`
	Proof  *Proof `json:"proof,omitempty"`
}

// Proof lets a player verify a provably fair outcome once the server seed is revealed.
type Proof struct {
	ServerSeed     string `json:"serverSeed"`
	ServerSeedHash string `json:"serverSeedHash"`
	ClientSeed     string `json:"clientSeed"`
	Nonce          uint64 `json:"nonce"`
}

// OutcomeSource picks the winning number of the next spin.
type OutcomeSource interface {
	Next() (Outcome, error)
}

// DeterministicSource always returns the same number.
type DeterministicSource struct {
	Number int
}

func (s DeterministicSource) Next() (Outcome, error) {
	if !table.ValidNumber(s.Number) {
		return Outcome{}, fmt.Errorf("invalid outcome number: %d", s.Number)
	}
	return Outcome{Number: s.Number}, nil
}

// RandomSource draws uniformly from the pockets.
type RandomSource struct {
	rng *rand.Rand
}

func NewRandomSource(seed int64) *RandomSource {
	return &RandomSource{rng: rand.New(rand.NewSource(seed))}
}

func (s *RandomSource) Next() (Outcome, error) {
	return Outcome{Number: s.rng.Intn(table.Pockets)}, nil
}

// ProvablyFairSource derives each number from HMAC-SHA512(serverSeed, clientSeed-nonce).
// The server seed hash is published up front and the seed itself is part of every proof.
type ProvablyFairSource struct {
	serverSeed string
	clientSeed string
	nonce      uint64
}

// NewProvablyFairSource creates a source. An empty client seed is replaced by a random one.
func NewProvablyFairSource(serverSeed string, clientSeed string) *ProvablyFairSource {
	if serverSeed == "" {
		serverSeed = uuid.NewString()
	}
	if clientSeed == "" {
		clientSeed = uuid.NewString()
	}
	return &ProvablyFairSource{serverSeed: serverSeed, clientSeed: clientSeed}
}

// Commitment returns the hash of the server seed.
func (s *ProvablyFairSource) Commitment() string {
	return hashSeed(s.serverSeed)
}

func (s *ProvablyFairSource) Next() (Outcome, error) {
	number, err := ProvablyFairNumber(s.serverSeed, s.clientSeed, s.nonce)
	if err != nil {
		return Outcome{}, err
	}
	proof := &Proof{
		ServerSeed:     s.serverSeed,
		ServerSeedHash: s.Commitment(),
		ClientSeed:     s.clientSeed,
		Nonce:          s.nonce,
	}
	s.nonce++
	return Outcome{Number: number, Proof: proof}, nil
}

// ProvablyFairNumber maps the first 52 bits of the HMAC to a pocket.
func ProvablyFairNumber(serverSeed string, clientSeed string, nonce uint64) (int, error) {
	h := hmac.New(sha512.New, []byte(serverSeed))
	h.Write([]byte(clientSeed + "-" + strconv.FormatUint(nonce, 10)))
	digest := hex.EncodeToString(h.Sum(nil))

	v, err := strconv.ParseUint(digest[:13], 16, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse hmac digest: %v", err)
	}
	f := float64(v) / math.Exp2(52)
	return int(math.Floor(f * table.Pockets)), nil
}

// Verify recomputes the number of a proof and checks the seed commitment.
func Verify(p Proof, number int) bool {
	if hashSeed(p.ServerSeed) != p.ServerSeedHash {
		return false
	}
	got, err := ProvablyFairNumber(p.ServerSeed, p.ClientSeed, p.Nonce)
	return err == nil && got == number
}

func hashSeed(seed string) string {
	sum := sha512.Sum512([]byte(seed))
	return hex.EncodeToString(sum[:])
}
