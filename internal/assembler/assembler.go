// assembler.go - deposit and withdrawal payload assembly.
//
// The Assembler is the orchestration layer: it walks a fixed state machine
// over the key, proof, codec and policy components and emits payload
// descriptors for the external builder to sign and submit. Every check runs
// before any side effect; a payload is only ever emitted whole.

package assembler

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"poolcore/internal/keys"
	"poolcore/internal/nullifier"
	"poolcore/internal/pool"
	"poolcore/internal/safety"
	"poolcore/internal/sigma"
)

// ErrPoolFull reports a deposit attempt against a ring with no free slots.
// Callers recover by selecting another pool of the same denomination.
var ErrPoolFull = errors.New("pool at capacity")

// ErrNotRingMember reports a withdrawal secret whose public point is absent
// from the pool's ring.
var ErrNotRingMember = errors.New("secret is not a member of the ring")

// Context extension slot assignment expected by the withdrawal contract.
const (
	slotKeyImage    = 0
	slotInsertProof = 1
)

// State is the assembler's position in the assembly pipeline.
type State int

const (
	StateIdle State = iota
	StateKeyPrepared
	StateProofGenerated
	StateExtensionEncoded
	StatePolicyValidated
	StateAssembled
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateKeyPrepared:
		return "key_prepared"
	case StateProofGenerated:
		return "proof_generated"
	case StateExtensionEncoded:
		return "extension_encoded"
	case StatePolicyValidated:
		return "policy_validated"
	case StateAssembled:
		return "assembled"
	case StateRejected:
		return "rejected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// DepositPayload is handed to the external transaction builder as the
// output update for one deposit.
type DepositPayload struct {
	PoolID         string
	NewPublicPoint *keys.Point
	Denomination   int64
}

// WithdrawalPayload carries everything the external builder and prover
// need to finish one withdrawal.
type WithdrawalPayload struct {
	PoolID                string
	KeyImage              *keys.Point
	InsertProof           []byte
	NewDigest             []byte
	ContextExtension      []byte
	RecipientDenomination int64
}

// SigningRequest is the descriptor sent across the prover boundary. The
// external Sigma-OR prover consumes the ring and extension and returns a
// signed transaction or a rejection; the assembler never inspects or
// retries that step.
type SigningRequest struct {
	Ring             []*keys.Point
	KeyImage         *keys.Point
	ContextExtension []byte
}

// Assembler drives one assembly at a time through the pipeline. Not safe
// for concurrent use; give each goroutine its own instance.
type Assembler struct {
	guard *safety.Guard
	log   zerolog.Logger
	now   func() time.Time

	state State
	err   error
}

// New returns an assembler gated by guard.
func New(guard *safety.Guard, logger zerolog.Logger) *Assembler {
	return &Assembler{
		guard: guard,
		log:   logger,
		now:   time.Now,
		state: StateIdle,
	}
}

// State reports the state reached by the most recent assembly.
func (a *Assembler) State() State {
	return a.state
}

// Err reports the error that moved the most recent assembly to
// StateRejected, or nil.
func (a *Assembler) Err() error {
	return a.err
}

func (a *Assembler) begin() {
	a.state = StateIdle
	a.err = nil
}

func (a *Assembler) advance(s State) {
	a.state = s
}

func (a *Assembler) reject(err error) error {
	a.state = StateRejected
	a.err = err
	a.log.Warn().Str("state", a.state.String()).Err(err).Msg("assembly rejected")
	return err
}

// AssembleDeposit generates a fresh stealth key pair and assembles a
// deposit payload for snapshot's pool. The secret is returned to the
// caller and retained nowhere else; losing it forfeits the deposit.
func (a *Assembler) AssembleDeposit(snapshot *pool.Snapshot) (*DepositPayload, *keys.Secret, error) {
	a.begin()

	if snapshot.IsFull() {
		return nil, nil, a.reject(fmt.Errorf("%w: pool %s ring holds %d of %d",
			ErrPoolFull, snapshot.PoolID, len(snapshot.Ring), snapshot.MaxRingSize))
	}

	secret, pub, err := keys.GenerateFreshSecret()
	if err != nil {
		return nil, nil, a.reject(err)
	}
	if snapshot.RingContains(pub) {
		// A fresh uniform key colliding with the ring means a broken RNG.
		return nil, nil, a.reject(fmt.Errorf("%w: generated key already present in ring", keys.ErrBannedPoint))
	}
	a.advance(StateKeyPrepared)

	if err := a.guard.ValidateSend(snapshot.Denomination, snapshot.PoolID); err != nil {
		return nil, nil, a.reject(err)
	}
	a.advance(StatePolicyValidated)

	a.recordAction(snapshot.Denomination)
	a.advance(StateAssembled)
	a.log.Info().
		Str("pool_id", snapshot.PoolID).
		Int64("denomination", snapshot.Denomination).
		Str("public_point", pub.String()).
		Msg("deposit assembled")

	return &DepositPayload{
		PoolID:         snapshot.PoolID,
		NewPublicPoint: pub,
		Denomination:   snapshot.Denomination,
	}, secret, nil
}

// AssembleWithdrawal derives the key image for secret, proves its insertion
// into the pool's nullifier set, encodes the context extension, gates the
// result on policy, and emits a withdrawal payload. depositHeight is the
// height the deposit actually confirmed at, carried in the bearer note; the
// pool's creation height would understate the elapsed delay for a recent
// deposit into an old pool.
//
// set is the caller's session authenticator tracking the pool's nullifier
// set across snapshots; pass nil to bootstrap one from the snapshot itself
// (possible for legacy lists and fresh tree pools only). The proof is bound
// to the snapshot's digest: if the session has advanced past it the attempt
// fails stale and the caller refetches. The session only records the
// insertion once every gate has passed; a rejected or dry-run assembly
// leaves it unchanged.
func (a *Assembler) AssembleWithdrawal(snapshot *pool.Snapshot, set *nullifier.Authenticator, secret *keys.Secret, recipientDenomination, depositHeight, currentHeight int64) (*WithdrawalPayload, error) {
	a.begin()

	if !snapshot.RingContains(secret.PublicPoint()) {
		return nil, a.reject(fmt.Errorf("%w: pool %s", ErrNotRingMember, snapshot.PoolID))
	}
	keyImage := keys.ComputeKeyImage(secret)
	a.advance(StateKeyPrepared)

	if set == nil {
		var err error
		set, err = nullifier.ParseSet(snapshot.NullifierSet)
		if err != nil {
			return nil, a.reject(err)
		}
	}
	snapshotDigest, err := nullifier.SnapshotDigest(snapshot.NullifierSet)
	if err != nil {
		return nil, a.reject(err)
	}
	proof, err := set.GenerateInsertProof(snapshotDigest, keyImage)
	if err != nil {
		return nil, a.reject(err)
	}
	a.advance(StateProofGenerated)

	extension, err := sigma.Encode([]sigma.Value{
		sigma.PointValue(slotKeyImage, keyImage),
		sigma.ByteSeqValue(slotInsertProof, proof.InsertProof),
	})
	if err != nil {
		return nil, a.reject(err)
	}
	a.advance(StateExtensionEncoded)

	if err := a.guard.ValidateWithdrawalTiming(depositHeight, currentHeight, len(snapshot.Ring)); err != nil {
		return nil, a.reject(err)
	}
	if err := a.guard.ValidateSend(recipientDenomination, snapshot.PoolID); err != nil {
		return nil, a.reject(err)
	}
	a.advance(StatePolicyValidated)

	if !a.guard.DryRun() {
		set.CommitInsert(keyImage)
	}
	a.recordAction(recipientDenomination)
	a.advance(StateAssembled)
	a.log.Info().
		Str("pool_id", snapshot.PoolID).
		Str("key_image", keyImage.String()).
		Int("proof_bytes", len(proof.InsertProof)).
		Msg("withdrawal assembled")

	return &WithdrawalPayload{
		PoolID:                snapshot.PoolID,
		KeyImage:              keyImage,
		InsertProof:           proof.InsertProof,
		NewDigest:             proof.ResultingDigest,
		ContextExtension:      extension,
		RecipientDenomination: recipientDenomination,
	}, nil
}

// BuildSigningRequest pairs an assembled withdrawal with its ring for the
// external prover.
func BuildSigningRequest(snapshot *pool.Snapshot, payload *WithdrawalPayload) *SigningRequest {
	return &SigningRequest{
		Ring:             snapshot.Ring,
		KeyImage:         payload.KeyImage,
		ContextExtension: payload.ContextExtension,
	}
}

func (a *Assembler) recordAction(amount int64) {
	if a.guard.DryRun() {
		return
	}
	a.guard.RecordAction(amount, a.now())
}
