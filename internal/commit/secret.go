// secret.go - deposit secrets and bearer notes.
//
// A DepositSecret is the client-side record of one deposit: the blinding
// factor, the resulting commitment, the amount and the pool tier it was
// made into. Exported as a bearer note it is a self-contained JSON blob
// whose possession is sufficient to later prove and spend the deposit, so
// callers must treat exported notes like cash.

package commit

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"poolcore/internal/keys"
)

// bearerNoteVersion is bumped whenever the exported layout changes.
const bearerNoteVersion = 2

// DepositSecret holds everything needed to later withdraw a deposit. The
// deposit height feeds the withdrawal delay check: the pool's creation
// height is no substitute, since a deposit can land long after the pool
// opened.
type DepositSecret struct {
	Blinding      *keys.Secret
	Commitment    *keys.Point
	Amount        int64
	Tier          string
	DepositHeight int64
}

// NewDepositSecret draws a fresh blinding factor and commits to amount.
func NewDepositSecret(amount int64, tier string, depositHeight int64) (*DepositSecret, error) {
	blinding, _, err := keys.GenerateFreshSecret()
	if err != nil {
		return nil, err
	}
	c, err := Commit(blinding, amount)
	if err != nil {
		return nil, err
	}
	return &DepositSecret{
		Blinding:      blinding,
		Commitment:    c,
		Amount:        amount,
		Tier:          tier,
		DepositHeight: depositHeight,
	}, nil
}

// bearerNote is the JSON wire form of a DepositSecret.
type bearerNote struct {
	Type          string `json:"type"`
	Version       int    `json:"version"`
	Blinding      string `json:"blinding_factor"`
	Commitment    string `json:"commitment"`
	Amount        int64  `json:"amount"`
	Tier          string `json:"tier"`
	DepositHeight int64  `json:"deposit_height"`
}

// ExportNote serializes the secret as a bearer note.
func (d *DepositSecret) ExportNote() ([]byte, error) {
	note := bearerNote{
		Type:          "pool_deposit_note",
		Version:       bearerNoteVersion,
		Blinding:      hex.EncodeToString(d.Blinding.Bytes()),
		Commitment:    d.Commitment.String(),
		Amount:        d.Amount,
		Tier:          d.Tier,
		DepositHeight: d.DepositHeight,
	}
	return json.MarshalIndent(note, "", "  ")
}

// ImportNote parses a bearer note and recomputes the commitment from the
// blinding factor and amount. A note whose stored commitment does not
// match the recomputation is rejected, catching both corruption and
// tampering.
func ImportNote(data []byte) (*DepositSecret, error) {
	var note bearerNote
	if err := json.Unmarshal(data, &note); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCommitment, err)
	}
	if note.Type != "pool_deposit_note" {
		return nil, fmt.Errorf("%w: unexpected note type %q", ErrInvalidCommitment, note.Type)
	}
	if note.Version != bearerNoteVersion {
		return nil, fmt.Errorf("%w: unsupported note version %d", ErrInvalidCommitment, note.Version)
	}

	raw, err := hex.DecodeString(note.Blinding)
	if err != nil {
		return nil, fmt.Errorf("%w: blinding factor is not hex", ErrInvalidCommitment)
	}
	blinding, err := keys.SecretFromBytes(raw)
	if err != nil {
		return nil, err
	}

	stored, err := hex.DecodeString(note.Commitment)
	if err != nil {
		return nil, fmt.Errorf("%w: commitment is not hex", ErrInvalidCommitment)
	}
	commitment, err := keys.ValidatePoint(stored)
	if err != nil {
		return nil, err
	}

	recomputed, err := Commit(blinding, note.Amount)
	if err != nil {
		return nil, err
	}
	if !recomputed.Equal(commitment) {
		return nil, fmt.Errorf("%w: commitment does not match blinding factor and amount", ErrInvalidCommitment)
	}

	return &DepositSecret{
		Blinding:      blinding,
		Commitment:    commitment,
		Amount:        note.Amount,
		Tier:          note.Tier,
		DepositHeight: note.DepositHeight,
	}, nil
}
