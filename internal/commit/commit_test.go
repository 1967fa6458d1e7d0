// commit_test.go - Pedersen commitment and bearer note tests.

package commit

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"testing"

	"poolcore/internal/keys"
)

const (
	vecBlindingHex   = "abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789"
	vecAmount        = int64(1000000000)
	vecCommitmentHex = "0243f8dbd92de254a465e5e0f71fa4cc6a452c9b1659087fedd2081601294505b0"
	vecBaseTermHex   = "034deb5e4bf849790657361d0559b96d9277fdfcf02f6f78f021e834b7282c9db8"
)

func vecBlinding(t *testing.T) *keys.Secret {
	t.Helper()
	raw, err := hex.DecodeString(vecBlindingHex)
	if err != nil {
		t.Fatal(err)
	}
	s, err := keys.SecretFromBytes(raw)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestCommitVector(t *testing.T) {
	c, err := Commit(vecBlinding(t), vecAmount)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if got := c.String(); got != vecCommitmentHex {
		t.Errorf("commitment = %s, want %s", got, vecCommitmentHex)
	}
}

func TestVerify(t *testing.T) {
	r := vecBlinding(t)
	c, err := Commit(r, vecAmount)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if !Verify(c, r, vecAmount) {
		t.Error("Verify rejected a correct opening")
	}
	if Verify(c, r, vecAmount+1) {
		t.Error("Verify accepted a wrong amount")
	}
	other, _, err := keys.GenerateFreshSecret()
	if err != nil {
		t.Fatal(err)
	}
	if Verify(c, other, vecAmount) {
		t.Error("Verify accepted a wrong blinding factor")
	}
}

func TestOpenRecoversBaseTerm(t *testing.T) {
	r := vecBlinding(t)
	c, err := Commit(r, vecAmount)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	rG, err := Open(c, vecAmount)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := rG.String(); got != vecBaseTermHex {
		t.Errorf("opened term = %s, want %s", got, vecBaseTermHex)
	}
	if !rG.Equal(r.PublicPoint()) {
		t.Error("opened term does not equal r*G")
	}
}

func TestCommitRejectsNonPositiveAmount(t *testing.T) {
	r := vecBlinding(t)
	for _, amount := range []int64{0, -1} {
		if _, err := Commit(r, amount); !errors.Is(err, ErrInvalidCommitment) {
			t.Errorf("Commit(%d) err = %v, want ErrInvalidCommitment", amount, err)
		}
	}
}

func TestBearerNoteRoundTrip(t *testing.T) {
	secret, err := NewDepositSecret(vecAmount, "1_erg", 812345)
	if err != nil {
		t.Fatalf("NewDepositSecret: %v", err)
	}
	data, err := secret.ExportNote()
	if err != nil {
		t.Fatalf("ExportNote: %v", err)
	}

	restored, err := ImportNote(data)
	if err != nil {
		t.Fatalf("ImportNote: %v", err)
	}
	if !restored.Commitment.Equal(secret.Commitment) {
		t.Error("commitment changed across export/import")
	}
	if restored.Amount != secret.Amount || restored.Tier != secret.Tier {
		t.Errorf("metadata changed: got (%d, %s), want (%d, %s)",
			restored.Amount, restored.Tier, secret.Amount, secret.Tier)
	}
	if restored.DepositHeight != 812345 {
		t.Errorf("deposit height = %d, want 812345", restored.DepositHeight)
	}
}

func TestImportNoteRejectsTampering(t *testing.T) {
	secret, err := NewDepositSecret(vecAmount, "10_erg", 812345)
	if err != nil {
		t.Fatalf("NewDepositSecret: %v", err)
	}
	data, err := secret.ExportNote()
	if err != nil {
		t.Fatalf("ExportNote: %v", err)
	}

	var note map[string]any
	if err := json.Unmarshal(data, &note); err != nil {
		t.Fatal(err)
	}
	note["amount"] = float64(vecAmount * 10)
	tampered, err := json.Marshal(note)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ImportNote(tampered); !errors.Is(err, ErrInvalidCommitment) {
		t.Errorf("ImportNote err = %v, want ErrInvalidCommitment", err)
	}
}

func TestImportNoteRejectsWrongType(t *testing.T) {
	data := []byte(`{"type":"grocery_list","version":1}`)
	if _, err := ImportNote(data); !errors.Is(err, ErrInvalidCommitment) {
		t.Errorf("ImportNote err = %v, want ErrInvalidCommitment", err)
	}
}
