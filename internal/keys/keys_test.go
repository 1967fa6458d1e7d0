package keys

import (
	"encoding/hex"
	"strings"
	"testing"
)

// Fixed vectors computed against an independent secp256k1 implementation.
const (
	vecSecret1  = "1f1f1f1f1f1f1f1f1f1f1f1f1f1f1f1f1f1f1f1f1f1f1f1f1f1f1f1f1f1f1f1f"
	vecPublic1  = "02505f234a81fe3af88625ebda259dbaec44c72b181e2f64735f8b8ec8d7cf7377"
	vecImage1   = "02175bf328f301b534560340bb361b713d70b1730fa4f120e12acfdf78f53c6c78"
	vecSecret2  = "0000000000000000000000000000000000000000000000000000000000000002"
	vecPublic2  = "02c6047f9441ed7d6d3045406e95c07cd85c778e4b8cef3ca7abac09b95c709ee5"
	vecImage2   = "03f3512f9ab133c165a3cb446d7cc7e30eee6d393e4a1bc3fd38d09ecc75c928e3"
	validPoint  = "02c6047f9441ed7d6d3045406e95c07cd85c778e4b8cef3ca7abac09b95c709ee5"
	offCurveHex = "020000000000000000000000000000000000000000000000000000000000000005"
)

func mustSecret(t *testing.T, hexStr string) *Secret {
	t.Helper()
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		t.Fatalf("bad hex: %v", err)
	}
	s, err := SecretFromBytes(b)
	if err != nil {
		t.Fatalf("SecretFromBytes failed: %v", err)
	}
	return s
}

func TestKeyImageVectors(t *testing.T) {
	cases := []struct {
		secret, public, image string
	}{
		{vecSecret1, vecPublic1, vecImage1},
		{vecSecret2, vecPublic2, vecImage2},
	}
	for _, c := range cases {
		s := mustSecret(t, c.secret)
		if got := s.PublicPoint().String(); got != c.public {
			t.Errorf("public point mismatch: got %s, want %s", got, c.public)
		}
		if got := ComputeKeyImage(s).String(); got != c.image {
			t.Errorf("key image mismatch: got %s, want %s", got, c.image)
		}
	}
}

func TestKeyImageDeterministic(t *testing.T) {
	s := mustSecret(t, vecSecret1)
	first := ComputeKeyImage(s)
	for i := 0; i < 10; i++ {
		if !ComputeKeyImage(s).Equal(first) {
			t.Fatal("key image derivation is not deterministic")
		}
	}
}

func TestKeyImageNoCollisions(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping 10k-sample property test in short mode")
	}
	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		s, _, err := GenerateFreshSecret()
		if err != nil {
			t.Fatalf("GenerateFreshSecret failed: %v", err)
		}
		img := ComputeKeyImage(s).String()
		if _, dup := seen[img]; dup {
			t.Fatalf("key image collision after %d samples: %s", i, img)
		}
		seen[img] = struct{}{}
	}
}

func TestGenerateFreshSecretRoundTrip(t *testing.T) {
	s, pub, err := GenerateFreshSecret()
	if err != nil {
		t.Fatalf("GenerateFreshSecret failed: %v", err)
	}
	restored, err := SecretFromBytes(s.Bytes())
	if err != nil {
		t.Fatalf("SecretFromBytes failed: %v", err)
	}
	if !restored.PublicPoint().Equal(pub) {
		t.Error("restored secret does not reproduce the public point")
	}
}

func TestValidatePoint(t *testing.T) {
	valid, err := ValidatePoint(mustHex(validPoint))
	if err != nil {
		t.Fatalf("valid point rejected: %v", err)
	}
	if valid.String() != validPoint {
		t.Errorf("validated point re-encodes differently: %s", valid.String())
	}

	cases := []struct {
		name    string
		encoded []byte
		want    error
	}{
		{"generator G", mustHex(GeneratorHex), ErrBannedPoint},
		{"NUMS H", mustHex(NUMSHex), ErrBannedPoint},
		{"too short", mustHex(validPoint)[:32], ErrMalformedEncoding},
		{"too long", append(mustHex(validPoint), 0x00), ErrMalformedEncoding},
		{"uncompressed prefix", append([]byte{0x04}, mustHex(validPoint)[1:]...), ErrMalformedEncoding},
		{"off curve", mustHex(offCurveHex), ErrPointNotOnCurve},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := ValidatePoint(c.encoded)
			if err == nil {
				t.Fatal("expected validation failure")
			}
			if !strings.Contains(err.Error(), c.want.Error()) {
				t.Errorf("got %v, want %v", err, c.want)
			}
			if !IsCryptoError(err) {
				t.Errorf("error not classified as crypto error: %v", err)
			}
		})
	}
}

func TestSecretFromBytesRejectsInvalid(t *testing.T) {
	if _, err := SecretFromBytes(make([]byte, 32)); err == nil {
		t.Error("zero secret accepted")
	}
	if _, err := SecretFromBytes(make([]byte, 31)); err == nil {
		t.Error("short secret accepted")
	}
	// group order n itself overflows the scalar range
	order := mustHex("fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141")
	if _, err := SecretFromBytes(order); err == nil {
		t.Error("out-of-range secret accepted")
	}
}

func TestNUMSDerivation(t *testing.T) {
	derived, err := DeriveNUMS(numsSeed)
	if err != nil {
		t.Fatalf("DeriveNUMS failed: %v", err)
	}
	if derived.String() != NUMSHex {
		t.Errorf("NUMS constant does not match its derivation: got %s", derived.String())
	}
	if NUMSPoint().Equal(GeneratorPoint()) {
		t.Error("H must differ from G")
	}
}
