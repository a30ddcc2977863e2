package settlement

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/dexlab-io/matchbook/internal/domain"
)

// Verifier checks that an order's signature is a valid personal-sign of
// its order id by the claimed creator. The order id doubles as the
// signed message, so the settlement contract can re-verify the same
// bytes on chain.
type Verifier struct {
	enabled bool
}

// NewVerifier creates a Verifier. When enabled is false Verify accepts
// everything, which keeps local development usable without a wallet.
func NewVerifier(enabled bool) *Verifier {
	return &Verifier{enabled: enabled}
}

// Verify recovers the signer of message from a 65-byte personal-sign
// signature and compares it to creator. Returns
// domain.ErrInvalidSignature when they differ.
func (v *Verifier) Verify(message, signature, creator string) error {
	if !v.enabled {
		return nil
	}

	sig, err := hexutil.Decode(signature)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}
	if len(sig) != crypto.SignatureLength {
		return fmt.Errorf("%w: signature must be %d bytes, got %d",
			domain.ErrInvalidSignature, crypto.SignatureLength, len(sig))
	}

	// Wallets produce V as 27/28, SigToPub expects 0/1.
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig = bytes.Clone(sig)
		sig[crypto.RecoveryIDOffset] -= 27
	}

	hash := accounts.TextHash([]byte(message))
	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}

	recovered := crypto.PubkeyToAddress(*pub)
	if recovered != common.HexToAddress(creator) {
		return fmt.Errorf("%w: recovered %s, want %s",
			domain.ErrInvalidSignature, recovered.Hex(), creator)
	}
	return nil
}
