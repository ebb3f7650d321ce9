// Package main provides the request signing tool:
// - keygen: generate an ed25519 signer keypair
// - sign: produce a detached signature over a canonical request digest
//
// The public key must be granted the signer capability on the server
// for its signatures to authorize requests.
package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"flag"
	"fmt"
	"math/big"
	"os"

	"github.com/mr-tron/base58"

	"launch-ledger/internal/authn"
	"launch-ledger/internal/domain"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "keygen":
		runKeygen()
	case "sign":
		runSign(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  signer keygen")
	fmt.Fprintln(os.Stderr, "  signer sign --key <base58-private-key> --type <participate|update|cancel|claim> [request fields]")
}

// runKeygen generates a keypair and prints it as JSON.
func runKeygen() {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: generate key: %v\n", err)
		os.Exit(1)
	}

	out := map[string]string{
		"public_key":  base58.Encode(pub),
		"private_key": base58.Encode(priv),
	}
	json.NewEncoder(os.Stdout).Encode(out)
}

// runSign signs one request and prints the detached signature as JSON.
func runSign(args []string) {
	fs := flag.NewFlagSet("sign", flag.ExitOnError)

	key := fs.String("key", os.Getenv("SIGNER_PRIVATE_KEY"), "Base58 ed25519 private key")
	reqType := fs.String("type", "", "Request type: participate, update, cancel, claim")
	chainID := fs.String("chain-id", "", "Chain identifier")
	launchID := fs.String("launch-id", "", "Launch identifier")
	groupID := fs.String("group-id", "", "Launch group identifier")
	participationID := fs.String("participation-id", "", "Participation identifier")
	prevID := fs.String("prev-participation-id", "", "Prior participation identifier (update only)")
	newID := fs.String("new-participation-id", "", "New participation identifier (update only)")
	userID := fs.String("user-id", "", "User identifier")
	userAddress := fs.String("user-address", "", "User funding address")
	tokenAmount := fs.String("token-amount", "", "Token amount, decimal string (participate and update)")
	currencyID := fs.String("currency-id", "", "Payment currency identifier (participate and update)")
	expiresAt := fs.Int64("expires-at", 0, "Request expiry, unix seconds")
	fs.Parse(args)

	if *key == "" {
		fatal("--key is required (or set SIGNER_PRIVATE_KEY)")
	}
	raw, err := base58.Decode(*key)
	if err != nil || len(raw) != ed25519.PrivateKeySize {
		fatal("--key is not a base58 ed25519 private key")
	}
	priv := ed25519.PrivateKey(raw)

	var digest [32]byte
	switch *reqType {
	case "participate":
		digest = authn.DigestParticipation(&domain.ParticipationRequest{
			ChainID:          *chainID,
			LaunchID:         *launchID,
			GroupID:          *groupID,
			ParticipationID:  *participationID,
			UserID:           *userID,
			UserAddress:      *userAddress,
			TokenAmount:      parseAmount(*tokenAmount),
			CurrencyID:       *currencyID,
			RequestExpiresAt: *expiresAt,
		})
	case "update":
		digest = authn.DigestUpdate(&domain.UpdateParticipationRequest{
			ChainID:             *chainID,
			LaunchID:            *launchID,
			GroupID:             *groupID,
			PrevParticipationID: *prevID,
			NewParticipationID:  *newID,
			UserID:              *userID,
			UserAddress:         *userAddress,
			TokenAmount:         parseAmount(*tokenAmount),
			CurrencyID:          *currencyID,
			RequestExpiresAt:    *expiresAt,
		})
	case "cancel":
		digest = authn.DigestCancel(&domain.CancelParticipationRequest{
			ChainID:          *chainID,
			LaunchID:         *launchID,
			GroupID:          *groupID,
			ParticipationID:  *participationID,
			UserID:           *userID,
			UserAddress:      *userAddress,
			RequestExpiresAt: *expiresAt,
		})
	case "claim":
		digest = authn.DigestClaimRefund(&domain.ClaimRefundRequest{
			ChainID:          *chainID,
			LaunchID:         *launchID,
			GroupID:          *groupID,
			ParticipationID:  *participationID,
			UserID:           *userID,
			UserAddress:      *userAddress,
			RequestExpiresAt: *expiresAt,
		})
	default:
		fatal("--type must be one of participate, update, cancel, claim")
	}

	sig := authn.Sign(priv, digest)
	json.NewEncoder(os.Stdout).Encode(map[string]string{
		"signer_key": sig.SignerKey,
		"value":      sig.Value,
	})
}

func parseAmount(raw string) *big.Int {
	if raw == "" {
		return nil
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		fatal(fmt.Sprintf("malformed amount %q", raw))
	}
	return v
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, "Error: "+msg)
	os.Exit(1)
}
